// Package metrics собирает prometheus-метрики по доменным событиям и HTTP запросам.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ignatzorin/freelance-escrow/internal/domain/event"
)

const namespace = "escrow"

// Metrics держит собственный реестр, чтобы тесты и несколько экземпляров приложения не конфликтовали.
type Metrics struct {
	registry  *prometheus.Registry
	events    *prometheus.CounterVec
	volume    *prometheus.CounterVec
	requests  *prometheus.CounterVec
	durations *prometheus.HistogramVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "domain_events_total",
			Help:      "Committed domain events segmented by type.",
		}, []string{"type"}),
		volume: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "funds_moved_total",
			Help:      "Funds moved through escrow in minimal units, by movement and currency.",
		}, []string{"movement", "currency"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed by the API.",
		}, []string{"route", "method", "status"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
	registry.MustRegister(m.events, m.volume, m.requests, m.durations)
	return m
}

// Publish реализует event.Publisher.
func (m *Metrics) Publish(_ context.Context, evt event.Event) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(string(evt.Type)).Inc()

	var movement string
	switch evt.Type {
	case event.EscrowFunded:
		movement = "fund"
	case event.EscrowReleased:
		movement = "release"
	case event.EscrowRefunded:
		movement = "refund"
	default:
		return
	}
	if evt.Amount.IsZero() {
		return
	}
	m.volume.WithLabelValues(movement, evt.Currency.String()).Add(evt.Amount.Float64())
	if fee, ok := evt.Data["fee"].(string); ok && fee != "" && fee != "0" {
		if v, err := strconv.ParseFloat(fee, 64); err == nil {
			m.volume.WithLabelValues("fee", evt.Currency.String()).Add(v)
		}
	}
}

// Middleware считает запросы и их длительность по шаблону маршрута.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.requests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		m.durations.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}

// Handler отдаёт метрики в формате prometheus.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry нужен тестам для чтения значений.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
