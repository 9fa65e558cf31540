package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/freelance-escrow/internal/app"
	"github.com/ignatzorin/freelance-escrow/internal/config"
	"github.com/ignatzorin/freelance-escrow/internal/db"
	httpRouter "github.com/ignatzorin/freelance-escrow/internal/http/router"
	"github.com/ignatzorin/freelance-escrow/internal/infrastructure/memory"
	"github.com/ignatzorin/freelance-escrow/internal/logger"
	"github.com/ignatzorin/freelance-escrow/internal/storage"
	"github.com/ignatzorin/freelance-escrow/internal/ws"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	logger.Init(cfg.LogLevel)
	if cfg.Env == "development" {
		logger.SetTextFormatter()
	}
	mainLog := logger.Component("main")

	// Хранилище: PostgreSQL или память для локального запуска.
	var (
		backend app.Backend
		dbConn  *sqlx.DB
	)
	switch cfg.StorageDriver {
	case config.StorageDriverMemory:
		backend = app.MemoryBackend(memory.NewStore())
		mainLog.Warn("используется хранилище в памяти, данные не сохраняются между запусками")
	default:
		dbConn, err = db.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			mainLog.WithError(err).Fatal("ошибка подключения к базе")
		}
		defer safeClose(dbConn)

		if err := db.RunMigrations(ctx, dbConn, os.DirFS(cfg.MigrationsPath)); err != nil {
			mainLog.WithError(err).Fatal("ошибка миграций")
		}
		backend = app.PostgresBackend(dbConn)
	}

	evidence, err := storage.NewEvidenceStorage(cfg.EvidenceStoragePath, cfg.MaxUploadSizeMB)
	if err != nil {
		mainLog.WithError(err).Fatal("не удалось подготовить хранилище доказательств")
	}

	// Вебсокеты доставляют уведомления о доменных событиях.
	hub := ws.NewHub()
	go hub.Run(ctx)

	application, err := app.New(ctx, backend, cfg, hub)
	if err != nil {
		mainLog.WithError(err).Fatal("не удалось собрать приложение")
	}
	application.Start(ctx)

	handlers := httpRouter.NewHandlers(application, evidence, hub, dbConn, cfg.StorageDriver)
	engine := httpRouter.SetupRouter(cfg, handlers, application.Tokens, application.Metrics)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Завершаем сервер при получении сигнала.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			mainLog.WithError(err).Error("ошибка остановки http сервера")
		}
	}()

	mainLog.WithField("port", cfg.HTTPPort).Info("HTTP сервер запущен")

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		mainLog.WithError(err).Fatal("сервер завершился с ошибкой")
	}
}

// safeClose закрывает соединение с базой.
func safeClose(conn *sqlx.DB) {
	if err := conn.Close(); err != nil {
		logger.Component("main").WithError(err).Error("ошибка закрытия базы")
	}
}
