package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/freelance-escrow/internal/domain/event"
	"github.com/ignatzorin/freelance-escrow/internal/domain/repository"
	"github.com/ignatzorin/freelance-escrow/internal/logger"
	"github.com/ignatzorin/freelance-escrow/internal/pkg/apperror"
)

// Pusher доставляет сообщение пользователю (websocket хаб).
type Pusher interface {
	BroadcastToUser(userID uuid.UUID, event string, data any) error
}

// NotificationPayload - тело push-уведомления.
type NotificationPayload struct {
	Category  string         `json:"category"`
	ProjectID *uuid.UUID     `json:"project_id,omitempty"`
	DisputeID *uuid.UUID     `json:"dispute_id,omitempty"`
	Actor     *uuid.UUID     `json:"actor,omitempty"`
	Currency  string         `json:"currency,omitempty"`
	Amount    string         `json:"amount,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp int64          `json:"timestamp"`
}

// NotificationService рассылает доменные события вовлечённым пользователям.
// Отписка от категории делает уведомление тихой пустой операцией.
type NotificationService struct {
	prefs  repository.NotificationPreferenceRepository
	pusher Pusher
}

func NewNotificationService(prefs repository.NotificationPreferenceRepository, pusher Pusher) *NotificationService {
	return &NotificationService{prefs: prefs, pusher: pusher}
}

// Publish реализует event.Publisher. Ошибки доставки только логируются.
func (s *NotificationService) Publish(ctx context.Context, evt event.Event) {
	category := string(evt.Type.Category())
	payload := buildPayload(evt)
	log := logger.Component("notifications")

	seen := make(map[uuid.UUID]struct{}, len(evt.Recipients))
	for _, recipient := range evt.Recipients {
		if recipient == uuid.Nil {
			continue
		}
		if _, dup := seen[recipient]; dup {
			continue
		}
		seen[recipient] = struct{}{}

		optedOut, err := s.prefs.IsOptedOut(ctx, recipient, category)
		if err != nil {
			log.WithError(err).WithField("user_id", recipient).Warn("не удалось проверить подписку")
			continue
		}
		if optedOut {
			continue
		}
		if s.pusher == nil {
			continue
		}
		if err := s.pusher.BroadcastToUser(recipient, string(evt.Type), payload); err != nil {
			log.WithError(err).WithFields(logrus.Fields{
				"user_id": recipient,
				"event":   evt.Type,
			}).Warn("не удалось отправить уведомление")
		}
	}
}

// OptOut отписывает пользователя от категории уведомлений.
func (s *NotificationService) OptOut(ctx context.Context, userID uuid.UUID, category string) error {
	return s.setOptOut(ctx, userID, category, true)
}

// OptIn возвращает подписку на категорию.
func (s *NotificationService) OptIn(ctx context.Context, userID uuid.UUID, category string) error {
	return s.setOptOut(ctx, userID, category, false)
}

func (s *NotificationService) setOptOut(ctx context.Context, userID uuid.UUID, category string, optedOut bool) error {
	c, ok := event.ParseCategory(category)
	if !ok {
		return apperror.New(apperror.ErrCodeValidation, "неизвестная категория уведомлений")
	}
	if err := s.prefs.SetOptOut(ctx, userID, string(c), optedOut); err != nil {
		return apperror.Database(err, "не удалось сохранить настройки уведомлений")
	}
	return nil
}

func buildPayload(evt event.Event) NotificationPayload {
	p := NotificationPayload{
		Category:  string(evt.Type.Category()),
		Data:      evt.Data,
		Timestamp: evt.OccurredAt.Unix(),
	}
	if evt.ProjectID != uuid.Nil {
		id := evt.ProjectID
		p.ProjectID = &id
	}
	if evt.DisputeID != uuid.Nil {
		id := evt.DisputeID
		p.DisputeID = &id
	}
	if evt.Actor != uuid.Nil {
		id := evt.Actor
		p.Actor = &id
	}
	if !evt.Amount.IsZero() {
		p.Currency = evt.Currency.String()
		p.Amount = evt.Amount.String()
	}
	return p
}
