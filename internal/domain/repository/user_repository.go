package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/ignatzorin/freelance-escrow/internal/domain/entity"
	"github.com/ignatzorin/freelance-escrow/internal/domain/valueobject"
)

type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error)
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
	TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

type FeedbackRepository interface {
	Create(ctx context.Context, feedback *entity.Feedback) error
	Exists(ctx context.Context, projectID, authorID uuid.UUID) (bool, error)
	SumScores(ctx context.Context, subjectID uuid.UUID) (uint64, error)
}

type WalletRepository interface {
	// FindForUpdate возвращает nil без ошибки, если кошелька в этой валюте нет.
	FindForUpdate(ctx context.Context, userID uuid.UUID, currency valueobject.Currency) (*entity.WalletBalance, error)
	Save(ctx context.Context, balance *entity.WalletBalance) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]entity.WalletBalance, error)
}

type NotificationPreferenceRepository interface {
	IsOptedOut(ctx context.Context, userID uuid.UUID, category string) (bool, error)
	SetOptOut(ctx context.Context, userID uuid.UUID, category string, optedOut bool) error
}
