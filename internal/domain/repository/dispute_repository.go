package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/ignatzorin/freelance-escrow/internal/domain/entity"
)

type DisputeRepository interface {
	Create(ctx context.Context, dispute *entity.Dispute) error
	Update(ctx context.Context, dispute *entity.Dispute) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Dispute, error)
	FindForUpdate(ctx context.Context, id uuid.UUID) (*entity.Dispute, error)
	ListByArbitrator(ctx context.Context, arbitrator uuid.UUID) ([]*entity.Dispute, error)
	// ListDue возвращает споры, у которых истёк срок текущей стадии, в порядке открытия.
	// offset пропускает первые совпадения.
	ListDue(ctx context.Context, now time.Time, offset, limit int) ([]*entity.Dispute, error)
}
