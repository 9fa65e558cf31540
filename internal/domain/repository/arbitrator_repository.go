package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/ignatzorin/freelance-escrow/internal/domain/entity"
)

type ArbitratorRepository interface {
	// FindByAddress возвращает nil без ошибки для незарегистрированного адреса.
	FindByAddress(ctx context.Context, address uuid.UUID) (*entity.Arbitrator, error)
	Save(ctx context.Context, arbitrator *entity.Arbitrator) error
	LoadActiveSet(ctx context.Context) (*entity.ActiveSet, error)
	// LockActiveSet загружает набор с эксклюзивной блокировкой до конца транзакции.
	LockActiveSet(ctx context.Context) (*entity.ActiveSet, error)
	SaveActiveSet(ctx context.Context, set *entity.ActiveSet) error
}
