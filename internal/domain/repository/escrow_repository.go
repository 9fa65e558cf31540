package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/ignatzorin/freelance-escrow/internal/domain/entity"
)

type EscrowRepository interface {
	// FindAccount возвращает nil без ошибки, если проект ещё не пополнялся.
	FindAccount(ctx context.Context, projectID uuid.UUID) (*entity.EscrowAccount, error)
	FindAccountForUpdate(ctx context.Context, projectID uuid.UUID) (*entity.EscrowAccount, error)
	SaveAccount(ctx context.Context, account *entity.EscrowAccount) error
	AppendEntry(ctx context.Context, entry entity.LedgerEntry) error
	ListEntries(ctx context.Context, projectID uuid.UUID) ([]entity.LedgerEntry, error)
}
