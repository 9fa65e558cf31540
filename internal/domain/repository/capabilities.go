package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/ignatzorin/freelance-escrow/internal/domain/valueobject"
)

// UserDirectory - каталог пользователей (роль и активность).
type UserDirectory interface {
	RoleOf(ctx context.Context, address uuid.UUID) (valueobject.Role, error)
	IsActive(ctx context.Context, address uuid.UUID) (bool, error)
}

// ReputationSource - источник репутации.
type ReputationSource interface {
	ReputationOf(ctx context.Context, address uuid.UUID) (uint64, error)
}

// JobSink принимает статусы заданий от машины состояний проекта.
type JobSink interface {
	SetJobStatus(ctx context.Context, jobID uuid.UUID, status valueobject.JobStatus) error
}

// FundsTransfer переводит средства между кошельками пользователей и эскроу.
type FundsTransfer interface {
	Collect(ctx context.Context, from uuid.UUID, currency valueobject.Currency, amount valueobject.Amount) error
	Pay(ctx context.Context, to uuid.UUID, currency valueobject.Currency, amount valueobject.Amount) error
}

// RandomSource выдаёт индекс в [0, n) для раунда выбора панели.
type RandomSource interface {
	Intn(seed []byte, round, n int) (int, error)
}
