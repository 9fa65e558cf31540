package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/ignatzorin/freelance-escrow/internal/domain/entity"
	"github.com/ignatzorin/freelance-escrow/internal/domain/valueobject"
)

type ProjectRepository interface {
	Create(ctx context.Context, project *entity.Project) error
	Update(ctx context.Context, project *entity.Project) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Project, error)
	// FindForUpdate блокирует проект до конца транзакции.
	FindForUpdate(ctx context.Context, id uuid.UUID) (*entity.Project, error)
	ListByParticipant(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entity.Project, error)
}

type JobRepository interface {
	Create(ctx context.Context, job *entity.Job) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Job, error)
	FindForUpdate(ctx context.Context, id uuid.UUID) (*entity.Job, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status valueobject.JobStatus) error
}
