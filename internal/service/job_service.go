package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/freelance-escrow/internal/domain/entity"
	"github.com/ignatzorin/freelance-escrow/internal/domain/repository"
	"github.com/ignatzorin/freelance-escrow/internal/domain/valueobject"
	"github.com/ignatzorin/freelance-escrow/internal/logger"
	"github.com/ignatzorin/freelance-escrow/internal/pkg/apperror"
	"github.com/ignatzorin/freelance-escrow/internal/validation"
)

// JobService ведёт задания клиентов и принимает их статусы от машины состояний проекта.
type JobService struct {
	jobs      repository.JobRepository
	directory repository.UserDirectory
	now       func() time.Time
}

func NewJobService(jobs repository.JobRepository, directory repository.UserDirectory) *JobService {
	return &JobService{jobs: jobs, directory: directory, now: time.Now}
}

// CreateJob публикует задание от имени клиента.
func (s *JobService) CreateJob(ctx context.Context, clientID uuid.UUID, title string) (*entity.Job, error) {
	if err := validation.ValidateJobTitle(title); err != nil {
		return nil, invalid(err)
	}

	role, err := s.directory.RoleOf(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if role != valueobject.RoleClient {
		return nil, apperror.ErrForbidden.WithMessage("публиковать задания могут только клиенты")
	}

	job, err := entity.NewJob(clientID, title, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, apperror.Database(err, "не удалось создать задание")
	}

	logger.Component("jobs").WithField("job_id", job.ID).Info("задание опубликовано")
	return job, nil
}

func (s *JobService) Get(ctx context.Context, jobID uuid.UUID) (*entity.Job, error) {
	return s.jobs.FindByID(ctx, jobID)
}

// SetJobStatus фиксирует статус задания.
func (s *JobService) SetJobStatus(ctx context.Context, jobID uuid.UUID, status valueobject.JobStatus) error {
	if !status.IsValid() {
		return apperror.New(apperror.ErrCodeValidation, "некорректный статус задания")
	}
	if err := s.jobs.UpdateStatus(ctx, jobID, status); err != nil {
		return apperror.Database(err, "не удалось обновить статус задания")
	}
	return nil
}
