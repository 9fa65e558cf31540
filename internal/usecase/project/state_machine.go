package project

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/freelance-escrow/internal/domain/entity"
	"github.com/ignatzorin/freelance-escrow/internal/domain/event"
	"github.com/ignatzorin/freelance-escrow/internal/domain/repository"
	"github.com/ignatzorin/freelance-escrow/internal/domain/valueobject"
	"github.com/ignatzorin/freelance-escrow/internal/logger"
	"github.com/ignatzorin/freelance-escrow/internal/pkg/apperror"
	"github.com/ignatzorin/freelance-escrow/internal/usecase/escrow"
	"github.com/ignatzorin/freelance-escrow/internal/usecase/registry"
)

// Releaser - выплата средств из эскроу.
type Releaser interface {
	Release(ctx context.Context, projectID, recipient uuid.UUID, amount valueobject.Amount, caller uuid.UUID) (escrow.Movement, error)
}

// DisputeStarter - открытие спора в движке споров.
type DisputeStarter interface {
	StartDispute(ctx context.Context, projectID uuid.UUID, milestoneIndex int, reasonRef string, caller uuid.UUID) (*entity.Dispute, error)
}

type StartProjectInput struct {
	JobID        uuid.UUID
	ClientID     uuid.UUID
	FreelancerID uuid.UUID
	Budget       valueobject.Amount
	Deadline     time.Time
	Milestones   []entity.MilestoneSpec
}

// StateMachine управляет жизненным циклом проектов и их этапов.
type StateMachine struct {
	tx        repository.Transactor
	projects  repository.ProjectRepository
	jobs      repository.JobRepository
	jobSink   repository.JobSink
	escrow    Releaser
	disputes  DisputeStarter
	registry  *registry.Registry
	publisher event.Publisher
	now       func() time.Time
}

func NewStateMachine(
	tx repository.Transactor,
	projects repository.ProjectRepository,
	jobs repository.JobRepository,
	jobSink repository.JobSink,
	releaser Releaser,
	reg *registry.Registry,
	publisher event.Publisher,
) *StateMachine {
	if publisher == nil {
		publisher = event.Nop{}
	}
	return &StateMachine{
		tx:        tx,
		projects:  projects,
		jobs:      jobs,
		jobSink:   jobSink,
		escrow:    releaser,
		registry:  reg,
		publisher: publisher,
		now:       time.Now,
	}
}

// BindDisputes подключает движок споров.
func (sm *StateMachine) BindDisputes(starter DisputeStarter) {
	sm.disputes = starter
}

func (sm *StateMachine) SetNowFunc(now func() time.Time) {
	if now != nil {
		sm.now = now
	}
}

func (sm *StateMachine) self() uuid.UUID {
	return sm.registry.Address(registry.ComponentProjects)
}

// StartProject создаёт проект по принятому заданию и переводит задание в работу.
func (sm *StateMachine) StartProject(ctx context.Context, in StartProjectInput) (*entity.Project, error) {
	now := sm.now()
	p, err := entity.NewProject(in.JobID, in.ClientID, in.FreelancerID, in.Budget, in.Deadline, in.Milestones, now)
	if err != nil {
		return nil, err
	}

	err = sm.tx.WithinTx(ctx, func(ctx context.Context) error {
		job, err := sm.jobs.FindForUpdate(ctx, in.JobID)
		if err != nil {
			return err
		}
		if job.ClientID != in.ClientID {
			return apperror.ErrNotClient
		}
		if job.Status != valueobject.JobStatusOpen {
			return apperror.ErrJobNotOpen
		}
		if err := sm.projects.Create(ctx, p); err != nil {
			return err
		}
		if err := sm.jobSink.SetJobStatus(ctx, in.JobID, valueobject.JobStatusInProgress); err != nil {
			return err
		}
		sm.publish(ctx, event.ProjectStarted, p, in.ClientID, now, nil)
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Component("projects").WithFields(logrus.Fields{
		"project_id": p.ID,
		"job_id":     p.JobID,
		"budget":     p.Budget.String(),
		"milestones": len(p.Milestones),
	}).Info("проект создан")
	return p, nil
}

// MarkMilestoneCompleted отмечает этап выполненным (исполнитель).
func (sm *StateMachine) MarkMilestoneCompleted(ctx context.Context, projectID uuid.UUID, index int, caller uuid.UUID) (*entity.Project, error) {
	return sm.mutate(ctx, projectID, func(ctx context.Context, p *entity.Project, now time.Time) error {
		if err := p.MarkMilestoneCompleted(caller, index, now); err != nil {
			return err
		}
		sm.publish(ctx, event.MilestoneCompleted, p, caller, now, map[string]any{"milestone": index})
		return nil
	})
}

// ApproveMilestone одобряет этап (клиент) и выплачивает его сумму исполнителю.
func (sm *StateMachine) ApproveMilestone(ctx context.Context, projectID uuid.UUID, index int, caller uuid.UUID) (*entity.Project, error) {
	return sm.mutate(ctx, projectID, func(ctx context.Context, p *entity.Project, now time.Time) error {
		amount, err := p.ApproveMilestone(caller, index, now)
		if err != nil {
			return err
		}
		if _, err := sm.escrow.Release(ctx, p.ID, p.FreelancerID, amount, sm.self()); err != nil {
			return err
		}
		if p.Status == valueobject.ProjectStatusCompleted {
			if err := sm.jobSink.SetJobStatus(ctx, p.JobID, valueobject.JobStatusCompleted); err != nil {
				return err
			}
		}
		sm.publish(ctx, event.MilestoneApproved, p, caller, now, map[string]any{"milestone": index, "amount": amount.String()})
		return nil
	})
}

// DisputeMilestone переводит проект в Disputed и открывает спор по этапу.
func (sm *StateMachine) DisputeMilestone(ctx context.Context, projectID uuid.UUID, index int, reasonRef string, caller uuid.UUID) (*entity.Dispute, error) {
	if sm.disputes == nil {
		return nil, apperror.New(apperror.ErrCodeInternal, "движок споров не подключен")
	}
	var dispute *entity.Dispute
	_, err := sm.mutate(ctx, projectID, func(ctx context.Context, p *entity.Project, now time.Time) error {
		if _, err := p.OpenDispute(caller, index, now); err != nil {
			return err
		}
		// Спор читает проект в той же транзакции, поэтому статус сохраняется заранее.
		if err := sm.projects.Update(ctx, p); err != nil {
			return err
		}
		var err error
		if dispute, err = sm.disputes.StartDispute(ctx, p.ID, index, reasonRef, sm.self()); err != nil {
			return err
		}
		sm.publish(ctx, event.ProjectDisputed, p, caller, now, map[string]any{"milestone": index, "dispute_id": dispute.ID.String()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dispute, nil
}

// ResolveDispute применяет исход спора. Вызывать может только движок споров.
func (sm *StateMachine) ResolveDispute(ctx context.Context, projectID uuid.UUID, outcome valueobject.ProjectStatus, caller uuid.UUID) (*entity.Project, error) {
	if !sm.registry.Is(registry.ComponentDisputes, caller) {
		return nil, apperror.ErrNotAuthorizedCaller
	}
	return sm.mutate(ctx, projectID, func(ctx context.Context, p *entity.Project, now time.Time) error {
		final, err := p.ResolveDispute(outcome, now)
		if err != nil {
			return err
		}
		switch final {
		case valueobject.ProjectStatusCompleted:
			err = sm.jobSink.SetJobStatus(ctx, p.JobID, valueobject.JobStatusCompleted)
		case valueobject.ProjectStatusCancelled:
			err = sm.jobSink.SetJobStatus(ctx, p.JobID, valueobject.JobStatusCancelled)
		}
		if err != nil {
			return err
		}
		sm.publish(ctx, event.ProjectResolved, p, caller, now, map[string]any{"status": string(final)})
		return nil
	})
}

// Get возвращает проект.
func (sm *StateMachine) Get(ctx context.Context, projectID uuid.UUID) (*entity.Project, error) {
	return sm.projects.FindByID(ctx, projectID)
}

// ListMine возвращает проекты, где пользователь клиент или исполнитель.
func (sm *StateMachine) ListMine(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entity.Project, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return sm.projects.ListByParticipant(ctx, userID, limit, offset)
}

func (sm *StateMachine) mutate(ctx context.Context, projectID uuid.UUID, fn func(ctx context.Context, p *entity.Project, now time.Time) error) (*entity.Project, error) {
	var project *entity.Project
	err := sm.tx.WithinTx(ctx, func(ctx context.Context) error {
		p, err := sm.projects.FindForUpdate(ctx, projectID)
		if err != nil {
			return err
		}
		if err := fn(ctx, p, sm.now()); err != nil {
			return err
		}
		if err := sm.projects.Update(ctx, p); err != nil {
			return err
		}
		project = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Component("projects").WithFields(logrus.Fields{
		"project_id": project.ID,
		"status":     project.Status,
		"approved":   project.ApprovedCount,
	}).Debug("проект обновлён")
	return project, nil
}

func (sm *StateMachine) publish(ctx context.Context, typ event.Type, p *entity.Project, actor uuid.UUID, now time.Time, data map[string]any) {
	evt := event.Event{
		Type:       typ,
		ProjectID:  p.ID,
		Actor:      actor,
		Recipients: []uuid.UUID{p.ClientID, p.FreelancerID},
		Data:       data,
		OccurredAt: now,
	}
	sm.tx.AfterCommit(ctx, func() {
		sm.publisher.Publish(ctx, evt)
	})
}
