package dispute

import (
	"context"
	"encoding/binary"
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

// EscrowMover - выплаты и возвраты по итогам спора.
type EscrowMover interface {
	Release(ctx context.Context, projectID, recipient uuid.UUID, amount valueobject.Amount, caller uuid.UUID) (escrow.Movement, error)
	Refund(ctx context.Context, projectID, recipient uuid.UUID, amount valueobject.Amount, caller uuid.UUID) (escrow.Movement, error)
	Account(ctx context.Context, projectID uuid.UUID) (*entity.EscrowAccount, error)
}

// ProjectResolver - обратный вызов в машину состояний проекта.
type ProjectResolver interface {
	ResolveDispute(ctx context.Context, projectID uuid.UUID, outcome valueobject.ProjectStatus, caller uuid.UUID) (*entity.Project, error)
}

// PanelSelector - выбор панели арбитров.
type PanelSelector interface {
	SelectPanel(ctx context.Context, n int, seed []byte, caller uuid.UUID) ([]uuid.UUID, error)
}

// ProjectLookup - чтение и блокировка проекта.
type ProjectLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Project, error)
	FindForUpdate(ctx context.Context, id uuid.UUID) (*entity.Project, error)
}

// Engine ведёт споры от сбора доказательств до итогового решения.
type Engine struct {
	tx        repository.Transactor
	disputes  repository.DisputeRepository
	projects  ProjectLookup
	pool      PanelSelector
	escrow    EscrowMover
	resolver  ProjectResolver
	registry  *registry.Registry
	publisher event.Publisher
	now       func() time.Time
}

func NewEngine(
	tx repository.Transactor,
	disputes repository.DisputeRepository,
	projects ProjectLookup,
	pool PanelSelector,
	mover EscrowMover,
	resolver ProjectResolver,
	reg *registry.Registry,
	publisher event.Publisher,
) *Engine {
	if publisher == nil {
		publisher = event.Nop{}
	}
	return &Engine{
		tx:        tx,
		disputes:  disputes,
		projects:  projects,
		pool:      pool,
		escrow:    mover,
		resolver:  resolver,
		registry:  reg,
		publisher: publisher,
		now:       time.Now,
	}
}

func (e *Engine) SetNowFunc(now func() time.Time) {
	if now != nil {
		e.now = now
	}
}

func (e *Engine) self() uuid.UUID {
	return e.registry.Address(registry.ComponentDisputes)
}

// StartDispute открывает спор по этапу. Вызывать может только машина состояний проекта.
func (e *Engine) StartDispute(ctx context.Context, projectID uuid.UUID, milestoneIndex int, reasonRef string, caller uuid.UUID) (*entity.Dispute, error) {
	if !e.registry.Is(registry.ComponentProjects, caller) {
		return nil, apperror.ErrNotAuthorizedCaller
	}

	var dispute *entity.Dispute
	err := e.tx.WithinTx(ctx, func(ctx context.Context) error {
		p, err := e.projects.FindByID(ctx, projectID)
		if err != nil {
			return err
		}
		if p.Status != valueobject.ProjectStatusDisputed || p.DisputedMilestone == nil || *p.DisputedMilestone != milestoneIndex {
			return apperror.ErrMilestoneNotDisputable
		}

		params := e.registry.Params()
		panel, err := e.pool.SelectPanel(ctx, params.PanelSize, panelSeed(projectID, milestoneIndex, reasonRef), e.self())
		if err != nil {
			return err
		}

		now := e.now()
		dispute, err = entity.NewDispute(entity.DisputeParams{
			ProjectID:       projectID,
			MilestoneIndex:  milestoneIndex,
			MilestoneAmount: p.Milestones[milestoneIndex].Amount,
			ClientID:        p.ClientID,
			FreelancerID:    p.FreelancerID,
			ReasonRef:       reasonRef,
			Panel:           panel,
			EvidencePeriod:  params.EvidencePeriod,
		}, now)
		if err != nil {
			return err
		}
		if err := e.disputes.Create(ctx, dispute); err != nil {
			return err
		}
		e.publish(ctx, event.DisputeOpened, dispute, caller, now, map[string]any{
			"milestone":         milestoneIndex,
			"evidence_deadline": dispute.EvidenceDeadline,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Component("disputes").WithFields(logrus.Fields{
		"dispute_id": dispute.ID,
		"project_id": projectID,
		"panel":      len(dispute.Panel),
	}).Info("спор открыт")
	return dispute, nil
}

// SubmitEvidence сохраняет доказательство стороны спора.
func (e *Engine) SubmitEvidence(ctx context.Context, disputeID uuid.UUID, evidenceRef string, caller uuid.UUID) (*entity.Dispute, error) {
	return e.mutate(ctx, disputeID, func(ctx context.Context, d *entity.Dispute, now time.Time) error {
		if err := d.SubmitEvidence(caller, evidenceRef, now); err != nil {
			return err
		}
		e.publish(ctx, event.EvidenceSubmitted, d, caller, now, nil)
		return nil
	})
}

// StartVoting открывает голосование после срока доказательств (оператор или владелец).
func (e *Engine) StartVoting(ctx context.Context, disputeID, caller uuid.UUID) (*entity.Dispute, error) {
	if !e.registry.IsOperator(caller) {
		return nil, apperror.ErrForbidden
	}
	return e.mutate(ctx, disputeID, func(ctx context.Context, d *entity.Dispute, now time.Time) error {
		if err := d.StartVoting(e.registry.Params().VotingPeriod, now); err != nil {
			return err
		}
		e.publish(ctx, event.VotingStarted, d, caller, now, map[string]any{"voting_deadline": *d.VotingDeadline})
		return nil
	})
}

// Vote учитывает голос арбитра. Когда проголосовала вся панель, спор сразу финализируется.
func (e *Engine) Vote(ctx context.Context, disputeID, arbitrator uuid.UUID, forClient bool) (*entity.Dispute, error) {
	return e.mutate(ctx, disputeID, func(ctx context.Context, d *entity.Dispute, now time.Time) error {
		if err := d.CastVote(arbitrator, forClient, now); err != nil {
			return err
		}
		e.publish(ctx, event.VoteCast, d, arbitrator, now, nil)
		if d.AllVoted() {
			return e.finalize(ctx, d, now)
		}
		return nil
	})
}

// Finalize подводит итог после дедлайна голосования или когда проголосовали все.
func (e *Engine) Finalize(ctx context.Context, disputeID uuid.UUID) (*entity.Dispute, error) {
	return e.mutate(ctx, disputeID, func(ctx context.Context, d *entity.Dispute, now time.Time) error {
		return e.finalize(ctx, d, now)
	})
}

func (e *Engine) finalize(ctx context.Context, d *entity.Dispute, now time.Time) error {
	if err := d.CheckFinalizable(now); err != nil {
		return err
	}
	// Порядок блокировок: спор, проект, счёт эскроу.
	if _, err := e.projects.FindForUpdate(ctx, d.ProjectID); err != nil {
		return err
	}
	clientWins, err := d.Finalize(now)
	if err != nil {
		return err
	}

	if clientWins {
		if _, err := e.escrow.Refund(ctx, d.ProjectID, d.ClientID, d.MilestoneAmount, e.self()); err != nil {
			return err
		}
		if _, err := e.resolver.ResolveDispute(ctx, d.ProjectID, valueobject.ProjectStatusCancelled, e.self()); err != nil {
			return err
		}
		if err := e.sweep(ctx, d); err != nil {
			return err
		}
	} else {
		if _, err := e.escrow.Release(ctx, d.ProjectID, d.FreelancerID, d.MilestoneAmount, e.self()); err != nil {
			return err
		}
		if _, err := e.resolver.ResolveDispute(ctx, d.ProjectID, valueobject.ProjectStatusActive, e.self()); err != nil {
			return err
		}
	}

	e.publish(ctx, event.DisputeFinalized, d, uuid.Nil, now, map[string]any{
		"client_wins":          clientWins,
		"votes_for_client":     d.VotesForClient,
		"votes_for_freelancer": d.VotesForFreelancer,
	})
	logger.Component("disputes").WithFields(logrus.Fields{
		"dispute_id":  d.ID,
		"project_id":  d.ProjectID,
		"client_wins": clientWins,
	}).Info("спор завершён")
	return nil
}

// sweep возвращает клиенту остаток эскроу отменённого проекта.
func (e *Engine) sweep(ctx context.Context, d *entity.Dispute) error {
	account, err := e.escrow.Account(ctx, d.ProjectID)
	if err != nil || account == nil || account.Balance.IsZero() {
		return err
	}
	_, err = e.escrow.Refund(ctx, d.ProjectID, d.ClientID, account.Balance, e.self())
	return err
}

// Get возвращает спор.
func (e *Engine) Get(ctx context.Context, disputeID uuid.UUID) (*entity.Dispute, error) {
	return e.disputes.FindByID(ctx, disputeID)
}

// ListForArbitrator возвращает споры, в панель которых входит арбитр.
func (e *Engine) ListForArbitrator(ctx context.Context, arbitrator uuid.UUID) ([]*entity.Dispute, error) {
	return e.disputes.ListByArbitrator(ctx, arbitrator)
}

func (e *Engine) mutate(ctx context.Context, disputeID uuid.UUID, fn func(ctx context.Context, d *entity.Dispute, now time.Time) error) (*entity.Dispute, error) {
	var dispute *entity.Dispute
	err := e.tx.WithinTx(ctx, func(ctx context.Context) error {
		d, err := e.disputes.FindForUpdate(ctx, disputeID)
		if err != nil {
			return err
		}
		if err := fn(ctx, d, e.now()); err != nil {
			return err
		}
		if err := e.disputes.Update(ctx, d); err != nil {
			return err
		}
		dispute = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dispute, nil
}

func (e *Engine) publish(ctx context.Context, typ event.Type, d *entity.Dispute, actor uuid.UUID, now time.Time, data map[string]any) {
	recipients := make([]uuid.UUID, 0, len(d.Panel)+2)
	recipients = append(recipients, d.ClientID, d.FreelancerID)
	recipients = append(recipients, d.Panel...)
	evt := event.Event{
		Type:       typ,
		ProjectID:  d.ProjectID,
		DisputeID:  d.ID,
		Actor:      actor,
		Recipients: recipients,
		Amount:     d.MilestoneAmount,
		Data:       data,
		OccurredAt: now,
	}
	e.tx.AfterCommit(ctx, func() {
		e.publisher.Publish(ctx, evt)
	})
}

func panelSeed(projectID uuid.UUID, milestoneIndex int, reasonRef string) []byte {
	seed := make([]byte, 0, len(projectID)+8+len(reasonRef))
	seed = append(seed, projectID[:]...)
	seed = binary.BigEndian.AppendUint64(seed, uint64(milestoneIndex))
	return append(seed, reasonRef...)
}
