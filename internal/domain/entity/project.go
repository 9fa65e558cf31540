package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/ignatzorin/freelance-escrow/internal/domain/valueobject"
	"github.com/ignatzorin/freelance-escrow/internal/pkg/apperror"
)

// Project - договор между клиентом и исполнителем с поэтапной оплатой.
type Project struct {
	ID             uuid.UUID
	JobID          uuid.UUID
	ClientID       uuid.UUID
	FreelancerID   uuid.UUID
	Budget         valueobject.Amount
	Deadline       time.Time
	Status         valueobject.ProjectStatus
	Milestones     []Milestone
	CompletedCount int
	ApprovedCount  int
	// DisputedMilestone указывает на этап, по которому открыт спор.
	DisputedMilestone *int
	StartedAt         time.Time
	UpdatedAt         time.Time
}

// Milestone - этап проекта с собственной суммой.
type Milestone struct {
	Index       int
	Description string
	Amount      valueobject.Amount
	Completed   bool
	Approved    bool
	// Arbitrated отмечает этап, оплаченный по решению арбитража.
	Arbitrated  bool
	CompletedAt *time.Time
	ApprovedAt  *time.Time
}

// MilestoneSpec описывает этап при создании проекта.
type MilestoneSpec struct {
	Description string
	Amount      valueobject.Amount
}

// NewProject проверяет условия договора и создаёт проект в статусе Active.
func NewProject(jobID, clientID, freelancerID uuid.UUID, budget valueobject.Amount, deadline time.Time, specs []MilestoneSpec, now time.Time) (*Project, error) {
	if clientID == uuid.Nil || freelancerID == uuid.Nil || clientID == freelancerID {
		return nil, apperror.ErrInvalidParties
	}
	if budget.IsZero() {
		return nil, apperror.ErrInvalidAmount.WithMessage("бюджет должен быть больше нуля")
	}
	if !deadline.After(now) {
		return nil, apperror.ErrInvalidDeadline
	}
	if len(specs) == 0 {
		return nil, apperror.ErrEmptyMilestones
	}

	sum := valueobject.ZeroAmount()
	milestones := make([]Milestone, len(specs))
	for i, spec := range specs {
		if spec.Amount.IsZero() {
			return nil, apperror.ErrInvalidAmount.WithMessage("сумма этапа %d должна быть больше нуля", i)
		}
		var err error
		if sum, err = sum.Add(spec.Amount); err != nil {
			return nil, apperror.ErrInvalidMilestoneSum.WithCause(err)
		}
		milestones[i] = Milestone{Index: i, Description: spec.Description, Amount: spec.Amount}
	}
	if !sum.Equal(budget) {
		return nil, apperror.ErrInvalidMilestoneSum
	}

	return &Project{
		ID:           uuid.New(),
		JobID:        jobID,
		ClientID:     clientID,
		FreelancerID: freelancerID,
		Budget:       budget,
		Deadline:     deadline,
		Status:       valueobject.ProjectStatusActive,
		Milestones:   milestones,
		StartedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (p *Project) IsParticipant(userID uuid.UUID) bool {
	return userID != uuid.Nil && (p.ClientID == userID || p.FreelancerID == userID)
}

func (p *Project) milestone(index int) (*Milestone, error) {
	if index < 0 || index >= len(p.Milestones) {
		return nil, apperror.ErrInvalidMilestone
	}
	return &p.Milestones[index], nil
}

// MarkMilestoneCompleted отмечает этап выполненным по запросу исполнителя.
func (p *Project) MarkMilestoneCompleted(caller uuid.UUID, index int, now time.Time) error {
	if caller != p.FreelancerID {
		return apperror.ErrNotFreelancer
	}
	if p.Status != valueobject.ProjectStatusActive {
		return apperror.ErrProjectNotActive
	}
	m, err := p.milestone(index)
	if err != nil {
		return err
	}
	if m.Completed || m.Approved {
		return apperror.ErrMilestoneAlreadyCompleted
	}
	m.Completed = true
	m.CompletedAt = &now
	p.CompletedCount++
	p.UpdatedAt = now
	return nil
}

// ApproveMilestone одобряет выполненный этап и возвращает сумму к выплате.
func (p *Project) ApproveMilestone(caller uuid.UUID, index int, now time.Time) (valueobject.Amount, error) {
	if caller != p.ClientID {
		return valueobject.Amount{}, apperror.ErrNotClient
	}
	if p.Status != valueobject.ProjectStatusActive {
		return valueobject.Amount{}, apperror.ErrProjectNotActive
	}
	m, err := p.milestone(index)
	if err != nil {
		return valueobject.Amount{}, err
	}
	if m.Approved {
		return valueobject.Amount{}, apperror.ErrAlreadyApproved
	}
	if !m.Completed {
		return valueobject.Amount{}, apperror.ErrMilestoneNotCompleted
	}
	p.approve(m, now)
	if p.AllApproved() {
		p.Status = valueobject.ProjectStatusCompleted
	}
	return m.Amount, nil
}

func (p *Project) approve(m *Milestone, now time.Time) {
	m.Approved = true
	m.ApprovedAt = &now
	p.ApprovedCount++
	p.UpdatedAt = now
}

// AllApproved сообщает, что все этапы одобрены.
func (p *Project) AllApproved() bool {
	return p.ApprovedCount == len(p.Milestones)
}

// OpenDispute переводит проект в Disputed по выполненному, но не одобренному этапу.
func (p *Project) OpenDispute(caller uuid.UUID, index int, now time.Time) (valueobject.Amount, error) {
	if !p.IsParticipant(caller) {
		return valueobject.Amount{}, apperror.ErrNotParticipant
	}
	if p.Status != valueobject.ProjectStatusActive {
		return valueobject.Amount{}, apperror.ErrProjectNotActive
	}
	m, err := p.milestone(index)
	if err != nil {
		return valueobject.Amount{}, err
	}
	if !m.Completed || m.Approved {
		return valueobject.Amount{}, apperror.ErrMilestoneNotDisputable
	}
	p.Status = valueobject.ProjectStatusDisputed
	idx := index
	p.DisputedMilestone = &idx
	p.UpdatedAt = now
	return m.Amount, nil
}

// ResolveDispute применяет исход спора. При возврате в Active спорный этап
// считается оплаченным арбитражем; если этапов больше не осталось, проект завершается.
func (p *Project) ResolveDispute(outcome valueobject.ProjectStatus, now time.Time) (valueobject.ProjectStatus, error) {
	if p.Status != valueobject.ProjectStatusDisputed {
		return "", apperror.ErrProjectNotDisputed
	}
	if outcome == valueobject.ProjectStatusDisputed || !p.Status.CanTransitionTo(outcome) {
		return "", apperror.ErrInvalidOutcome
	}

	if outcome != valueobject.ProjectStatusCancelled && p.DisputedMilestone != nil {
		m := &p.Milestones[*p.DisputedMilestone]
		if !m.Approved {
			m.Arbitrated = true
			p.approve(m, now)
		}
	}
	if outcome == valueobject.ProjectStatusActive && p.AllApproved() {
		outcome = valueobject.ProjectStatusCompleted
	}

	p.Status = outcome
	p.DisputedMilestone = nil
	p.UpdatedAt = now
	return outcome, nil
}

// Clone возвращает независимую копию проекта.
func (p *Project) Clone() *Project {
	cp := *p
	cp.Milestones = append([]Milestone(nil), p.Milestones...)
	if p.DisputedMilestone != nil {
		idx := *p.DisputedMilestone
		cp.DisputedMilestone = &idx
	}
	return &cp
}
