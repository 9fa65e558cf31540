package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/ignatzorin/freelance-escrow/internal/domain/valueobject"
	"github.com/ignatzorin/freelance-escrow/internal/pkg/apperror"
)

// Dispute - арбитражный спор по одному этапу проекта.
type Dispute struct {
	ID              uuid.UUID
	ProjectID       uuid.UUID
	MilestoneIndex  int
	MilestoneAmount valueobject.Amount
	ClientID        uuid.UUID
	FreelancerID    uuid.UUID
	ReasonRef       string
	// Panel - места панели; один адрес может занимать несколько мест.
	Panel              []uuid.UUID
	Ballots            map[uuid.UUID]Ballot
	Evidence           map[uuid.UUID]Evidence
	VotesForClient     int
	VotesForFreelancer int
	Status             valueobject.DisputeStatus
	StartedAt          time.Time
	EvidenceDeadline   time.Time
	VotingDeadline     *time.Time
	ClientWon          *bool
	FinalizedAt        *time.Time
	UpdatedAt          time.Time
}

// Ballot - голос арбитра.
type Ballot struct {
	Arbitrator uuid.UUID
	ForClient  bool
	CastAt     time.Time
}

// Evidence - последнее доказательство стороны.
type Evidence struct {
	Submitter   uuid.UUID
	Ref         string
	SubmittedAt time.Time
}

// DisputeParams - параметры нового спора.
type DisputeParams struct {
	ProjectID       uuid.UUID
	MilestoneIndex  int
	MilestoneAmount valueobject.Amount
	ClientID        uuid.UUID
	FreelancerID    uuid.UUID
	ReasonRef       string
	Panel           []uuid.UUID
	EvidencePeriod  time.Duration
}

// NewDispute открывает спор в стадии сбора доказательств.
func NewDispute(p DisputeParams, now time.Time) (*Dispute, error) {
	if len(p.Panel) == 0 {
		return nil, apperror.ErrInsufficientArbitrators
	}
	if p.MilestoneAmount.IsZero() {
		return nil, apperror.ErrInvalidAmount
	}
	return &Dispute{
		ID:               uuid.New(),
		ProjectID:        p.ProjectID,
		MilestoneIndex:   p.MilestoneIndex,
		MilestoneAmount:  p.MilestoneAmount,
		ClientID:         p.ClientID,
		FreelancerID:     p.FreelancerID,
		ReasonRef:        p.ReasonRef,
		Panel:            append([]uuid.UUID(nil), p.Panel...),
		Ballots:          make(map[uuid.UUID]Ballot),
		Evidence:         make(map[uuid.UUID]Evidence),
		Status:           valueobject.DisputeStatusEvidence,
		StartedAt:        now,
		EvidenceDeadline: now.Add(p.EvidencePeriod),
		UpdatedAt:        now,
	}, nil
}

func (d *Dispute) IsParty(userID uuid.UUID) bool {
	return userID != uuid.Nil && (userID == d.ClientID || userID == d.FreelancerID)
}

func (d *Dispute) IsPanelMember(addr uuid.UUID) bool {
	for _, m := range d.Panel {
		if m == addr {
			return true
		}
	}
	return false
}

// SubmitEvidence сохраняет доказательство стороны (последняя запись побеждает).
func (d *Dispute) SubmitEvidence(submitter uuid.UUID, ref string, now time.Time) error {
	if !d.IsParty(submitter) {
		return apperror.ErrNotParticipant
	}
	if d.Status != valueobject.DisputeStatusEvidence {
		return apperror.ErrDisputeNotInEvidence
	}
	if now.After(d.EvidenceDeadline) {
		return apperror.ErrEvidencePeriodClosed
	}
	d.Evidence[submitter] = Evidence{Submitter: submitter, Ref: ref, SubmittedAt: now}
	d.UpdatedAt = now
	return nil
}

// StartVoting закрывает сбор доказательств и открывает голосование.
func (d *Dispute) StartVoting(votingPeriod time.Duration, now time.Time) error {
	if d.Status != valueobject.DisputeStatusEvidence {
		return apperror.ErrDisputeNotInEvidence
	}
	if !now.After(d.EvidenceDeadline) {
		return apperror.ErrEvidencePeriodOpen
	}
	deadline := now.Add(votingPeriod)
	d.Status = valueobject.DisputeStatusVoting
	d.VotingDeadline = &deadline
	d.UpdatedAt = now
	return nil
}

// CastVote учитывает голос арбитра.
func (d *Dispute) CastVote(arbitrator uuid.UUID, forClient bool, now time.Time) error {
	if !d.IsPanelMember(arbitrator) {
		return apperror.ErrNotPanelMember
	}
	if d.Status == valueobject.DisputeStatusFinalized {
		return apperror.ErrVotingClosed
	}
	if d.Status != valueobject.DisputeStatusVoting {
		return apperror.ErrDisputeNotVoting
	}
	if now.After(*d.VotingDeadline) {
		return apperror.ErrVotingClosed
	}
	if _, voted := d.Ballots[arbitrator]; voted {
		return apperror.ErrAlreadyVoted
	}
	d.Ballots[arbitrator] = Ballot{Arbitrator: arbitrator, ForClient: forClient, CastAt: now}
	if forClient {
		d.VotesForClient++
	} else {
		d.VotesForFreelancer++
	}
	d.UpdatedAt = now
	return nil
}

// AllVoted сообщает, что число голосов достигло размера панели.
func (d *Dispute) AllVoted() bool {
	return d.VotesForClient+d.VotesForFreelancer == len(d.Panel)
}

// CheckFinalizable проверяет, можно ли подводить итог.
func (d *Dispute) CheckFinalizable(now time.Time) error {
	if d.Status != valueobject.DisputeStatusVoting {
		return apperror.ErrDisputeNotVoting
	}
	if !now.After(*d.VotingDeadline) && !d.AllVoted() {
		return apperror.ErrVotingStillOpen
	}
	return nil
}

// Finalize фиксирует исход: клиент побеждает только строгим большинством.
func (d *Dispute) Finalize(now time.Time) (clientWins bool, err error) {
	if err := d.CheckFinalizable(now); err != nil {
		return false, err
	}
	clientWins = d.VotesForClient > d.VotesForFreelancer
	d.Status = valueobject.DisputeStatusFinalized
	d.ClientWon = &clientWins
	d.FinalizedAt = &now
	d.UpdatedAt = now
	return clientWins, nil
}

// Clone возвращает независимую копию спора.
func (d *Dispute) Clone() *Dispute {
	cp := *d
	cp.Panel = append([]uuid.UUID(nil), d.Panel...)
	cp.Ballots = make(map[uuid.UUID]Ballot, len(d.Ballots))
	for k, v := range d.Ballots {
		cp.Ballots[k] = v
	}
	cp.Evidence = make(map[uuid.UUID]Evidence, len(d.Evidence))
	for k, v := range d.Evidence {
		cp.Evidence[k] = v
	}
	if d.VotingDeadline != nil {
		t := *d.VotingDeadline
		cp.VotingDeadline = &t
	}
	if d.ClientWon != nil {
		w := *d.ClientWon
		cp.ClientWon = &w
	}
	if d.FinalizedAt != nil {
		t := *d.FinalizedAt
		cp.FinalizedAt = &t
	}
	return &cp
}
