package dto

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/freelance-escrow/internal/domain/entity"
	"github.com/ignatzorin/freelance-escrow/internal/domain/valueobject"
	"github.com/ignatzorin/freelance-escrow/internal/service"
	"github.com/ignatzorin/freelance-escrow/internal/usecase/registry"
)

type UserResponse struct {
	ID       uuid.UUID        `json:"id"`
	Email    string           `json:"email"`
	Username string           `json:"username"`
	Role     valueobject.Role `json:"role"`
}

func NewUserResponse(u *entity.User) UserResponse {
	return UserResponse{ID: u.ID, Email: u.Email, Username: u.Username, Role: u.Role}
}

type AuthResponse struct {
	User   UserResponse       `json:"user"`
	Tokens *service.TokenPair `json:"tokens"`
}

type WalletBalanceResponse struct {
	Currency  valueobject.Currency `json:"currency"`
	Available valueobject.Amount   `json:"available"`
	Blocked   bool                 `json:"blocked"`
}

func NewWalletBalances(balances []entity.WalletBalance) []WalletBalanceResponse {
	out := make([]WalletBalanceResponse, 0, len(balances))
	for _, b := range balances {
		out = append(out, WalletBalanceResponse{Currency: b.Currency, Available: b.Available, Blocked: b.Blocked})
	}
	return out
}

type JobResponse struct {
	ID        uuid.UUID             `json:"id"`
	ClientID  uuid.UUID             `json:"client_id"`
	Title     string                `json:"title"`
	Status    valueobject.JobStatus `json:"status"`
	CreatedAt time.Time             `json:"created_at"`
}

func NewJobResponse(j *entity.Job) JobResponse {
	return JobResponse{ID: j.ID, ClientID: j.ClientID, Title: j.Title, Status: j.Status, CreatedAt: j.CreatedAt}
}

type MilestoneResponse struct {
	Index       int                `json:"index"`
	Description string             `json:"description"`
	Amount      valueobject.Amount `json:"amount"`
	Completed   bool               `json:"completed"`
	Approved    bool               `json:"approved"`
	Arbitrated  bool               `json:"arbitrated"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
	ApprovedAt  *time.Time         `json:"approved_at,omitempty"`
}

type ProjectResponse struct {
	ID                uuid.UUID                 `json:"id"`
	JobID             uuid.UUID                 `json:"job_id"`
	ClientID          uuid.UUID                 `json:"client_id"`
	FreelancerID      uuid.UUID                 `json:"freelancer_id"`
	Budget            valueobject.Amount        `json:"budget"`
	Deadline          time.Time                 `json:"deadline"`
	Status            valueobject.ProjectStatus `json:"status"`
	Milestones        []MilestoneResponse       `json:"milestones"`
	CompletedCount    int                       `json:"completed_count"`
	ApprovedCount     int                       `json:"approved_count"`
	DisputedMilestone *int                      `json:"disputed_milestone,omitempty"`
	StartedAt         time.Time                 `json:"started_at"`
}

func NewProjectResponse(p *entity.Project) ProjectResponse {
	milestones := make([]MilestoneResponse, 0, len(p.Milestones))
	for _, m := range p.Milestones {
		milestones = append(milestones, MilestoneResponse{
			Index:       m.Index,
			Description: m.Description,
			Amount:      m.Amount,
			Completed:   m.Completed,
			Approved:    m.Approved,
			Arbitrated:  m.Arbitrated,
			CompletedAt: m.CompletedAt,
			ApprovedAt:  m.ApprovedAt,
		})
	}
	return ProjectResponse{
		ID:                p.ID,
		JobID:             p.JobID,
		ClientID:          p.ClientID,
		FreelancerID:      p.FreelancerID,
		Budget:            p.Budget,
		Deadline:          p.Deadline,
		Status:            p.Status,
		Milestones:        milestones,
		CompletedCount:    p.CompletedCount,
		ApprovedCount:     p.ApprovedCount,
		DisputedMilestone: p.DisputedMilestone,
		StartedAt:         p.StartedAt,
	}
}

func NewProjectList(projects []*entity.Project) []ProjectResponse {
	out := make([]ProjectResponse, 0, len(projects))
	for _, p := range projects {
		out = append(out, NewProjectResponse(p))
	}
	return out
}

type LedgerEntryResponse struct {
	ID           uuid.UUID              `json:"id"`
	Kind         entity.LedgerEntryKind `json:"kind"`
	Mover        uuid.UUID              `json:"mover"`
	Counterparty uuid.UUID              `json:"counterparty"`
	Currency     valueobject.Currency   `json:"currency"`
	Amount       valueobject.Amount     `json:"amount"`
	CreatedAt    time.Time              `json:"created_at"`
}

// EscrowResponse - состояние эскроу проекта и журнал движений.
type EscrowResponse struct {
	ProjectID uuid.UUID             `json:"project_id"`
	Funded    bool                  `json:"funded"`
	Currency  valueobject.Currency  `json:"currency,omitempty"`
	Balance   valueobject.Amount    `json:"balance"`
	Deposited valueobject.Amount    `json:"deposited"`
	Released  valueobject.Amount    `json:"released"`
	Refunded  valueobject.Amount    `json:"refunded"`
	Fees      valueobject.Amount    `json:"fees"`
	Entries   []LedgerEntryResponse `json:"entries"`
}

func NewEscrowResponse(projectID uuid.UUID, account *entity.EscrowAccount, entries []entity.LedgerEntry) EscrowResponse {
	resp := EscrowResponse{ProjectID: projectID, Entries: make([]LedgerEntryResponse, 0, len(entries))}
	if account != nil {
		resp.Funded = true
		resp.Currency = account.Currency
		resp.Balance = account.Balance
		resp.Deposited = account.Funded
		resp.Released = account.Released
		resp.Refunded = account.Refunded
		resp.Fees = account.Fees
	}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, LedgerEntryResponse{
			ID:           e.ID,
			Kind:         e.Kind,
			Mover:        e.Mover,
			Counterparty: e.Counterparty,
			Currency:     e.Currency,
			Amount:       e.Amount,
			CreatedAt:    e.CreatedAt,
		})
	}
	return resp
}

type EvidenceResponse struct {
	Submitter   uuid.UUID `json:"submitter"`
	Ref         string    `json:"ref"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// DisputeResponse не раскрывает голоса до финализации, только кто уже проголосовал.
type DisputeResponse struct {
	ID                 uuid.UUID                 `json:"id"`
	ProjectID          uuid.UUID                 `json:"project_id"`
	MilestoneIndex     int                       `json:"milestone_index"`
	MilestoneAmount    valueobject.Amount        `json:"milestone_amount"`
	ClientID           uuid.UUID                 `json:"client_id"`
	FreelancerID       uuid.UUID                 `json:"freelancer_id"`
	ReasonRef          string                    `json:"reason_ref,omitempty"`
	Panel              []uuid.UUID               `json:"panel"`
	Voted              []uuid.UUID               `json:"voted"`
	Evidence           []EvidenceResponse        `json:"evidence"`
	Status             valueobject.DisputeStatus `json:"status"`
	StartedAt          time.Time                 `json:"started_at"`
	EvidenceDeadline   time.Time                 `json:"evidence_deadline"`
	VotingDeadline     *time.Time                `json:"voting_deadline,omitempty"`
	VotesForClient     *int                      `json:"votes_for_client,omitempty"`
	VotesForFreelancer *int                      `json:"votes_for_freelancer,omitempty"`
	ClientWon          *bool                     `json:"client_won,omitempty"`
	FinalizedAt        *time.Time                `json:"finalized_at,omitempty"`
}

func NewDisputeResponse(d *entity.Dispute) DisputeResponse {
	resp := DisputeResponse{
		ID:               d.ID,
		ProjectID:        d.ProjectID,
		MilestoneIndex:   d.MilestoneIndex,
		MilestoneAmount:  d.MilestoneAmount,
		ClientID:         d.ClientID,
		FreelancerID:     d.FreelancerID,
		ReasonRef:        d.ReasonRef,
		Panel:            d.Panel,
		Voted:            make([]uuid.UUID, 0, len(d.Ballots)),
		Evidence:         make([]EvidenceResponse, 0, len(d.Evidence)),
		Status:           d.Status,
		StartedAt:        d.StartedAt,
		EvidenceDeadline: d.EvidenceDeadline,
		VotingDeadline:   d.VotingDeadline,
		ClientWon:        d.ClientWon,
		FinalizedAt:      d.FinalizedAt,
	}
	for addr := range d.Ballots {
		resp.Voted = append(resp.Voted, addr)
	}
	sort.Slice(resp.Voted, func(i, j int) bool { return resp.Voted[i].String() < resp.Voted[j].String() })
	for _, ev := range d.Evidence {
		resp.Evidence = append(resp.Evidence, EvidenceResponse{Submitter: ev.Submitter, Ref: ev.Ref, SubmittedAt: ev.SubmittedAt})
	}
	sort.Slice(resp.Evidence, func(i, j int) bool { return resp.Evidence[i].SubmittedAt.Before(resp.Evidence[j].SubmittedAt) })
	if d.Status == valueobject.DisputeStatusFinalized {
		forClient, forFreelancer := d.VotesForClient, d.VotesForFreelancer
		resp.VotesForClient = &forClient
		resp.VotesForFreelancer = &forFreelancer
	}
	return resp
}

func NewDisputeList(disputes []*entity.Dispute) []DisputeResponse {
	out := make([]DisputeResponse, 0, len(disputes))
	for _, d := range disputes {
		out = append(out, NewDisputeResponse(d))
	}
	return out
}

type EvidenceUploadResponse struct {
	Ref         string          `json:"ref"`
	Size        int64           `json:"size"`
	ContentType string          `json:"content_type"`
	Dispute     DisputeResponse `json:"dispute"`
}

type ArbitratorResponse struct {
	Address          uuid.UUID                    `json:"address"`
	ProfileRef       string                       `json:"profile_ref,omitempty"`
	Status           valueobject.ArbitratorStatus `json:"status"`
	RegisteredAt     time.Time                    `json:"registered_at"`
	LastStatusChange time.Time                    `json:"last_status_change"`
}

func NewArbitratorResponse(a *entity.Arbitrator) ArbitratorResponse {
	return ArbitratorResponse{
		Address:          a.Address,
		ProfileRef:       a.ProfileRef,
		Status:           a.Status,
		RegisteredAt:     a.RegisteredAt,
		LastStatusChange: a.LastStatusChange,
	}
}

type FeedbackResponse struct {
	ID        uuid.UUID `json:"id"`
	ProjectID uuid.UUID `json:"project_id"`
	SubjectID uuid.UUID `json:"subject_id"`
	Score     int       `json:"score"`
	Comment   *string   `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func NewFeedbackResponse(f *entity.Feedback) FeedbackResponse {
	return FeedbackResponse{
		ID:        f.ID,
		ProjectID: f.ProjectID,
		SubjectID: f.SubjectID,
		Score:     f.Score,
		Comment:   f.Comment,
		CreatedAt: f.CreatedAt,
	}
}

type ReputationResponse struct {
	UserID     uuid.UUID `json:"user_id"`
	Reputation uint64    `json:"reputation"`
}

type ParamsResponse struct {
	FeeBps                  uint32                           `json:"fee_bps"`
	MinReputationToRegister uint64                           `json:"min_reputation_to_register"`
	PanelSize               int                              `json:"panel_size"`
	EvidencePeriodSeconds   int64                            `json:"evidence_period_seconds"`
	VotingPeriodSeconds     int64                            `json:"voting_period_seconds"`
	Owner                   uuid.UUID                        `json:"owner"`
	Operator                uuid.UUID                        `json:"operator"`
	Treasury                uuid.UUID                        `json:"treasury"`
	References              map[registry.Component]uuid.UUID `json:"references"`
}

func NewParamsResponse(reg *registry.Registry) ParamsResponse {
	p := reg.Params()
	refs := make(map[registry.Component]uuid.UUID, len(registry.Components))
	for _, c := range registry.Components {
		refs[c] = reg.Address(c)
	}
	return ParamsResponse{
		FeeBps:                  p.FeeBps,
		MinReputationToRegister: p.MinReputationToRegister,
		PanelSize:               p.PanelSize,
		EvidencePeriodSeconds:   int64(p.EvidencePeriod / time.Second),
		VotingPeriodSeconds:     int64(p.VotingPeriod / time.Second),
		Owner:                   reg.Owner(),
		Operator:                reg.Operator(),
		Treasury:                reg.Treasury(),
		References:              refs,
	}
}

// ToParams переводит запрос в параметры реестра.
func (r ParamsRequest) ToParams() registry.Params {
	return registry.Params{
		FeeBps:                  r.FeeBps,
		MinReputationToRegister: r.MinReputationToRegister,
		PanelSize:               r.PanelSize,
		EvidencePeriod:          time.Duration(r.EvidencePeriodSeconds) * time.Second,
		VotingPeriod:            time.Duration(r.VotingPeriodSeconds) * time.Second,
	}
}
