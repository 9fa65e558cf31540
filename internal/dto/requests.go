package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/freelance-escrow/internal/domain/valueobject"
)

// RegisterRequest - регистрация пользователя.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// DepositRequest - пополнение кошелька. Пустая валюта означает нативную.
type DepositRequest struct {
	Currency string             `json:"currency"`
	Amount   valueobject.Amount `json:"amount"`
}

type CreateJobRequest struct {
	Title string `json:"title" binding:"required"`
}

// MilestoneRequest описывает этап при создании проекта.
type MilestoneRequest struct {
	Description string             `json:"description" binding:"required"`
	Amount      valueobject.Amount `json:"amount"`
}

// StartProjectRequest - создание проекта по заданию клиента.
type StartProjectRequest struct {
	JobID        uuid.UUID          `json:"job_id" binding:"required"`
	FreelancerID uuid.UUID          `json:"freelancer_id" binding:"required"`
	Budget       valueobject.Amount `json:"budget"`
	Deadline     time.Time          `json:"deadline" binding:"required"`
	Milestones   []MilestoneRequest `json:"milestones" binding:"required,dive"`
}

// FundRequest - пополнение эскроу проекта.
type FundRequest struct {
	Currency string             `json:"currency"`
	Amount   valueobject.Amount `json:"amount"`
}

type DisputeMilestoneRequest struct {
	ReasonRef string `json:"reason_ref"`
}

type EvidenceRequest struct {
	EvidenceRef string `json:"evidence_ref" binding:"required"`
}

// VoteRequest - голос арбитра; true означает победу клиента.
type VoteRequest struct {
	ForClient *bool `json:"for_client" binding:"required"`
}

type RegisterArbitratorRequest struct {
	ProfileRef string `json:"profile_ref"`
}

type FeedbackRequest struct {
	ProjectID uuid.UUID `json:"project_id" binding:"required"`
	Score     int       `json:"score" binding:"required"`
	Comment   *string   `json:"comment"`
}

// ParamsRequest - параметры платформы; периоды задаются в секундах.
type ParamsRequest struct {
	FeeBps                  uint32 `json:"fee_bps"`
	MinReputationToRegister uint64 `json:"min_reputation_to_register"`
	PanelSize               int    `json:"panel_size" binding:"required"`
	EvidencePeriodSeconds   int64  `json:"evidence_period_seconds" binding:"required"`
	VotingPeriodSeconds     int64  `json:"voting_period_seconds" binding:"required"`
}

type ReferenceRequest struct {
	Address uuid.UUID `json:"address" binding:"required"`
}
