package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/ignatzorin/freelance-escrow/internal/domain/valueobject"
)

// User описывает участника платформы.
type User struct {
	ID           uuid.UUID
	Email        string
	Username     string
	PasswordHash string
	Role         valueobject.Role
	IsActive     bool
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Feedback - оценка контрагента после завершения проекта.
type Feedback struct {
	ID        uuid.UUID
	ProjectID uuid.UUID
	AuthorID  uuid.UUID
	SubjectID uuid.UUID
	Score     int
	Comment   *string
	CreatedAt time.Time
}

// WalletBalance - остаток пользователя в одной валюте.
type WalletBalance struct {
	UserID    uuid.UUID
	Currency  valueobject.Currency
	Available valueobject.Amount
	Blocked   bool
	UpdatedAt time.Time
}
