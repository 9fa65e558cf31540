package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ignatzorin/freelance-escrow/internal/domain/valueobject"
	"github.com/ignatzorin/freelance-escrow/internal/pkg/apperror"
)

// Job - задание клиента, из которого рождается проект.
type Job struct {
	ID        uuid.UUID
	ClientID  uuid.UUID
	Title     string
	Status    valueobject.JobStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewJob(clientID uuid.UUID, title string, now time.Time) (*Job, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "название задания обязательно")
	}
	if clientID == uuid.Nil {
		return nil, apperror.ErrInvalidAddress
	}
	return &Job{
		ID:        uuid.New(),
		ClientID:  clientID,
		Title:     title,
		Status:    valueobject.JobStatusOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
