package entity

import (
	"time"

	"github.com/google/uuid"
)

// PlatformSettings - сохранённое состояние реестра: принципалы, адреса компонентов и параметры.
type PlatformSettings struct {
	OwnerID    uuid.UUID
	OperatorID uuid.UUID
	TreasuryID uuid.UUID

	EscrowID   uuid.UUID
	ProjectsID uuid.UUID
	DisputesID uuid.UUID
	PoolID     uuid.UUID

	FeeBps                  uint32
	MinReputationToRegister uint64
	PanelSize               int
	EvidencePeriod          time.Duration
	VotingPeriod            time.Duration

	UpdatedAt time.Time
}
