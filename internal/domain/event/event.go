package event

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ignatzorin/freelance-escrow/internal/domain/valueobject"
)

// Type - тип доменного события; префикс до точки задаёт категорию уведомлений.
type Type string

const (
	EscrowFunded   Type = "escrow.funded"
	EscrowReleased Type = "escrow.released"
	EscrowRefunded Type = "escrow.refunded"

	ProjectStarted     Type = "project.started"
	MilestoneCompleted Type = "project.milestone_completed"
	MilestoneApproved  Type = "project.milestone_approved"
	ProjectDisputed    Type = "project.disputed"
	ProjectResolved    Type = "project.resolved"

	DisputeOpened     Type = "dispute.opened"
	EvidenceSubmitted Type = "dispute.evidence_submitted"
	VotingStarted     Type = "dispute.voting_started"
	VoteCast          Type = "dispute.vote_cast"
	DisputeFinalized  Type = "dispute.finalized"

	ArbitratorRegistered   Type = "arbitration.registered"
	ArbitratorDeregistered Type = "arbitration.deregistered"
)

// Category - категория, от которой пользователь может отписаться.
type Category string

const (
	CategoryEscrow      Category = "escrow"
	CategoryProject     Category = "project"
	CategoryDispute     Category = "dispute"
	CategoryArbitration Category = "arbitration"
)

// Categories перечисляет все категории уведомлений.
var Categories = []Category{CategoryEscrow, CategoryProject, CategoryDispute, CategoryArbitration}

func (t Type) Category() Category {
	prefix, _, _ := strings.Cut(string(t), ".")
	return Category(prefix)
}

// ParseCategory проверяет имя категории.
func ParseCategory(s string) (Category, bool) {
	for _, c := range Categories {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// Event публикуется после фиксации транзакции.
type Event struct {
	Type       Type
	ProjectID  uuid.UUID
	DisputeID  uuid.UUID
	Actor      uuid.UUID
	Recipients []uuid.UUID
	Currency   valueobject.Currency
	Amount     valueobject.Amount
	Data       map[string]any
	OccurredAt time.Time
}

// Publisher получает события после успешного коммита.
type Publisher interface {
	Publish(ctx context.Context, evt Event)
}

// Multi рассылает событие нескольким получателям.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, evt Event) {
	for _, p := range m {
		if p != nil {
			p.Publish(ctx, evt)
		}
	}
}

// Nop игнорирует события.
type Nop struct{}

func (Nop) Publish(context.Context, Event) {}
