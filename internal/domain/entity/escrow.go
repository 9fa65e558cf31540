package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/ignatzorin/freelance-escrow/internal/domain/valueobject"
	"github.com/ignatzorin/freelance-escrow/internal/pkg/apperror"
)

// EscrowAccount хранит средства проекта в единственной валюте.
type EscrowAccount struct {
	ProjectID uuid.UUID
	Currency  valueobject.Currency
	Balance   valueobject.Amount
	Funded    valueobject.Amount
	Released  valueobject.Amount
	Refunded  valueobject.Amount
	Fees      valueobject.Amount
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewEscrowAccount открывает счёт и фиксирует его валюту.
func NewEscrowAccount(projectID uuid.UUID, currency valueobject.Currency, now time.Time) *EscrowAccount {
	return &EscrowAccount{
		ProjectID: projectID,
		Currency:  currency,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Credit зачисляет средства.
func (a *EscrowAccount) Credit(currency valueobject.Currency, amount valueobject.Amount, now time.Time) error {
	if currency != a.Currency {
		return apperror.ErrCurrencyMismatch
	}
	if amount.IsZero() {
		return apperror.ErrInvalidAmount
	}
	balance, err := a.Balance.Add(amount)
	if err != nil {
		return err
	}
	funded, err := a.Funded.Add(amount)
	if err != nil {
		return err
	}
	a.Balance, a.Funded, a.UpdatedAt = balance, funded, now
	return nil
}

// DebitRelease списывает выплату исполнителю; fee входит в amount.
func (a *EscrowAccount) DebitRelease(amount, fee valueobject.Amount, now time.Time) error {
	balance, err := a.debit(amount)
	if err != nil {
		return err
	}
	released, err := a.Released.Add(amount)
	if err != nil {
		return err
	}
	fees, err := a.Fees.Add(fee)
	if err != nil {
		return err
	}
	a.Balance, a.Released, a.Fees, a.UpdatedAt = balance, released, fees, now
	return nil
}

// DebitRefund списывает возврат клиенту.
func (a *EscrowAccount) DebitRefund(amount valueobject.Amount, now time.Time) error {
	balance, err := a.debit(amount)
	if err != nil {
		return err
	}
	refunded, err := a.Refunded.Add(amount)
	if err != nil {
		return err
	}
	a.Balance, a.Refunded, a.UpdatedAt = balance, refunded, now
	return nil
}

func (a *EscrowAccount) debit(amount valueobject.Amount) (valueobject.Amount, error) {
	if amount.IsZero() {
		return valueobject.Amount{}, apperror.ErrInvalidAmount
	}
	if a.Balance.LessThan(amount) {
		return valueobject.Amount{}, apperror.ErrInsufficientEscrowBalance
	}
	return a.Balance.Sub(amount)
}

// Conserved проверяет funded == released + refunded + balance.
func (a *EscrowAccount) Conserved() bool {
	out, err := a.Released.Add(a.Refunded)
	if err != nil {
		return false
	}
	out, err = out.Add(a.Balance)
	if err != nil {
		return false
	}
	return out.Equal(a.Funded)
}

func (a *EscrowAccount) Clone() *EscrowAccount {
	cp := *a
	return &cp
}

// LedgerEntryKind - тип движения средств.
type LedgerEntryKind string

const (
	LedgerEntryFund    LedgerEntryKind = "fund"
	LedgerEntryRelease LedgerEntryKind = "release"
	LedgerEntryFee     LedgerEntryKind = "fee"
	LedgerEntryRefund  LedgerEntryKind = "refund"
)

// LedgerEntry - запись аудита движения средств эскроу.
type LedgerEntry struct {
	ID           uuid.UUID
	ProjectID    uuid.UUID
	Kind         LedgerEntryKind
	Mover        uuid.UUID
	Counterparty uuid.UUID
	Currency     valueobject.Currency
	Amount       valueobject.Amount
	CreatedAt    time.Time
}

// NewLedgerEntry создаёт запись аудита.
func NewLedgerEntry(projectID uuid.UUID, kind LedgerEntryKind, mover, counterparty uuid.UUID, currency valueobject.Currency, amount valueobject.Amount, now time.Time) LedgerEntry {
	return LedgerEntry{
		ID:           uuid.New(),
		ProjectID:    projectID,
		Kind:         kind,
		Mover:        mover,
		Counterparty: counterparty,
		Currency:     currency,
		Amount:       amount,
		CreatedAt:    now,
	}
}
