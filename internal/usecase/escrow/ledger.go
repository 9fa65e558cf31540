package escrow

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/freelance-escrow/internal/domain/entity"
	"github.com/ignatzorin/freelance-escrow/internal/domain/event"
	"github.com/ignatzorin/freelance-escrow/internal/domain/repository"
	"github.com/ignatzorin/freelance-escrow/internal/domain/valueobject"
	"github.com/ignatzorin/freelance-escrow/internal/logger"
	"github.com/ignatzorin/freelance-escrow/internal/pkg/apperror"
	"github.com/ignatzorin/freelance-escrow/internal/usecase/registry"
)

// ProjectLookup - доступ эскроу к проектам для проверки плательщика.
type ProjectLookup interface {
	FindForUpdate(ctx context.Context, id uuid.UUID) (*entity.Project, error)
}

// Movement описывает результат выплаты или возврата.
type Movement struct {
	ProjectID uuid.UUID
	Recipient uuid.UUID
	Currency  valueobject.Currency
	Gross     valueobject.Amount
	Fee       valueobject.Amount
	Net       valueobject.Amount
}

// Ledger - единственный хранитель средств проектов.
type Ledger struct {
	tx        repository.Transactor
	accounts  repository.EscrowRepository
	projects  ProjectLookup
	funds     repository.FundsTransfer
	registry  *registry.Registry
	publisher event.Publisher
	now       func() time.Time
}

func NewLedger(
	tx repository.Transactor,
	accounts repository.EscrowRepository,
	projects ProjectLookup,
	funds repository.FundsTransfer,
	reg *registry.Registry,
	publisher event.Publisher,
) *Ledger {
	if publisher == nil {
		publisher = event.Nop{}
	}
	return &Ledger{
		tx:        tx,
		accounts:  accounts,
		projects:  projects,
		funds:     funds,
		registry:  reg,
		publisher: publisher,
		now:       time.Now,
	}
}

// SetNowFunc подменяет часы (для тестов).
func (l *Ledger) SetNowFunc(now func() time.Time) {
	if now != nil {
		l.now = now
	}
}

// Fund пополняет эскроу проекта со счёта клиента. Первое пополнение фиксирует валюту.
func (l *Ledger) Fund(ctx context.Context, projectID, payer uuid.UUID, currency valueobject.Currency, amount valueobject.Amount) (*entity.EscrowAccount, error) {
	if amount.IsZero() {
		return nil, apperror.ErrInvalidAmount
	}

	var account *entity.EscrowAccount
	err := l.tx.WithinTx(ctx, func(ctx context.Context) error {
		project, err := l.projects.FindForUpdate(ctx, projectID)
		if err != nil {
			return err
		}
		if project.ClientID != payer {
			return apperror.ErrNotProjectClient
		}
		if project.Status.IsTerminal() {
			return apperror.ErrProjectTerminal
		}

		now := l.now()
		account, err = l.accounts.FindAccountForUpdate(ctx, projectID)
		if err != nil {
			return err
		}
		if account == nil {
			account = entity.NewEscrowAccount(projectID, currency, now)
		}
		if err := account.Credit(currency, amount, now); err != nil {
			return err
		}
		if err := l.funds.Collect(ctx, payer, currency, amount); err != nil {
			return transferFailed(err)
		}
		if err := l.accounts.SaveAccount(ctx, account); err != nil {
			return err
		}
		entry := entity.NewLedgerEntry(projectID, entity.LedgerEntryFund, payer, l.registry.Address(registry.ComponentEscrow), currency, amount, now)
		if err := l.accounts.AppendEntry(ctx, entry); err != nil {
			return err
		}

		l.tx.AfterCommit(ctx, func() {
			l.publisher.Publish(ctx, event.Event{
				Type:       event.EscrowFunded,
				ProjectID:  projectID,
				Actor:      payer,
				Recipients: []uuid.UUID{project.ClientID, project.FreelancerID},
				Currency:   currency,
				Amount:     amount,
				OccurredAt: now,
			})
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Component("escrow").WithFields(logrus.Fields{
		"project_id": projectID,
		"currency":   currency,
		"amount":     amount.String(),
	}).Info("эскроу пополнено")
	return account, nil
}

// Release выплачивает сумму получателю за вычетом комиссии платформы.
// Вызывать может только машина состояний проекта или движок споров.
func (l *Ledger) Release(ctx context.Context, projectID, recipient uuid.UUID, amount valueobject.Amount, caller uuid.UUID) (Movement, error) {
	if !l.registry.Is(registry.ComponentProjects, caller) && !l.registry.Is(registry.ComponentDisputes, caller) {
		return Movement{}, apperror.ErrNotAuthorizedCaller
	}
	return l.payout(ctx, entity.LedgerEntryRelease, projectID, recipient, amount, caller)
}

// Refund возвращает сумму клиенту без комиссии. Вызывать может только движок споров.
func (l *Ledger) Refund(ctx context.Context, projectID, recipient uuid.UUID, amount valueobject.Amount, caller uuid.UUID) (Movement, error) {
	if !l.registry.Is(registry.ComponentDisputes, caller) {
		return Movement{}, apperror.ErrNotAuthorizedCaller
	}
	return l.payout(ctx, entity.LedgerEntryRefund, projectID, recipient, amount, caller)
}

func (l *Ledger) payout(ctx context.Context, kind entity.LedgerEntryKind, projectID, recipient uuid.UUID, amount valueobject.Amount, caller uuid.UUID) (Movement, error) {
	if amount.IsZero() {
		return Movement{}, apperror.ErrInvalidAmount
	}
	if recipient == uuid.Nil {
		return Movement{}, apperror.ErrInvalidAddress
	}

	mv := Movement{ProjectID: projectID, Recipient: recipient, Gross: amount, Net: amount}
	err := l.tx.WithinTx(ctx, func(ctx context.Context) error {
		account, err := l.accounts.FindAccountForUpdate(ctx, projectID)
		if err != nil {
			return err
		}
		if account == nil {
			return apperror.ErrInsufficientEscrowBalance
		}
		mv.Currency = account.Currency

		now := l.now()
		var entries []entity.LedgerEntry
		if kind == entity.LedgerEntryRelease {
			mv.Fee = amount.BasisPoints(l.registry.Params().FeeBps)
			if mv.Net, err = amount.Sub(mv.Fee); err != nil {
				return err
			}
			if err := account.DebitRelease(amount, mv.Fee, now); err != nil {
				return err
			}
			if !mv.Fee.IsZero() {
				treasury := l.registry.Treasury()
				if err := l.funds.Pay(ctx, treasury, account.Currency, mv.Fee); err != nil {
					return transferFailed(err)
				}
				entries = append(entries, entity.NewLedgerEntry(projectID, entity.LedgerEntryFee, caller, treasury, account.Currency, mv.Fee, now))
			}
		} else if err := account.DebitRefund(amount, now); err != nil {
			return err
		}

		if !mv.Net.IsZero() {
			if err := l.funds.Pay(ctx, recipient, account.Currency, mv.Net); err != nil {
				return transferFailed(err)
			}
			entries = append(entries, entity.NewLedgerEntry(projectID, kind, caller, recipient, account.Currency, mv.Net, now))
		}

		if err := l.accounts.SaveAccount(ctx, account); err != nil {
			return err
		}
		for _, e := range entries {
			if err := l.accounts.AppendEntry(ctx, e); err != nil {
				return err
			}
		}

		evtType := event.EscrowReleased
		if kind == entity.LedgerEntryRefund {
			evtType = event.EscrowRefunded
		}
		l.tx.AfterCommit(ctx, func() {
			l.publisher.Publish(ctx, event.Event{
				Type:       evtType,
				ProjectID:  projectID,
				Actor:      caller,
				Recipients: []uuid.UUID{recipient},
				Currency:   mv.Currency,
				Amount:     mv.Net,
				Data:       map[string]any{"gross": mv.Gross.String(), "fee": mv.Fee.String()},
				OccurredAt: now,
			})
		})
		return nil
	})
	if err != nil {
		return Movement{}, err
	}

	logger.Component("escrow").WithFields(logrus.Fields{
		"project_id": projectID,
		"kind":       kind,
		"recipient":  recipient,
		"gross":      mv.Gross.String(),
		"fee":        mv.Fee.String(),
	}).Info("средства эскроу выплачены")
	return mv, nil
}

// BalanceOf возвращает остаток эскроу в валюте; для чужой валюты - ноль.
func (l *Ledger) BalanceOf(ctx context.Context, projectID uuid.UUID, currency valueobject.Currency) (valueobject.Amount, error) {
	account, err := l.accounts.FindAccount(ctx, projectID)
	if err != nil {
		return valueobject.Amount{}, err
	}
	if account == nil || account.Currency != currency {
		return valueobject.ZeroAmount(), nil
	}
	return account.Balance, nil
}

// Account возвращает счёт проекта или nil, если он ещё не пополнялся.
func (l *Ledger) Account(ctx context.Context, projectID uuid.UUID) (*entity.EscrowAccount, error) {
	return l.accounts.FindAccount(ctx, projectID)
}

// Entries возвращает журнал движений средств проекта.
func (l *Ledger) Entries(ctx context.Context, projectID uuid.UUID) ([]entity.LedgerEntry, error) {
	return l.accounts.ListEntries(ctx, projectID)
}

func transferFailed(err error) error {
	return apperror.ErrTransferFailed.WithCause(err)
}
