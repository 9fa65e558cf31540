package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/freelance-escrow/internal/domain/entity"
	"github.com/ignatzorin/freelance-escrow/internal/domain/repository"
	"github.com/ignatzorin/freelance-escrow/internal/domain/valueobject"
	"github.com/ignatzorin/freelance-escrow/internal/logger"
	"github.com/ignatzorin/freelance-escrow/internal/pkg/apperror"
)

// WalletService хранит остатки пользователей и переводит средства в эскроу и обратно.
// Collect и Pay вызываются внутри транзакции эскроу и присоединяются к ней через ctx.
type WalletService struct {
	tx      repository.Transactor
	wallets repository.WalletRepository
	now     func() time.Time
}

func NewWalletService(tx repository.Transactor, wallets repository.WalletRepository) *WalletService {
	return &WalletService{tx: tx, wallets: wallets, now: time.Now}
}

// Deposit зачисляет средства на кошелёк пользователя.
func (s *WalletService) Deposit(ctx context.Context, userID uuid.UUID, currency valueobject.Currency, amount valueobject.Amount) (*entity.WalletBalance, error) {
	if userID == uuid.Nil {
		return nil, apperror.ErrInvalidAddress
	}
	if amount.IsZero() {
		return nil, apperror.ErrInvalidAmount
	}

	var out *entity.WalletBalance
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		balance, err := s.load(ctx, userID, currency)
		if err != nil {
			return err
		}
		if balance.Available, err = balance.Available.Add(amount); err != nil {
			return err
		}
		balance.UpdatedAt = s.now()
		if err := s.wallets.Save(ctx, balance); err != nil {
			return apperror.Database(err, "не удалось сохранить кошелёк")
		}
		out = balance
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Component("wallet").WithFields(logrus.Fields{
		"user_id":  userID,
		"currency": currency,
		"amount":   amount.String(),
	}).Info("кошелёк пополнен")
	return out, nil
}

// Balances возвращает все остатки пользователя.
func (s *WalletService) Balances(ctx context.Context, userID uuid.UUID) ([]entity.WalletBalance, error) {
	balances, err := s.wallets.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperror.Database(err, "не удалось получить кошелёк")
	}
	return balances, nil
}

// Collect списывает средства с кошелька плательщика.
func (s *WalletService) Collect(ctx context.Context, from uuid.UUID, currency valueobject.Currency, amount valueobject.Amount) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		balance, err := s.wallets.FindForUpdate(ctx, from, currency)
		if err != nil {
			return apperror.Database(err, "не удалось получить кошелёк")
		}
		if balance == nil || balance.Blocked || balance.Available.LessThan(amount) {
			return apperror.ErrInsufficientFunds
		}
		if balance.Available, err = balance.Available.Sub(amount); err != nil {
			return apperror.ErrInsufficientFunds
		}
		balance.UpdatedAt = s.now()
		return apperror.Database(s.wallets.Save(ctx, balance), "не удалось сохранить кошелёк")
	})
}

// Pay зачисляет средства получателю. Заблокированный кошелёк отклоняет перевод.
func (s *WalletService) Pay(ctx context.Context, to uuid.UUID, currency valueobject.Currency, amount valueobject.Amount) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		balance, err := s.load(ctx, to, currency)
		if err != nil {
			return err
		}
		if balance.Blocked {
			return apperror.ErrTransferFailed.WithMessage("кошелёк получателя %s заблокирован", to)
		}
		if balance.Available, err = balance.Available.Add(amount); err != nil {
			return err
		}
		balance.UpdatedAt = s.now()
		return apperror.Database(s.wallets.Save(ctx, balance), "не удалось сохранить кошелёк")
	})
}

// SetBlocked блокирует или разблокирует кошелёк.
func (s *WalletService) SetBlocked(ctx context.Context, userID uuid.UUID, currency valueobject.Currency, blocked bool) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		balance, err := s.load(ctx, userID, currency)
		if err != nil {
			return err
		}
		balance.Blocked = blocked
		balance.UpdatedAt = s.now()
		return apperror.Database(s.wallets.Save(ctx, balance), "не удалось сохранить кошелёк")
	})
}

func (s *WalletService) load(ctx context.Context, userID uuid.UUID, currency valueobject.Currency) (*entity.WalletBalance, error) {
	balance, err := s.wallets.FindForUpdate(ctx, userID, currency)
	if err != nil {
		return nil, apperror.Database(err, "не удалось получить кошелёк")
	}
	if balance == nil {
		balance = &entity.WalletBalance{
			UserID:    userID,
			Currency:  currency,
			Available: valueobject.ZeroAmount(),
		}
	}
	return balance, nil
}
