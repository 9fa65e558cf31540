package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/freelance-escrow/internal/domain/valueobject"
	"github.com/ignatzorin/freelance-escrow/internal/infrastructure/memory"
	"github.com/ignatzorin/freelance-escrow/internal/logger"
	"github.com/ignatzorin/freelance-escrow/internal/pkg/apperror"
)

func TestWalletService_DepositCollectPay(t *testing.T) {
	logger.Discard()
	store := memory.NewStore()
	svc := NewWalletService(store, store.Wallets())
	ctx := context.Background()
	user := uuid.New()
	usd := valueobject.Currency("USD")

	_, err := svc.Deposit(ctx, user, usd, valueobject.NewAmount(100))
	require.NoError(t, err)

	require.NoError(t, svc.Collect(ctx, user, usd, valueobject.NewAmount(60)))

	err = svc.Collect(ctx, user, usd, valueobject.NewAmount(41))
	assert.ErrorIs(t, err, apperror.ErrInsufficientFunds)

	err = svc.Collect(ctx, user, valueobject.CurrencyNative, valueobject.NewAmount(1))
	assert.ErrorIs(t, err, apperror.ErrInsufficientFunds)

	require.NoError(t, svc.Pay(ctx, user, usd, valueobject.NewAmount(5)))

	balances, err := svc.Balances(ctx, user)
	require.NoError(t, err)
	require.Len(t, balances, 1)
	assert.Equal(t, "45", balances[0].Available.String())
}

func TestWalletService_PayToBlockedWalletFails(t *testing.T) {
	logger.Discard()
	store := memory.NewStore()
	svc := NewWalletService(store, store.Wallets())
	ctx := context.Background()
	user := uuid.New()

	require.NoError(t, svc.SetBlocked(ctx, user, valueobject.CurrencyNative, true))

	err := svc.Pay(ctx, user, valueobject.CurrencyNative, valueobject.NewAmount(10))
	assert.ErrorIs(t, err, apperror.ErrTransferFailed)
}

func TestWalletService_DepositValidation(t *testing.T) {
	store := memory.NewStore()
	svc := NewWalletService(store, store.Wallets())

	_, err := svc.Deposit(context.Background(), uuid.New(), valueobject.CurrencyNative, valueobject.ZeroAmount())
	assert.ErrorIs(t, err, apperror.ErrInvalidAmount)

	_, err = svc.Deposit(context.Background(), uuid.Nil, valueobject.CurrencyNative, valueobject.NewAmount(1))
	assert.ErrorIs(t, err, apperror.ErrInvalidAddress)
}
