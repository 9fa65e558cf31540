package escrow_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/freelance-escrow/internal/domain/entity"
	"github.com/ignatzorin/freelance-escrow/internal/domain/event"
	"github.com/ignatzorin/freelance-escrow/internal/domain/valueobject"
	"github.com/ignatzorin/freelance-escrow/internal/infrastructure/memory"
	"github.com/ignatzorin/freelance-escrow/internal/logger"
	"github.com/ignatzorin/freelance-escrow/internal/pkg/apperror"
	"github.com/ignatzorin/freelance-escrow/internal/usecase/escrow"
	"github.com/ignatzorin/freelance-escrow/internal/usecase/registry"
)

type mockFunds struct {
	mock.Mock
}

func (m *mockFunds) Collect(ctx context.Context, from uuid.UUID, currency valueobject.Currency, amount valueobject.Amount) error {
	return m.Called(from, currency, amount.String()).Error(0)
}

func (m *mockFunds) Pay(ctx context.Context, to uuid.UUID, currency valueobject.Currency, amount valueobject.Amount) error {
	return m.Called(to, currency, amount.String()).Error(0)
}

type recorder struct {
	events []event.Event
}

func (r *recorder) Publish(_ context.Context, evt event.Event) {
	r.events = append(r.events, evt)
}

type fixture struct {
	ctx      context.Context
	store    *memory.Store
	ledger   *escrow.Ledger
	funds    *mockFunds
	events   *recorder
	registry *registry.Registry
	project  *entity.Project
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger.Discard()

	params := registry.DefaultParams()
	params.FeeBps = 1000
	reg, err := registry.New(registry.Principals{Owner: uuid.New(), Treasury: uuid.New()}, nil, params)
	require.NoError(t, err)

	now := time.Now()
	p, err := entity.NewProject(uuid.New(), uuid.New(), uuid.New(), valueobject.NewAmount(100), now.Add(time.Hour),
		[]entity.MilestoneSpec{{Description: "всё", Amount: valueobject.NewAmount(100)}}, now)
	require.NoError(t, err)

	store := memory.NewStore()
	require.NoError(t, store.Projects().Create(context.Background(), p))

	f := &fixture{
		ctx:      context.Background(),
		store:    store,
		funds:    &mockFunds{},
		events:   &recorder{},
		registry: reg,
		project:  p,
	}
	f.ledger = escrow.NewLedger(store, store.Escrow(), store.Projects(), f.funds, reg, f.events)
	return f
}

func (f *fixture) projects() uuid.UUID {
	return f.registry.Address(registry.ComponentProjects)
}

func (f *fixture) disputes() uuid.UUID {
	return f.registry.Address(registry.ComponentDisputes)
}

func TestLedger_FundAndRelease(t *testing.T) {
	f := newFixture(t)
	native := valueobject.CurrencyNative
	f.funds.On("Collect", f.project.ClientID, native, "100").Return(nil).Once()
	f.funds.On("Pay", f.registry.Treasury(), native, "4").Return(nil).Once()
	f.funds.On("Pay", f.project.FreelancerID, native, "36").Return(nil).Once()

	_, err := f.ledger.Fund(f.ctx, f.project.ID, f.project.ClientID, native, valueobject.NewAmount(100))
	require.NoError(t, err)

	mv, err := f.ledger.Release(f.ctx, f.project.ID, f.project.FreelancerID, valueobject.NewAmount(40), f.projects())
	require.NoError(t, err)
	assert.Equal(t, "4", mv.Fee.String())
	assert.Equal(t, "36", mv.Net.String())

	account, err := f.ledger.Account(f.ctx, f.project.ID)
	require.NoError(t, err)
	assert.Equal(t, "60", account.Balance.String())
	assert.Equal(t, "40", account.Released.String())
	assert.Equal(t, "4", account.Fees.String())
	assert.True(t, account.Conserved())

	require.Len(t, f.events.events, 2)
	assert.Equal(t, event.EscrowFunded, f.events.events[0].Type)
	assert.Equal(t, event.EscrowReleased, f.events.events[1].Type)
	assert.Equal(t, "36", f.events.events[1].Amount.String())
	f.funds.AssertExpectations(t)
}

func TestLedger_RefundPaysNoFee(t *testing.T) {
	f := newFixture(t)
	native := valueobject.CurrencyNative
	f.funds.On("Collect", mock.Anything, native, "100").Return(nil)
	f.funds.On("Pay", f.project.ClientID, native, "100").Return(nil).Once()

	_, err := f.ledger.Fund(f.ctx, f.project.ID, f.project.ClientID, native, valueobject.NewAmount(100))
	require.NoError(t, err)

	_, err = f.ledger.Refund(f.ctx, f.project.ID, f.project.ClientID, valueobject.NewAmount(100), f.projects())
	assert.ErrorIs(t, err, apperror.ErrNotAuthorizedCaller)

	mv, err := f.ledger.Refund(f.ctx, f.project.ID, f.project.ClientID, valueobject.NewAmount(100), f.disputes())
	require.NoError(t, err)
	assert.True(t, mv.Fee.IsZero())

	_, err = f.ledger.Refund(f.ctx, f.project.ID, f.project.ClientID, valueobject.NewAmount(1), f.disputes())
	assert.ErrorIs(t, err, apperror.ErrInsufficientEscrowBalance)
	f.funds.AssertExpectations(t)
}

func TestLedger_FailedTransferRollsBack(t *testing.T) {
	f := newFixture(t)
	native := valueobject.CurrencyNative
	f.funds.On("Collect", mock.Anything, native, "100").Return(nil)
	f.funds.On("Pay", f.registry.Treasury(), native, "5").Return(nil)
	f.funds.On("Pay", f.project.FreelancerID, native, "45").Return(errors.New("recipient rejected transfer"))

	_, err := f.ledger.Fund(f.ctx, f.project.ID, f.project.ClientID, native, valueobject.NewAmount(100))
	require.NoError(t, err)

	_, err = f.ledger.Release(f.ctx, f.project.ID, f.project.FreelancerID, valueobject.NewAmount(50), f.projects())
	assert.ErrorIs(t, err, apperror.ErrTransferFailed)

	balance, err := f.ledger.BalanceOf(f.ctx, f.project.ID, native)
	require.NoError(t, err)
	assert.Equal(t, "100", balance.String())

	entries, err := f.ledger.Entries(f.ctx, f.project.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "only the funding entry survives")
	assert.Len(t, f.events.events, 1, "no event for a rolled back release")
}

func TestLedger_Validation(t *testing.T) {
	f := newFixture(t)
	native := valueobject.CurrencyNative

	_, err := f.ledger.Fund(f.ctx, f.project.ID, f.project.ClientID, native, valueobject.ZeroAmount())
	assert.ErrorIs(t, err, apperror.ErrInvalidAmount)

	_, err = f.ledger.Fund(f.ctx, uuid.New(), f.project.ClientID, native, valueobject.NewAmount(1))
	assert.ErrorIs(t, err, apperror.ErrProjectNotFound)

	_, err = f.ledger.Release(f.ctx, f.project.ID, uuid.Nil, valueobject.NewAmount(1), f.projects())
	assert.ErrorIs(t, err, apperror.ErrInvalidAddress)

	_, err = f.ledger.Release(f.ctx, f.project.ID, f.project.FreelancerID, valueobject.NewAmount(1), f.projects())
	assert.ErrorIs(t, err, apperror.ErrInsufficientEscrowBalance, "unfunded project has no balance")

	f.funds.AssertNotCalled(t, "Collect", mock.Anything, mock.Anything, mock.Anything)
}
