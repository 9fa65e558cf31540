package arbitration_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/freelance-escrow/internal/domain/valueobject"
	"github.com/ignatzorin/freelance-escrow/internal/infrastructure/memory"
	"github.com/ignatzorin/freelance-escrow/internal/logger"
	"github.com/ignatzorin/freelance-escrow/internal/pkg/apperror"
	"github.com/ignatzorin/freelance-escrow/internal/usecase/arbitration"
	"github.com/ignatzorin/freelance-escrow/internal/usecase/registry"
)

type mockDirectory struct {
	mock.Mock
}

func (m *mockDirectory) RoleOf(ctx context.Context, address uuid.UUID) (valueobject.Role, error) {
	args := m.Called(address)
	return args.Get(0).(valueobject.Role), args.Error(1)
}

func (m *mockDirectory) IsActive(ctx context.Context, address uuid.UUID) (bool, error) {
	args := m.Called(address)
	return args.Bool(0), args.Error(1)
}

type fixedReputation map[uuid.UUID]uint64

func (r fixedReputation) ReputationOf(_ context.Context, address uuid.UUID) (uint64, error) {
	return r[address], nil
}

// sequence возвращает заранее заданные индексы по раундам.
type sequence []int

func (s sequence) Intn(_ []byte, round, n int) (int, error) {
	return s[round] % n, nil
}

type brokenSource struct{}

func (brokenSource) Intn([]byte, int, int) (int, error) {
	return 0, errors.New("entropy exhausted")
}

type poolFixture struct {
	ctx        context.Context
	pool       *arbitration.Pool
	directory  *mockDirectory
	reputation fixedReputation
	registry   *registry.Registry
}

func newPoolFixture(t *testing.T) *poolFixture {
	t.Helper()
	logger.Discard()

	reg, err := registry.New(registry.Principals{Owner: uuid.New(), Treasury: uuid.New()}, nil, registry.DefaultParams())
	require.NoError(t, err)

	store := memory.NewStore()
	f := &poolFixture{
		ctx:        context.Background(),
		directory:  &mockDirectory{},
		reputation: fixedReputation{},
		registry:   reg,
	}
	f.pool = arbitration.NewPool(store, store.Arbitrators(), f.directory, f.reputation, sequence{0, 1, 2, 3, 4}, reg, nil)
	return f
}

func (f *poolFixture) arbitrator(reputation uint64) uuid.UUID {
	addr := uuid.New()
	f.directory.On("RoleOf", addr).Return(valueobject.RoleArbitrator, nil)
	f.directory.On("IsActive", addr).Return(true, nil)
	f.reputation[addr] = reputation
	return addr
}

func (f *poolFixture) register(t *testing.T, n int) []uuid.UUID {
	t.Helper()
	out := make([]uuid.UUID, 0, n)
	for i := 0; i < n; i++ {
		addr := f.arbitrator(100)
		_, err := f.pool.Register(f.ctx, addr, "")
		require.NoError(t, err)
		out = append(out, addr)
	}
	return out
}

func TestPool_RegisterChecks(t *testing.T) {
	f := newPoolFixture(t)

	_, err := f.pool.Register(f.ctx, uuid.Nil, "")
	assert.ErrorIs(t, err, apperror.ErrInvalidAddress)

	client := uuid.New()
	f.directory.On("RoleOf", client).Return(valueobject.RoleClient, nil)
	_, err = f.pool.Register(f.ctx, client, "")
	assert.ErrorIs(t, err, apperror.ErrNotArbitratorRole)

	blocked := uuid.New()
	f.directory.On("RoleOf", blocked).Return(valueobject.RoleArbitrator, nil)
	f.directory.On("IsActive", blocked).Return(false, nil)
	_, err = f.pool.Register(f.ctx, blocked, "")
	assert.ErrorIs(t, err, apperror.ErrAccountInactive)

	novice := f.arbitrator(3)
	_, err = f.pool.Register(f.ctx, novice, "")
	assert.ErrorIs(t, err, apperror.ErrInsufficientReputation)

	expert := f.arbitrator(10)
	a, err := f.pool.Register(f.ctx, expert, "ipfs://profile")
	require.NoError(t, err)
	assert.True(t, a.IsActive())
	assert.Equal(t, "ipfs://profile", a.ProfileRef)

	_, err = f.pool.Register(f.ctx, expert, "")
	assert.ErrorIs(t, err, apperror.ErrArbitratorAlreadyActive)

	members, err := f.pool.ActiveSet(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{expert}, members)
}

func TestPool_Deregister(t *testing.T) {
	f := newPoolFixture(t)
	addrs := f.register(t, 3)

	_, err := f.pool.Deregister(f.ctx, addrs[0], uuid.New())
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	_, err = f.pool.Deregister(f.ctx, addrs[0], addrs[0])
	require.NoError(t, err)
	_, err = f.pool.Deregister(f.ctx, addrs[1], f.registry.Owner())
	require.NoError(t, err)

	_, err = f.pool.Deregister(f.ctx, addrs[1], addrs[1])
	assert.ErrorIs(t, err, apperror.ErrArbitratorNotActive)
	_, err = f.pool.Deregister(f.ctx, uuid.New(), f.registry.Owner())
	assert.ErrorIs(t, err, apperror.ErrArbitratorNotActive)

	members, err := f.pool.ActiveSet(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{addrs[2]}, members)

	// Повторная регистрация после снятия разрешена.
	_, err = f.pool.Register(f.ctx, addrs[0], "")
	require.NoError(t, err)
	members, err = f.pool.ActiveSet(f.ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{addrs[0], addrs[2]}, members)
}

func TestPool_SelectPanel(t *testing.T) {
	f := newPoolFixture(t)
	disputes := f.registry.Address(registry.ComponentDisputes)

	_, err := f.pool.SelectPanel(f.ctx, 3, nil, uuid.New())
	assert.ErrorIs(t, err, apperror.ErrNotAuthorizedCaller)

	_, err = f.pool.SelectPanel(f.ctx, 3, nil, disputes)
	assert.ErrorIs(t, err, apperror.ErrInsufficientArbitrators)

	addrs := f.register(t, 3)
	_, err = f.pool.SelectPanel(f.ctx, 0, nil, disputes)
	assert.ErrorIs(t, err, apperror.ErrInvalidParams)

	panel, err := f.pool.SelectPanel(f.ctx, 3, []byte("seed"), disputes)
	require.NoError(t, err)
	assert.Equal(t, addrs, panel)

	f.pool.SetRandomSource(sequence{1, 1, 1})
	panel, err = f.pool.SelectPanel(f.ctx, 3, nil, disputes)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{addrs[1], addrs[1], addrs[1]}, panel, "seats may repeat")

	f.pool.SetRandomSource(brokenSource{})
	_, err = f.pool.SelectPanel(f.ctx, 1, nil, disputes)
	assert.Error(t, err)
}

func TestPool_Get(t *testing.T) {
	f := newPoolFixture(t)
	_, err := f.pool.Get(f.ctx, uuid.New())
	assert.ErrorIs(t, err, apperror.ErrArbitratorNotFound)

	addr := f.register(t, 1)[0]
	a, err := f.pool.Get(f.ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, addr, a.Address)
}
