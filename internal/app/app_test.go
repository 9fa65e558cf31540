package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/freelance-escrow/internal/config"
	"github.com/ignatzorin/freelance-escrow/internal/domain/entity"
	"github.com/ignatzorin/freelance-escrow/internal/domain/valueobject"
	"github.com/ignatzorin/freelance-escrow/internal/infrastructure/memory"
	"github.com/ignatzorin/freelance-escrow/internal/logger"
	"github.com/ignatzorin/freelance-escrow/internal/pkg/apperror"
	"github.com/ignatzorin/freelance-escrow/internal/service"
	"github.com/ignatzorin/freelance-escrow/internal/usecase/project"
	"github.com/ignatzorin/freelance-escrow/internal/usecase/registry"
)

var native = valueobject.CurrencyNative

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// roundRobin делает выбор панели воспроизводимым: место i получает i-й активный арбитр.
type roundRobin struct{}

func (roundRobin) Intn(_ []byte, round, n int) (int, error) {
	return round % n, nil
}

type harness struct {
	t          *testing.T
	ctx        context.Context
	app        *App
	clock      *clock
	client     uuid.UUID
	freelancer uuid.UUID
}

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:       "test-access-secret",
		RefreshSecret:   "test-refresh-secret",
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
		Platform: config.PlatformConfig{
			OwnerID:         uuid.New(),
			TreasuryID:      uuid.New(),
			FeeBps:          2500,
			PanelSize:       3,
			EvidencePeriod:  time.Hour,
			VotingPeriod:    time.Hour,
			PanelRandomness: "seeded",
		},
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger.Discard()

	a, err := New(context.Background(), MemoryBackend(memory.NewStore()), testConfig(), nil)
	require.NoError(t, err)
	c := &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	a.SetNowFunc(c.Now)
	a.Pool.SetRandomSource(roundRobin{})

	h := &harness{t: t, ctx: context.Background(), app: a, clock: c}
	h.client = h.user(valueobject.RoleClient)
	h.freelancer = h.user(valueobject.RoleFreelancer)
	return h
}

func (h *harness) user(role valueobject.Role) uuid.UUID {
	h.t.Helper()
	id := uuid.New()
	now := h.clock.Now()
	require.NoError(h.t, h.app.Backend.Users.Create(h.ctx, &entity.User{
		ID:        id,
		Email:     id.String() + "@example.com",
		Username:  "user_" + id.String()[:8],
		Role:      role,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}))
	return id
}

func (h *harness) startProject(amounts ...uint64) *entity.Project {
	h.t.Helper()
	job, err := h.app.Jobs.CreateJob(h.ctx, h.client, "Интернет-магазин под ключ")
	require.NoError(h.t, err)

	budget := valueobject.ZeroAmount()
	specs := make([]entity.MilestoneSpec, len(amounts))
	for i, units := range amounts {
		specs[i] = entity.MilestoneSpec{Description: "этап", Amount: valueobject.NewAmount(units)}
		budget, err = budget.Add(specs[i].Amount)
		require.NoError(h.t, err)
	}

	p, err := h.app.Projects.StartProject(h.ctx, project.StartProjectInput{
		JobID:        job.ID,
		ClientID:     h.client,
		FreelancerID: h.freelancer,
		Budget:       budget,
		Deadline:     h.clock.Now().Add(30 * 24 * time.Hour),
		Milestones:   specs,
	})
	require.NoError(h.t, err)
	return p
}

func (h *harness) fund(p *entity.Project, currency valueobject.Currency, units uint64) {
	h.t.Helper()
	_, err := h.app.Wallets.Deposit(h.ctx, h.client, currency, valueobject.NewAmount(units))
	require.NoError(h.t, err)
	_, err = h.app.Ledger.Fund(h.ctx, p.ID, h.client, currency, valueobject.NewAmount(units))
	require.NoError(h.t, err)
}

func (h *harness) wallet(user uuid.UUID, currency valueobject.Currency) string {
	h.t.Helper()
	balances, err := h.app.Wallets.Balances(h.ctx, user)
	require.NoError(h.t, err)
	for _, b := range balances {
		if b.Currency == currency {
			return b.Available.String()
		}
	}
	return "0"
}

func (h *harness) balance(p *entity.Project) string {
	h.t.Helper()
	b, err := h.app.Ledger.BalanceOf(h.ctx, p.ID, native)
	require.NoError(h.t, err)
	return b.String()
}

func (h *harness) conserved(p *entity.Project) {
	h.t.Helper()
	account, err := h.app.Ledger.Account(h.ctx, p.ID)
	require.NoError(h.t, err)
	require.NotNil(h.t, account)
	assert.True(h.t, account.Conserved(), "funded=%s released=%s refunded=%s balance=%s",
		account.Funded, account.Released, account.Refunded, account.Balance)
}

func (h *harness) arbitrators(n int) []uuid.UUID {
	h.t.Helper()
	out := make([]uuid.UUID, n)
	for i := range out {
		out[i] = h.user(valueobject.RoleArbitrator)
		_, err := h.app.Pool.Register(h.ctx, out[i], "ipfs://profile")
		require.NoError(h.t, err)
	}
	return out
}

// disputed открывает спор по этапу 0 и переводит его в голосование.
func (h *harness) disputed(p *entity.Project) *entity.Dispute {
	h.t.Helper()
	_, err := h.app.Projects.MarkMilestoneCompleted(h.ctx, p.ID, 0, h.freelancer)
	require.NoError(h.t, err)
	d, err := h.app.Projects.DisputeMilestone(h.ctx, p.ID, 0, "ipfs://reason", h.client)
	require.NoError(h.t, err)

	h.clock.Advance(time.Hour + time.Second)
	d, err = h.app.Disputes.StartVoting(h.ctx, d.ID, h.app.Registry.Operator())
	require.NoError(h.t, err)
	return d
}

func TestApproveReleasesMilestoneMinusFee(t *testing.T) {
	h := newHarness(t)
	p := h.startProject(4, 6)
	h.fund(p, native, 10)
	assert.Equal(t, "10", h.balance(p))

	_, err := h.app.Projects.MarkMilestoneCompleted(h.ctx, p.ID, 0, h.freelancer)
	require.NoError(t, err)
	_, err = h.app.Projects.ApproveMilestone(h.ctx, p.ID, 0, h.client)
	require.NoError(t, err)

	assert.Equal(t, "6", h.balance(p))
	assert.Equal(t, "3", h.wallet(h.freelancer, native))
	assert.Equal(t, "1", h.wallet(h.app.Registry.Treasury(), native))
	h.conserved(p)

	_, err = h.app.Projects.ApproveMilestone(h.ctx, p.ID, 0, h.client)
	assert.ErrorIs(t, err, apperror.ErrAlreadyApproved)
	assert.Equal(t, "6", h.balance(p))

	_, err = h.app.Projects.MarkMilestoneCompleted(h.ctx, p.ID, 1, h.freelancer)
	require.NoError(t, err)
	done, err := h.app.Projects.ApproveMilestone(h.ctx, p.ID, 1, h.client)
	require.NoError(t, err)
	assert.Equal(t, valueobject.ProjectStatusCompleted, done.Status)
	assert.Equal(t, "0", h.balance(p))

	job, err := h.app.Jobs.Get(h.ctx, p.JobID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.JobStatusCompleted, job.Status)

	entries, err := h.app.Ledger.Entries(h.ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 5) // fund + (fee + release) * 2
}

func TestStartProjectRejectsMilestoneSumMismatch(t *testing.T) {
	h := newHarness(t)
	job, err := h.app.Jobs.CreateJob(h.ctx, h.client, "Мобильное приложение")
	require.NoError(t, err)

	in := project.StartProjectInput{
		JobID:        job.ID,
		ClientID:     h.client,
		FreelancerID: h.freelancer,
		Budget:       valueobject.NewAmount(10),
		Deadline:     h.clock.Now().Add(time.Hour),
		Milestones: []entity.MilestoneSpec{
			{Description: "дизайн", Amount: valueobject.NewAmount(4)},
			{Description: "вёрстка", Amount: valueobject.NewAmount(5)},
		},
	}
	_, err = h.app.Projects.StartProject(h.ctx, in)
	assert.ErrorIs(t, err, apperror.ErrInvalidMilestoneSum)

	in.Milestones[1].Amount = valueobject.NewAmount(6)
	_, err = h.app.Projects.StartProject(h.ctx, in)
	require.NoError(t, err)

	_, err = h.app.Projects.StartProject(h.ctx, in)
	assert.ErrorIs(t, err, apperror.ErrJobNotOpen)
}

func TestUnanimousPanelFinalizesEarly(t *testing.T) {
	h := newHarness(t)
	arbs := h.arbitrators(3)
	p := h.startProject(4, 6)
	h.fund(p, native, 10)

	_, err := h.app.Projects.MarkMilestoneCompleted(h.ctx, p.ID, 0, h.freelancer)
	require.NoError(t, err)
	d, err := h.app.Projects.DisputeMilestone(h.ctx, p.ID, 0, "ipfs://reason", h.client)
	require.NoError(t, err)
	assert.Equal(t, arbs, d.Panel)

	_, err = h.app.Projects.DisputeMilestone(h.ctx, p.ID, 0, "ipfs://again", h.freelancer)
	assert.ErrorIs(t, err, apperror.ErrProjectNotActive)

	_, err = h.app.Disputes.SubmitEvidence(h.ctx, d.ID, "ipfs://client-evidence", h.client)
	require.NoError(t, err)
	_, err = h.app.Disputes.SubmitEvidence(h.ctx, d.ID, "ipfs://spam", arbs[0])
	assert.ErrorIs(t, err, apperror.ErrNotParticipant)

	_, err = h.app.Disputes.StartVoting(h.ctx, d.ID, h.app.Registry.Operator())
	assert.ErrorIs(t, err, apperror.ErrEvidencePeriodOpen)

	h.clock.Advance(time.Hour + time.Second)
	_, err = h.app.Disputes.StartVoting(h.ctx, d.ID, h.client)
	assert.ErrorIs(t, err, apperror.ErrForbidden)
	_, err = h.app.Disputes.StartVoting(h.ctx, d.ID, h.app.Registry.Operator())
	require.NoError(t, err)

	d, err = h.app.Disputes.Vote(h.ctx, d.ID, arbs[0], false)
	require.NoError(t, err)
	d, err = h.app.Disputes.Vote(h.ctx, d.ID, arbs[1], true)
	require.NoError(t, err)
	assert.Equal(t, valueobject.DisputeStatusVoting, d.Status)

	d, err = h.app.Disputes.Vote(h.ctx, d.ID, arbs[2], false)
	require.NoError(t, err)
	assert.Equal(t, valueobject.DisputeStatusFinalized, d.Status)
	require.NotNil(t, d.ClientWon)
	assert.False(t, *d.ClientWon)

	_, err = h.app.Disputes.Vote(h.ctx, d.ID, arbs[0], true)
	assert.ErrorIs(t, err, apperror.ErrVotingClosed)

	got, err := h.app.Projects.Get(h.ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.ProjectStatusActive, got.Status)
	assert.True(t, got.Milestones[0].Approved)
	assert.True(t, got.Milestones[0].Arbitrated)
	assert.Equal(t, "6", h.balance(p))
	assert.Equal(t, "3", h.wallet(h.freelancer, native))
	h.conserved(p)

	_, err = h.app.Projects.ApproveMilestone(h.ctx, p.ID, 0, h.client)
	assert.ErrorIs(t, err, apperror.ErrAlreadyApproved)
}

func TestTieAfterDeadlineFavoursFreelancer(t *testing.T) {
	h := newHarness(t)
	arbs := h.arbitrators(3)
	p := h.startProject(4, 6)
	h.fund(p, native, 10)
	d := h.disputed(p)

	_, err := h.app.Disputes.Vote(h.ctx, d.ID, arbs[0], true)
	require.NoError(t, err)
	_, err = h.app.Disputes.Vote(h.ctx, d.ID, arbs[1], false)
	require.NoError(t, err)

	_, err = h.app.Disputes.Finalize(h.ctx, d.ID)
	assert.ErrorIs(t, err, apperror.ErrVotingStillOpen)

	h.clock.Advance(time.Hour + time.Second)
	_, err = h.app.Disputes.Vote(h.ctx, d.ID, arbs[2], true)
	assert.ErrorIs(t, err, apperror.ErrVotingClosed)

	d, err = h.app.Disputes.Finalize(h.ctx, d.ID)
	require.NoError(t, err)
	require.NotNil(t, d.ClientWon)
	assert.False(t, *d.ClientWon)
	assert.Equal(t, 1, d.VotesForClient)
	assert.Equal(t, 1, d.VotesForFreelancer)
}

func TestClientWinCancelsProjectAndRefundsEverything(t *testing.T) {
	h := newHarness(t)
	arbs := h.arbitrators(3)
	p := h.startProject(4, 6)
	h.fund(p, native, 10)
	d := h.disputed(p)

	for i, forClient := range []bool{true, false, true} {
		_, err := h.app.Disputes.Vote(h.ctx, d.ID, arbs[i], forClient)
		require.NoError(t, err)
	}

	got, err := h.app.Projects.Get(h.ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.ProjectStatusCancelled, got.Status)
	assert.Equal(t, "0", h.balance(p))
	assert.Equal(t, "10", h.wallet(h.client, native))
	assert.Equal(t, "0", h.wallet(h.freelancer, native))
	h.conserved(p)

	job, err := h.app.Jobs.Get(h.ctx, p.JobID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.JobStatusCancelled, job.Status)

	_, err = h.app.Wallets.Deposit(h.ctx, h.client, native, valueobject.NewAmount(1))
	require.NoError(t, err)
	_, err = h.app.Ledger.Fund(h.ctx, p.ID, h.client, native, valueobject.NewAmount(1))
	assert.ErrorIs(t, err, apperror.ErrProjectTerminal)
}

func TestFailedPayoutLeavesDisputeInVoting(t *testing.T) {
	h := newHarness(t)
	arbs := h.arbitrators(3)
	p := h.startProject(4, 6)
	h.fund(p, native, 10)
	d := h.disputed(p)

	require.NoError(t, h.app.Wallets.SetBlocked(h.ctx, h.freelancer, native, true))
	_, err := h.app.Disputes.Vote(h.ctx, d.ID, arbs[0], false)
	require.NoError(t, err)
	_, err = h.app.Disputes.Vote(h.ctx, d.ID, arbs[1], false)
	require.NoError(t, err)

	_, err = h.app.Disputes.Vote(h.ctx, d.ID, arbs[2], false)
	assert.ErrorIs(t, err, apperror.ErrTransferFailed)

	d, err = h.app.Disputes.Get(h.ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.DisputeStatusVoting, d.Status)
	assert.Equal(t, 2, d.VotesForFreelancer)
	assert.Equal(t, "10", h.balance(p))
	assert.Equal(t, "0", h.wallet(h.app.Registry.Treasury(), native))

	require.NoError(t, h.app.Wallets.SetBlocked(h.ctx, h.freelancer, native, false))
	h.clock.Advance(time.Hour + time.Second)
	d, err = h.app.Disputes.Finalize(h.ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.DisputeStatusFinalized, d.Status)
	assert.Equal(t, "6", h.balance(p))
}

func TestCurrencyLock(t *testing.T) {
	h := newHarness(t)
	usdc, err := valueobject.NewCurrency("usdc")
	require.NoError(t, err)

	first := h.startProject(4, 6)
	h.fund(first, native, 4)
	_, err = h.app.Wallets.Deposit(h.ctx, h.client, usdc, valueobject.NewAmount(6))
	require.NoError(t, err)
	_, err = h.app.Ledger.Fund(h.ctx, first.ID, h.client, usdc, valueobject.NewAmount(6))
	assert.ErrorIs(t, err, apperror.ErrCurrencyMismatch)

	zero, err := h.app.Ledger.BalanceOf(h.ctx, first.ID, usdc)
	require.NoError(t, err)
	assert.True(t, zero.IsZero())
	assert.Equal(t, "6", h.wallet(h.client, usdc))

	second := h.startProject(10)
	_, err = h.app.Ledger.Fund(h.ctx, second.ID, h.client, usdc, valueobject.NewAmount(6))
	require.NoError(t, err)
	_, err = h.app.Wallets.Deposit(h.ctx, h.client, native, valueobject.NewAmount(4))
	require.NoError(t, err)
	_, err = h.app.Ledger.Fund(h.ctx, second.ID, h.client, native, valueobject.NewAmount(4))
	assert.ErrorIs(t, err, apperror.ErrCurrencyMismatch)
}

func TestFundRequiresProjectClientAndWalletFunds(t *testing.T) {
	h := newHarness(t)
	p := h.startProject(10)

	_, err := h.app.Ledger.Fund(h.ctx, p.ID, h.freelancer, native, valueobject.NewAmount(10))
	assert.ErrorIs(t, err, apperror.ErrNotProjectClient)

	_, err = h.app.Ledger.Fund(h.ctx, p.ID, h.client, native, valueobject.NewAmount(10))
	assert.ErrorIs(t, err, apperror.ErrTransferFailed)
	assert.ErrorIs(t, err, apperror.ErrInsufficientFunds)

	account, err := h.app.Ledger.Account(h.ctx, p.ID)
	require.NoError(t, err)
	assert.Nil(t, account)
}

func TestRegistrationGating(t *testing.T) {
	h := newHarness(t)
	params := h.app.Registry.Params()
	params.MinReputationToRegister = 5
	require.NoError(t, h.app.Registry.SetParams(h.ctx, h.app.Registry.Owner(), params))

	_, err := h.app.Pool.Register(h.ctx, h.client, "ipfs://profile")
	assert.ErrorIs(t, err, apperror.ErrNotArbitratorRole)

	candidate := h.user(valueobject.RoleArbitrator)
	_, err = h.app.Pool.Register(h.ctx, candidate, "ipfs://profile")
	assert.ErrorIs(t, err, apperror.ErrInsufficientReputation)

	_, err = h.app.Pool.SelectPanel(h.ctx, 1, nil, h.app.Registry.Address(registry.ComponentDisputes))
	assert.ErrorIs(t, err, apperror.ErrInsufficientArbitrators)

	// Репутацию кандидат зарабатывает как исполнитель завершённого проекта.
	h.freelancer = candidate
	p := h.startProject(10)
	h.fund(p, native, 10)
	_, err = h.app.Projects.MarkMilestoneCompleted(h.ctx, p.ID, 0, candidate)
	require.NoError(t, err)
	_, err = h.app.Projects.ApproveMilestone(h.ctx, p.ID, 0, h.client)
	require.NoError(t, err)
	_, err = h.app.Reputation.SubmitFeedback(h.ctx, service.FeedbackInput{ProjectID: p.ID, AuthorID: h.client, Score: 5})
	require.NoError(t, err)

	_, err = h.app.Pool.Register(h.ctx, candidate, "ipfs://profile")
	require.NoError(t, err)
	active, err := h.app.Pool.ActiveSet(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{candidate}, active)
}

func TestDeregisterKeepsActiveSetConsistent(t *testing.T) {
	h := newHarness(t)
	arbs := h.arbitrators(3)

	_, err := h.app.Pool.Deregister(h.ctx, arbs[0], h.client)
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	_, err = h.app.Pool.Deregister(h.ctx, arbs[0], arbs[0])
	require.NoError(t, err)
	_, err = h.app.Pool.Deregister(h.ctx, arbs[0], arbs[0])
	assert.ErrorIs(t, err, apperror.ErrArbitratorNotActive)

	active, err := h.app.Pool.ActiveSet(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{arbs[2], arbs[1]}, active)

	profile, err := h.app.Pool.Get(h.ctx, arbs[0])
	require.NoError(t, err)
	assert.Equal(t, valueobject.ArbitratorStatusInactive, profile.Status)

	_, err = h.app.Pool.Deregister(h.ctx, arbs[1], h.app.Registry.Owner())
	require.NoError(t, err)
	_, err = h.app.Pool.Register(h.ctx, arbs[0], "ipfs://again")
	require.NoError(t, err)
	active, err = h.app.Pool.ActiveSet(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{arbs[2], arbs[0]}, active)
}

func TestCrossComponentCallsRequireRegisteredPrincipal(t *testing.T) {
	h := newHarness(t)
	p := h.startProject(10)
	h.fund(p, native, 10)
	amount := valueobject.NewAmount(1)
	projects := h.app.Registry.Address(registry.ComponentProjects)

	_, err := h.app.Ledger.Release(h.ctx, p.ID, h.freelancer, amount, h.client)
	assert.ErrorIs(t, err, apperror.ErrNotAuthorizedCaller)
	_, err = h.app.Ledger.Refund(h.ctx, p.ID, h.client, amount, projects)
	assert.ErrorIs(t, err, apperror.ErrNotAuthorizedCaller)
	_, err = h.app.Projects.ResolveDispute(h.ctx, p.ID, valueobject.ProjectStatusCancelled, h.client)
	assert.ErrorIs(t, err, apperror.ErrNotAuthorizedCaller)
	_, err = h.app.Disputes.StartDispute(h.ctx, p.ID, 0, "ipfs://reason", h.client)
	assert.ErrorIs(t, err, apperror.ErrNotAuthorizedCaller)
	_, err = h.app.Pool.SelectPanel(h.ctx, 1, nil, projects)
	assert.ErrorIs(t, err, apperror.ErrNotAuthorizedCaller)

	assert.Equal(t, "10", h.balance(p))
}

func TestKeeperAdvancesExpiredDisputes(t *testing.T) {
	h := newHarness(t)
	h.arbitrators(3)
	p := h.startProject(4, 6)
	h.fund(p, native, 10)

	_, err := h.app.Projects.MarkMilestoneCompleted(h.ctx, p.ID, 0, h.freelancer)
	require.NoError(t, err)
	d, err := h.app.Projects.DisputeMilestone(h.ctx, p.ID, 0, "ipfs://reason", h.freelancer)
	require.NoError(t, err)

	n, err := h.app.Keeper.RunOnce(h.ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	h.clock.Advance(time.Hour + time.Second)
	n, err = h.app.Keeper.RunOnce(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	h.clock.Advance(time.Hour + time.Second)
	n, err = h.app.Keeper.RunOnce(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	d, err = h.app.Disputes.Get(h.ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.DisputeStatusFinalized, d.Status)
	require.NotNil(t, d.ClientWon)
	assert.False(t, *d.ClientWon)
	assert.Equal(t, "6", h.balance(p))
}

func TestRegistrySettersAreOwnerGated(t *testing.T) {
	h := newHarness(t)
	owner := h.app.Registry.Owner()

	assert.ErrorIs(t, h.app.Registry.SetTreasury(h.ctx, h.client, uuid.New()), apperror.ErrNotOwner)
	assert.ErrorIs(t, h.app.Registry.SetTreasury(h.ctx, owner, uuid.Nil), apperror.ErrInvalidAddress)
	assert.ErrorIs(t, h.app.Registry.SetReference(h.ctx, owner, registry.ComponentEscrow, uuid.Nil), apperror.ErrInvalidAddress)

	// Новый адрес движка споров сразу отзывает права старого.
	old := h.app.Registry.Address(registry.ComponentDisputes)
	require.NoError(t, h.app.Registry.SetReference(h.ctx, owner, registry.ComponentDisputes, uuid.New()))
	_, err := h.app.Pool.SelectPanel(h.ctx, 1, nil, old)
	assert.ErrorIs(t, err, apperror.ErrNotAuthorizedCaller)
}

func TestRegistrySurvivesRestart(t *testing.T) {
	logger.Discard()
	ctx := context.Background()
	store := memory.NewStore()

	first, err := New(ctx, MemoryBackend(store), testConfig(), nil)
	require.NoError(t, err)
	owner := first.Registry.Owner()
	operator := uuid.New()
	require.NoError(t, first.Registry.SetOperator(ctx, owner, operator))

	// Конфигурация второго запуска другая, но сохранённый реестр главнее.
	second, err := New(ctx, MemoryBackend(store), testConfig(), nil)
	require.NoError(t, err)
	assert.Equal(t, owner, second.Registry.Owner())
	assert.Equal(t, operator, second.Registry.Operator())
	for _, c := range registry.Components {
		assert.Equal(t, first.Registry.Address(c), second.Registry.Address(c))
	}
}
