// Package memory - хранилище в памяти с одним писателем. Используется в тестах и при STORAGE_DRIVER=memory.
package memory

import (
	"context"
	"maps"
	"sync"

	"github.com/google/uuid"

	"github.com/ignatzorin/freelance-escrow/internal/domain/entity"
	"github.com/ignatzorin/freelance-escrow/internal/domain/repository"
	"github.com/ignatzorin/freelance-escrow/internal/domain/valueobject"
)

type walletKey struct {
	user     uuid.UUID
	currency valueobject.Currency
}

type optOutKey struct {
	user     uuid.UUID
	category string
}

// state хранит неизменяемые снимки сущностей: запись и чтение идут через Clone,
// поэтому для отката достаточно поверхностной копии коллекций.
type state struct {
	projects     map[uuid.UUID]*entity.Project
	projectOrder []uuid.UUID
	jobs         map[uuid.UUID]*entity.Job
	accounts     map[uuid.UUID]*entity.EscrowAccount
	entries      []entity.LedgerEntry
	disputes     map[uuid.UUID]*entity.Dispute
	disputeOrder []uuid.UUID
	arbitrators  map[uuid.UUID]*entity.Arbitrator
	activeSet    []uuid.UUID
	users        map[uuid.UUID]*entity.User
	feedback     []entity.Feedback
	wallets      map[walletKey]entity.WalletBalance
	optOuts      map[optOutKey]struct{}
	settings     *entity.PlatformSettings
}

func newState() *state {
	return &state{
		projects:    make(map[uuid.UUID]*entity.Project),
		jobs:        make(map[uuid.UUID]*entity.Job),
		accounts:    make(map[uuid.UUID]*entity.EscrowAccount),
		disputes:    make(map[uuid.UUID]*entity.Dispute),
		arbitrators: make(map[uuid.UUID]*entity.Arbitrator),
		users:       make(map[uuid.UUID]*entity.User),
		wallets:     make(map[walletKey]entity.WalletBalance),
		optOuts:     make(map[optOutKey]struct{}),
	}
}

func (st *state) snapshot() *state {
	return &state{
		projects:     maps.Clone(st.projects),
		projectOrder: append([]uuid.UUID(nil), st.projectOrder...),
		jobs:         maps.Clone(st.jobs),
		accounts:     maps.Clone(st.accounts),
		entries:      append([]entity.LedgerEntry(nil), st.entries...),
		disputes:     maps.Clone(st.disputes),
		disputeOrder: append([]uuid.UUID(nil), st.disputeOrder...),
		arbitrators:  maps.Clone(st.arbitrators),
		activeSet:    append([]uuid.UUID(nil), st.activeSet...),
		users:        maps.Clone(st.users),
		feedback:     append([]entity.Feedback(nil), st.feedback...),
		wallets:      maps.Clone(st.wallets),
		optOuts:      maps.Clone(st.optOuts),
		settings:     st.settings,
	}
}

// Store сериализует все изменяющие операции одним мьютексом.
type Store struct {
	mu    sync.Mutex
	state *state
}

func NewStore() *Store {
	return &Store{state: newState()}
}

type txKey struct{ store *Store }

type txState struct {
	hooks  []func()
	closed bool
}

// current возвращает открытую транзакцию из ctx. Хуки после коммита получают ctx
// завершённой транзакции и работают уже без неё.
func (s *Store) current(ctx context.Context) (*txState, bool) {
	tx, ok := ctx.Value(txKey{s}).(*txState)
	if !ok || tx.closed {
		return nil, false
	}
	return tx, true
}

var _ repository.Transactor = (*Store)(nil)

// WithinTx выполняет fn под эксклюзивной блокировкой; при ошибке или panic состояние откатывается.
// panic после отката пробрасывается дальше, как в транзакциях PostgreSQL.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := s.current(ctx); ok {
		return fn(ctx)
	}

	tx := &txState{}
	s.mu.Lock()
	saved := s.state.snapshot()
	committed := false
	defer func() {
		if !committed {
			s.state = saved
		}
		tx.closed = true
		s.mu.Unlock()
		if r := recover(); r != nil {
			panic(r)
		}
		if committed {
			for _, hook := range tx.hooks {
				hook()
			}
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{s}, tx)); err != nil {
		return err
	}
	committed = true
	return nil
}

func (s *Store) AfterCommit(ctx context.Context, fn func()) {
	if tx, ok := s.current(ctx); ok {
		tx.hooks = append(tx.hooks, fn)
		return
	}
	fn()
}

// view выполняет fn над состоянием: внутри транзакции без повторной блокировки.
func (s *Store) view(ctx context.Context, fn func(st *state) error) error {
	if _, ok := s.current(ctx); ok {
		return fn(s.state)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.state)
}

func (s *Store) Projects() repository.ProjectRepository       { return projectRepo{s} }
func (s *Store) Jobs() repository.JobRepository               { return jobRepo{s} }
func (s *Store) Escrow() repository.EscrowRepository          { return escrowRepo{s} }
func (s *Store) Disputes() repository.DisputeRepository       { return disputeRepo{s} }
func (s *Store) Arbitrators() repository.ArbitratorRepository { return arbitratorRepo{s} }
func (s *Store) Users() repository.UserRepository             { return userRepo{s} }
func (s *Store) Feedback() repository.FeedbackRepository      { return feedbackRepo{s} }
func (s *Store) Wallets() repository.WalletRepository         { return walletRepo{s} }
func (s *Store) NotificationPreferences() repository.NotificationPreferenceRepository {
	return preferenceRepo{s}
}
func (s *Store) PlatformSettings() repository.PlatformSettingsRepository { return settingsRepo{s} }
