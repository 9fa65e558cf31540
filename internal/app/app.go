// Package app собирает ядро эскроу и арбитража из хранилища и конфигурации.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/freelance-escrow/internal/config"
	"github.com/ignatzorin/freelance-escrow/internal/domain/event"
	"github.com/ignatzorin/freelance-escrow/internal/domain/repository"
	"github.com/ignatzorin/freelance-escrow/internal/infrastructure/memory"
	"github.com/ignatzorin/freelance-escrow/internal/infrastructure/persistence"
	"github.com/ignatzorin/freelance-escrow/internal/metrics"
	"github.com/ignatzorin/freelance-escrow/internal/service"
	"github.com/ignatzorin/freelance-escrow/internal/usecase/arbitration"
	"github.com/ignatzorin/freelance-escrow/internal/usecase/dispute"
	"github.com/ignatzorin/freelance-escrow/internal/usecase/escrow"
	"github.com/ignatzorin/freelance-escrow/internal/usecase/project"
	"github.com/ignatzorin/freelance-escrow/internal/usecase/registry"
)

// Backend - набор репозиториев одного хранилища.
type Backend struct {
	Tx          repository.Transactor
	Users       repository.UserRepository
	Feedback    repository.FeedbackRepository
	Wallets     repository.WalletRepository
	Preferences repository.NotificationPreferenceRepository
	Jobs        repository.JobRepository
	Projects    repository.ProjectRepository
	Escrow      repository.EscrowRepository
	Disputes    repository.DisputeRepository
	Arbitrators repository.ArbitratorRepository
	Settings    repository.PlatformSettingsRepository
}

// MemoryBackend - хранилище в памяти процесса (разработка и тесты).
func MemoryBackend(store *memory.Store) Backend {
	return Backend{
		Tx:          store,
		Users:       store.Users(),
		Feedback:    store.Feedback(),
		Wallets:     store.Wallets(),
		Preferences: store.NotificationPreferences(),
		Jobs:        store.Jobs(),
		Projects:    store.Projects(),
		Escrow:      store.Escrow(),
		Disputes:    store.Disputes(),
		Arbitrators: store.Arbitrators(),
		Settings:    store.PlatformSettings(),
	}
}

func PostgresBackend(db *sqlx.DB) Backend {
	t := persistence.NewTransactor(db)
	return Backend{
		Tx:          t,
		Users:       persistence.NewUserRepository(t),
		Feedback:    persistence.NewFeedbackRepository(t),
		Wallets:     persistence.NewWalletRepository(t),
		Preferences: persistence.NewNotificationPreferenceRepository(t),
		Jobs:        persistence.NewJobRepository(t),
		Projects:    persistence.NewProjectRepository(t),
		Escrow:      persistence.NewEscrowRepository(t),
		Disputes:    persistence.NewDisputeRepository(t),
		Arbitrators: persistence.NewArbitratorRepository(t),
		Settings:    persistence.NewPlatformSettingsRepository(t),
	}
}

// App - собранное ядро и сервисы вокруг него.
type App struct {
	Registry      *registry.Registry
	Ledger        *escrow.Ledger
	Projects      *project.StateMachine
	Pool          *arbitration.Pool
	Disputes      *dispute.Engine
	Keeper        *dispute.Keeper
	Tokens        *service.TokenManager
	Auth          *service.AuthService
	Wallets       *service.WalletService
	Jobs          *service.JobService
	Directory     *service.DirectoryService
	Reputation    *service.ReputationService
	Notifications *service.NotificationService
	Metrics       *metrics.Metrics
	Backend       Backend
}

// New связывает компоненты. pusher может быть nil: тогда push-уведомления не отправляются.
// Реестр читается из хранилища; значения из cfg записываются только при первом запуске.
func New(ctx context.Context, backend Backend, cfg *config.Config, pusher service.Pusher) (*App, error) {
	platform := cfg.Platform
	reg, err := registry.Open(ctx, backend.Settings, registry.Principals{
		Owner:    platform.OwnerID,
		Operator: platform.OperatorID,
		Treasury: platform.TreasuryID,
	}, nil, registry.Params{
		FeeBps:                  platform.FeeBps,
		MinReputationToRegister: platform.MinReputationToRegister,
		PanelSize:               platform.PanelSize,
		EvidencePeriod:          platform.EvidencePeriod,
		VotingPeriod:            platform.VotingPeriod,
	})
	if err != nil {
		return nil, fmt.Errorf("app: реестр: %w", err)
	}

	random, err := arbitration.NewRandomSource(platform.PanelRandomness)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	if pusher == nil {
		pusher = discardPusher{}
	}
	a := &App{
		Registry: reg,
		Metrics:  metrics.New(),
		Backend:  backend,
		Tokens:   service.NewTokenManager(cfg.JWTSecret, cfg.RefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL),
	}
	a.Notifications = service.NewNotificationService(backend.Preferences, pusher)
	publisher := event.Multi{a.Notifications, a.Metrics}

	a.Auth = service.NewAuthService(backend.Users, a.Tokens)
	a.Wallets = service.NewWalletService(backend.Tx, backend.Wallets)
	a.Directory = service.NewDirectoryService(backend.Users)
	a.Jobs = service.NewJobService(backend.Jobs, a.Directory)
	a.Reputation = service.NewReputationService(backend.Tx, backend.Feedback, backend.Projects)

	a.Ledger = escrow.NewLedger(backend.Tx, backend.Escrow, backend.Projects, a.Wallets, reg, publisher)
	a.Projects = project.NewStateMachine(backend.Tx, backend.Projects, backend.Jobs, a.Jobs, a.Ledger, reg, publisher)
	a.Pool = arbitration.NewPool(backend.Tx, backend.Arbitrators, a.Directory, a.Reputation, random, reg, publisher)
	a.Disputes = dispute.NewEngine(backend.Tx, backend.Disputes, backend.Projects, a.Pool, a.Ledger, a.Projects, reg, publisher)
	a.Projects.BindDisputes(a.Disputes)
	a.Keeper = dispute.NewKeeper(a.Disputes, backend.Disputes, platform.KeeperInterval)
	return a, nil
}

// SetNowFunc подменяет часы всех компонентов ядра.
func (a *App) SetNowFunc(now func() time.Time) {
	a.Ledger.SetNowFunc(now)
	a.Projects.SetNowFunc(now)
	a.Pool.SetNowFunc(now)
	a.Disputes.SetNowFunc(now)
	a.Keeper.SetNowFunc(now)
}

// Start запускает фоновые процессы до отмены ctx.
func (a *App) Start(ctx context.Context) {
	a.Keeper.Start(ctx)
}

type discardPusher struct{}

func (discardPusher) BroadcastToUser(uuid.UUID, string, any) error { return nil }
