package arbitration

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

// Pool ведёт реестр арбитров и собирает панели для споров.
type Pool struct {
	tx          repository.Transactor
	arbitrators repository.ArbitratorRepository
	directory   repository.UserDirectory
	reputation  repository.ReputationSource
	random      repository.RandomSource
	registry    *registry.Registry
	publisher   event.Publisher
	now         func() time.Time
}

func NewPool(
	tx repository.Transactor,
	arbitrators repository.ArbitratorRepository,
	directory repository.UserDirectory,
	reputation repository.ReputationSource,
	random repository.RandomSource,
	reg *registry.Registry,
	publisher event.Publisher,
) *Pool {
	if publisher == nil {
		publisher = event.Nop{}
	}
	return &Pool{
		tx:          tx,
		arbitrators: arbitrators,
		directory:   directory,
		reputation:  reputation,
		random:      random,
		registry:    reg,
		publisher:   publisher,
		now:         time.Now,
	}
}

func (p *Pool) SetNowFunc(now func() time.Time) {
	if now != nil {
		p.now = now
	}
}

// SetRandomSource заменяет источник случайности.
func (p *Pool) SetRandomSource(src repository.RandomSource) {
	if src != nil {
		p.random = src
	}
}

// Register добавляет адрес в активный набор арбитров.
func (p *Pool) Register(ctx context.Context, address uuid.UUID, profileRef string) (*entity.Arbitrator, error) {
	if address == uuid.Nil {
		return nil, apperror.ErrInvalidAddress
	}
	role, err := p.directory.RoleOf(ctx, address)
	if err != nil {
		return nil, err
	}
	if role != valueobject.RoleArbitrator {
		return nil, apperror.ErrNotArbitratorRole
	}
	active, err := p.directory.IsActive(ctx, address)
	if err != nil {
		return nil, err
	}
	if !active {
		return nil, apperror.ErrAccountInactive
	}

	var arbitrator *entity.Arbitrator
	err = p.tx.WithinTx(ctx, func(ctx context.Context) error {
		set, err := p.arbitrators.LockActiveSet(ctx)
		if err != nil {
			return err
		}
		arbitrator, err = p.arbitrators.FindByAddress(ctx, address)
		if err != nil {
			return err
		}
		if arbitrator == nil {
			arbitrator = &entity.Arbitrator{Address: address, Status: valueobject.ArbitratorStatusInactive}
		}
		if arbitrator.IsActive() {
			return apperror.ErrArbitratorAlreadyActive
		}

		score, err := p.reputation.ReputationOf(ctx, address)
		if err != nil {
			return err
		}
		if threshold := p.registry.Params().MinReputationToRegister; score < threshold {
			return apperror.ErrInsufficientReputation.WithMessage("репутация %d ниже порога %d", score, threshold)
		}

		now := p.now()
		if err := arbitrator.Activate(profileRef, now); err != nil {
			return err
		}
		set.Add(address)
		if err := p.arbitrators.Save(ctx, arbitrator); err != nil {
			return err
		}
		if err := p.arbitrators.SaveActiveSet(ctx, set); err != nil {
			return err
		}
		p.publish(ctx, event.ArbitratorRegistered, address, now)
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Component("arbitration").WithField("address", address).Info("арбитр зарегистрирован")
	return arbitrator, nil
}

// Deregister убирает арбитра из активного набора. Вызывать может сам арбитр или владелец.
func (p *Pool) Deregister(ctx context.Context, address, caller uuid.UUID) (*entity.Arbitrator, error) {
	if caller != address && !p.registry.IsOwner(caller) {
		return nil, apperror.ErrForbidden
	}

	var arbitrator *entity.Arbitrator
	err := p.tx.WithinTx(ctx, func(ctx context.Context) error {
		set, err := p.arbitrators.LockActiveSet(ctx)
		if err != nil {
			return err
		}
		arbitrator, err = p.arbitrators.FindByAddress(ctx, address)
		if err != nil {
			return err
		}
		if arbitrator == nil {
			return apperror.ErrArbitratorNotActive
		}
		now := p.now()
		if err := arbitrator.Deactivate(now); err != nil {
			return err
		}
		set.Remove(address)
		if err := p.arbitrators.Save(ctx, arbitrator); err != nil {
			return err
		}
		if err := p.arbitrators.SaveActiveSet(ctx, set); err != nil {
			return err
		}
		p.publish(ctx, event.ArbitratorDeregistered, address, now)
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Component("arbitration").WithField("address", address).Info("арбитр снят с регистрации")
	return arbitrator, nil
}

// SelectPanel выбирает n арбитров из активного набора. Повторы не исключаются:
// при малом наборе один адрес может занять несколько мест.
func (p *Pool) SelectPanel(ctx context.Context, n int, seed []byte, caller uuid.UUID) ([]uuid.UUID, error) {
	if !p.registry.Is(registry.ComponentDisputes, caller) {
		return nil, apperror.ErrNotAuthorizedCaller
	}
	if n < 1 {
		return nil, apperror.ErrInvalidParams.WithMessage("размер панели должен быть положительным")
	}

	set, err := p.arbitrators.LoadActiveSet(ctx)
	if err != nil {
		return nil, err
	}
	if set.Len() < n {
		return nil, apperror.ErrInsufficientArbitrators.WithMessage("нужно %d арбитров, активно %d", n, set.Len())
	}

	panel := make([]uuid.UUID, 0, n)
	for round := 0; round < n; round++ {
		idx, err := p.random.Intn(seed, round, set.Len())
		if err != nil {
			return nil, apperror.Wrap(err, apperror.ErrCodeExternal, "источник случайности недоступен")
		}
		panel = append(panel, set.At(idx))
	}

	logger.Component("arbitration").WithFields(logrus.Fields{
		"panel_size": n,
		"pool_size":  set.Len(),
	}).Debug("панель выбрана")
	return panel, nil
}

// ActiveSet возвращает адреса активных арбитров.
func (p *Pool) ActiveSet(ctx context.Context) ([]uuid.UUID, error) {
	set, err := p.arbitrators.LoadActiveSet(ctx)
	if err != nil {
		return nil, err
	}
	return set.Members(), nil
}

// Get возвращает профиль арбитра.
func (p *Pool) Get(ctx context.Context, address uuid.UUID) (*entity.Arbitrator, error) {
	a, err := p.arbitrators.FindByAddress(ctx, address)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, apperror.ErrArbitratorNotFound
	}
	return a, nil
}

func (p *Pool) publish(ctx context.Context, typ event.Type, address uuid.UUID, now time.Time) {
	evt := event.Event{Type: typ, Actor: address, Recipients: []uuid.UUID{address}, OccurredAt: now}
	p.tx.AfterCommit(ctx, func() {
		p.publisher.Publish(ctx, evt)
	})
}
