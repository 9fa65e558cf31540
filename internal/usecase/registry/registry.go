package registry

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/freelance-escrow/internal/domain/entity"
	"github.com/ignatzorin/freelance-escrow/internal/domain/repository"
	"github.com/ignatzorin/freelance-escrow/internal/pkg/apperror"
)

// Component - компонент ядра, у которого есть собственный адрес-принципал.
type Component string

const (
	ComponentEscrow   Component = "escrow"
	ComponentProjects Component = "projects"
	ComponentDisputes Component = "disputes"
	ComponentPool     Component = "pool"
)

// Components перечисляет все компоненты ядра.
var Components = []Component{ComponentEscrow, ComponentProjects, ComponentDisputes, ComponentPool}

// Params - настраиваемые параметры платформы.
type Params struct {
	FeeBps                  uint32        `json:"fee_bps"`
	MinReputationToRegister uint64        `json:"min_reputation_to_register"`
	PanelSize               int           `json:"panel_size"`
	EvidencePeriod          time.Duration `json:"evidence_period"`
	VotingPeriod            time.Duration `json:"voting_period"`
}

// DefaultParams возвращает значения по умолчанию.
func DefaultParams() Params {
	return Params{
		FeeBps:                  250,
		MinReputationToRegister: 10,
		PanelSize:               3,
		EvidencePeriod:          72 * time.Hour,
		VotingPeriod:            72 * time.Hour,
	}
}

func (p Params) Validate() error {
	if p.FeeBps > 10_000 {
		return apperror.ErrInvalidParams.WithMessage("fee_bps не может превышать 10000")
	}
	if p.PanelSize < 1 {
		return apperror.ErrInvalidParams.WithMessage("panel_size должен быть не меньше 1")
	}
	if p.EvidencePeriod <= 0 || p.VotingPeriod <= 0 {
		return apperror.ErrInvalidParams.WithMessage("периоды должны быть положительными")
	}
	return nil
}

// Principals - адреса владельца, оператора и казначейства.
type Principals struct {
	Owner    uuid.UUID
	Operator uuid.UUID
	Treasury uuid.UUID
}

// Registry хранит перекрёстные ссылки между компонентами и параметры платформы.
// Все изменения доступны только владельцу. Если задано хранилище, изменение
// применяется только после успешной записи.
type Registry struct {
	mu         sync.RWMutex
	principals Principals
	refs       map[Component]uuid.UUID
	params     Params
	store      repository.PlatformSettingsRepository
	now        func() time.Time
}

// New создаёт реестр без хранилища. Адреса компонентов, которые не переданы, генерируются.
func New(principals Principals, refs map[Component]uuid.UUID, params Params) (*Registry, error) {
	if principals.Owner == uuid.Nil || principals.Treasury == uuid.Nil {
		return nil, apperror.ErrInvalidAddress
	}
	if principals.Operator == uuid.Nil {
		principals.Operator = principals.Owner
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	r := &Registry{
		principals: principals,
		refs:       make(map[Component]uuid.UUID, len(Components)),
		params:     params,
		now:        time.Now,
	}
	for _, c := range Components {
		addr, ok := refs[c]
		if !ok {
			addr = uuid.New()
		}
		if addr == uuid.Nil {
			return nil, apperror.ErrInvalidAddress.WithMessage("адрес компонента %s не может быть пустым", c)
		}
		r.refs[c] = addr
	}
	return r, nil
}

// Open поднимает реестр из хранилища. Сохранённое состояние главнее переданных значений:
// они записываются только при первом запуске.
func Open(ctx context.Context, store repository.PlatformSettingsRepository, principals Principals, refs map[Component]uuid.UUID, params Params) (*Registry, error) {
	saved, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}

	var r *Registry
	if saved != nil {
		r, err = New(Principals{
			Owner:    saved.OwnerID,
			Operator: saved.OperatorID,
			Treasury: saved.TreasuryID,
		}, map[Component]uuid.UUID{
			ComponentEscrow:   saved.EscrowID,
			ComponentProjects: saved.ProjectsID,
			ComponentDisputes: saved.DisputesID,
			ComponentPool:     saved.PoolID,
		}, Params{
			FeeBps:                  saved.FeeBps,
			MinReputationToRegister: saved.MinReputationToRegister,
			PanelSize:               saved.PanelSize,
			EvidencePeriod:          saved.EvidencePeriod,
			VotingPeriod:            saved.VotingPeriod,
		})
	} else {
		r, err = New(principals, refs, params)
	}
	if err != nil {
		return nil, err
	}

	if saved == nil {
		if err := store.Save(ctx, r.settings(r.principals, r.refs, r.params)); err != nil {
			return nil, err
		}
	}
	r.store = store
	return r, nil
}

func (r *Registry) settings(p Principals, refs map[Component]uuid.UUID, params Params) *entity.PlatformSettings {
	return &entity.PlatformSettings{
		OwnerID:                 p.Owner,
		OperatorID:              p.Operator,
		TreasuryID:              p.Treasury,
		EscrowID:                refs[ComponentEscrow],
		ProjectsID:              refs[ComponentProjects],
		DisputesID:              refs[ComponentDisputes],
		PoolID:                  refs[ComponentPool],
		FeeBps:                  params.FeeBps,
		MinReputationToRegister: params.MinReputationToRegister,
		PanelSize:               params.PanelSize,
		EvidencePeriod:          params.EvidencePeriod,
		VotingPeriod:            params.VotingPeriod,
		UpdatedAt:               r.now(),
	}
}

func (r *Registry) Address(c Component) uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.refs[c]
}

// Is сообщает, что caller - адрес указанного компонента.
func (r *Registry) Is(c Component, caller uuid.UUID) bool {
	return caller != uuid.Nil && r.Address(c) == caller
}

func (r *Registry) Owner() uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.principals.Owner
}

func (r *Registry) Operator() uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.principals.Operator
}

func (r *Registry) Treasury() uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.principals.Treasury
}

func (r *Registry) Params() Params {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.params
}

func (r *Registry) IsOwner(caller uuid.UUID) bool {
	return caller != uuid.Nil && caller == r.Owner()
}

// IsOperator сообщает, что caller - оператор или владелец.
func (r *Registry) IsOperator(caller uuid.UUID) bool {
	if caller == uuid.Nil {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return caller == r.principals.Operator || caller == r.principals.Owner
}

// SetReference переназначает адрес компонента.
func (r *Registry) SetReference(ctx context.Context, caller uuid.UUID, c Component, addr uuid.UUID) error {
	return r.update(ctx, caller, addr, func(_ *Principals, refs map[Component]uuid.UUID, _ *Params) error {
		if _, ok := refs[c]; !ok {
			return apperror.ErrInvalidParams.WithMessage("неизвестный компонент %q", c)
		}
		refs[c] = addr
		return nil
	})
}

func (r *Registry) SetTreasury(ctx context.Context, caller, addr uuid.UUID) error {
	return r.update(ctx, caller, addr, func(p *Principals, _ map[Component]uuid.UUID, _ *Params) error {
		p.Treasury = addr
		return nil
	})
}

func (r *Registry) SetOperator(ctx context.Context, caller, addr uuid.UUID) error {
	return r.update(ctx, caller, addr, func(p *Principals, _ map[Component]uuid.UUID, _ *Params) error {
		p.Operator = addr
		return nil
	})
}

func (r *Registry) TransferOwnership(ctx context.Context, caller, addr uuid.UUID) error {
	return r.update(ctx, caller, addr, func(p *Principals, _ map[Component]uuid.UUID, _ *Params) error {
		p.Owner = addr
		return nil
	})
}

// SetParams заменяет параметры платформы целиком.
func (r *Registry) SetParams(ctx context.Context, caller uuid.UUID, params Params) error {
	if err := params.Validate(); err != nil {
		return err
	}
	return r.commit(ctx, caller, func(_ *Principals, _ map[Component]uuid.UUID, p *Params) error {
		*p = params
		return nil
	})
}

func (r *Registry) update(ctx context.Context, caller, addr uuid.UUID, apply func(*Principals, map[Component]uuid.UUID, *Params) error) error {
	return r.commit(ctx, caller, func(p *Principals, refs map[Component]uuid.UUID, params *Params) error {
		if addr == uuid.Nil {
			return apperror.ErrInvalidAddress
		}
		return apply(p, refs, params)
	})
}

// commit применяет apply к копии состояния, сохраняет её и только потом публикует.
func (r *Registry) commit(ctx context.Context, caller uuid.UUID, apply func(*Principals, map[Component]uuid.UUID, *Params) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if caller == uuid.Nil || caller != r.principals.Owner {
		return apperror.ErrNotOwner
	}

	principals, refs, params := r.principals, maps.Clone(r.refs), r.params
	if err := apply(&principals, refs, &params); err != nil {
		return err
	}
	if r.store != nil {
		if err := r.store.Save(ctx, r.settings(principals, refs, params)); err != nil {
			return err
		}
	}
	r.principals, r.refs, r.params = principals, refs, params
	return nil
}
