package memory

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/freelance-escrow/internal/domain/entity"
)

type arbitratorRepo struct{ s *Store }

func (r arbitratorRepo) FindByAddress(ctx context.Context, address uuid.UUID) (*entity.Arbitrator, error) {
	var out *entity.Arbitrator
	err := r.s.view(ctx, func(st *state) error {
		if a, ok := st.arbitrators[address]; ok {
			cp := *a
			out = &cp
		}
		return nil
	})
	return out, err
}

func (r arbitratorRepo) Save(ctx context.Context, a *entity.Arbitrator) error {
	return r.s.view(ctx, func(st *state) error {
		cp := *a
		st.arbitrators[a.Address] = &cp
		return nil
	})
}

func (r arbitratorRepo) LoadActiveSet(ctx context.Context) (*entity.ActiveSet, error) {
	var out *entity.ActiveSet
	err := r.s.view(ctx, func(st *state) error {
		out = entity.NewActiveSet(st.activeSet)
		return nil
	})
	return out, err
}

// LockActiveSet не требует отдельной блокировки: транзакции хранилища уже эксклюзивны.
func (r arbitratorRepo) LockActiveSet(ctx context.Context) (*entity.ActiveSet, error) {
	return r.LoadActiveSet(ctx)
}

func (r arbitratorRepo) SaveActiveSet(ctx context.Context, set *entity.ActiveSet) error {
	return r.s.view(ctx, func(st *state) error {
		st.activeSet = set.Members()
		return nil
	})
}
