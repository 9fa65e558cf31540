package memory

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/freelance-escrow/internal/domain/entity"
)

type escrowRepo struct{ s *Store }

func (r escrowRepo) FindAccount(ctx context.Context, projectID uuid.UUID) (*entity.EscrowAccount, error) {
	var out *entity.EscrowAccount
	err := r.s.view(ctx, func(st *state) error {
		if a, ok := st.accounts[projectID]; ok {
			out = a.Clone()
		}
		return nil
	})
	return out, err
}

func (r escrowRepo) FindAccountForUpdate(ctx context.Context, projectID uuid.UUID) (*entity.EscrowAccount, error) {
	return r.FindAccount(ctx, projectID)
}

func (r escrowRepo) SaveAccount(ctx context.Context, account *entity.EscrowAccount) error {
	return r.s.view(ctx, func(st *state) error {
		st.accounts[account.ProjectID] = account.Clone()
		return nil
	})
}

func (r escrowRepo) AppendEntry(ctx context.Context, entry entity.LedgerEntry) error {
	return r.s.view(ctx, func(st *state) error {
		st.entries = append(st.entries, entry)
		return nil
	})
}

func (r escrowRepo) ListEntries(ctx context.Context, projectID uuid.UUID) ([]entity.LedgerEntry, error) {
	var out []entity.LedgerEntry
	err := r.s.view(ctx, func(st *state) error {
		for _, e := range st.entries {
			if e.ProjectID == projectID {
				out = append(out, e)
			}
		}
		return nil
	})
	return out, err
}
