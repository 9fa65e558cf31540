package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/freelance-escrow/internal/domain/entity"
	"github.com/ignatzorin/freelance-escrow/internal/domain/valueobject"
	"github.com/ignatzorin/freelance-escrow/internal/pkg/apperror"
)

type disputeRepo struct{ s *Store }

func (r disputeRepo) Create(ctx context.Context, d *entity.Dispute) error {
	return r.s.view(ctx, func(st *state) error {
		st.disputes[d.ID] = d.Clone()
		st.disputeOrder = append(st.disputeOrder, d.ID)
		return nil
	})
}

func (r disputeRepo) Update(ctx context.Context, d *entity.Dispute) error {
	return r.s.view(ctx, func(st *state) error {
		if _, ok := st.disputes[d.ID]; !ok {
			return apperror.ErrDisputeNotFound
		}
		st.disputes[d.ID] = d.Clone()
		return nil
	})
}

func (r disputeRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.Dispute, error) {
	var out *entity.Dispute
	err := r.s.view(ctx, func(st *state) error {
		d, ok := st.disputes[id]
		if !ok {
			return apperror.ErrDisputeNotFound
		}
		out = d.Clone()
		return nil
	})
	return out, err
}

func (r disputeRepo) FindForUpdate(ctx context.Context, id uuid.UUID) (*entity.Dispute, error) {
	return r.FindByID(ctx, id)
}

func (r disputeRepo) ListByArbitrator(ctx context.Context, arbitrator uuid.UUID) ([]*entity.Dispute, error) {
	return r.filter(ctx, 0, 0, func(d *entity.Dispute) bool {
		return d.IsPanelMember(arbitrator)
	})
}

func (r disputeRepo) ListDue(ctx context.Context, now time.Time, offset, limit int) ([]*entity.Dispute, error) {
	return r.filter(ctx, offset, limit, func(d *entity.Dispute) bool {
		switch d.Status {
		case valueobject.DisputeStatusEvidence:
			return now.After(d.EvidenceDeadline)
		case valueobject.DisputeStatusVoting:
			return d.VotingDeadline != nil && now.After(*d.VotingDeadline)
		}
		return false
	})
}

func (r disputeRepo) filter(ctx context.Context, offset, limit int, keep func(*entity.Dispute) bool) ([]*entity.Dispute, error) {
	var out []*entity.Dispute
	err := r.s.view(ctx, func(st *state) error {
		skipped := 0
		for _, id := range st.disputeOrder {
			d := st.disputes[id]
			if !keep(d) {
				continue
			}
			if skipped < offset {
				skipped++
				continue
			}
			out = append(out, d.Clone())
			if limit > 0 && len(out) == limit {
				break
			}
		}
		return nil
	})
	return out, err
}
