package persistence

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ignatzorin/freelance-escrow/internal/domain/entity"
	"github.com/ignatzorin/freelance-escrow/internal/domain/repository"
	"github.com/ignatzorin/freelance-escrow/internal/pkg/apperror"
)

// Ключ advisory-блокировки набора активных арбитров.
const activeSetLockKey = 0x61726269

// ArbitratorRepository хранит профили арбитров и упорядоченный набор активных.
type ArbitratorRepository struct {
	t *Transactor
}

var _ repository.ArbitratorRepository = (*ArbitratorRepository)(nil)

func NewArbitratorRepository(t *Transactor) *ArbitratorRepository {
	return &ArbitratorRepository{t: t}
}

func (r *ArbitratorRepository) FindByAddress(ctx context.Context, address uuid.UUID) (*entity.Arbitrator, error) {
	var a entity.Arbitrator
	row := r.t.q(ctx).QueryRowxContext(ctx, `
		SELECT address, profile_ref, status, registered_at, last_status_change
		FROM arbitrators WHERE address = $1`, address)
	if err := row.Scan(&a.Address, &a.ProfileRef, &a.Status, &a.RegisteredAt, &a.LastStatusChange); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabase, "не удалось получить арбитра")
	}
	return &a, nil
}

func (r *ArbitratorRepository) Save(ctx context.Context, a *entity.Arbitrator) error {
	_, err := r.t.q(ctx).ExecContext(ctx, `
		INSERT INTO arbitrators (address, profile_ref, status, registered_at, last_status_change)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (address) DO UPDATE SET
			profile_ref = EXCLUDED.profile_ref,
			status = EXCLUDED.status,
			last_status_change = EXCLUDED.last_status_change`,
		a.Address, a.ProfileRef, string(a.Status), a.RegisteredAt, a.LastStatusChange,
	)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabase, "не удалось сохранить арбитра")
	}
	return nil
}

func (r *ArbitratorRepository) LoadActiveSet(ctx context.Context) (*entity.ActiveSet, error) {
	var members []uuid.UUID
	err := r.t.q(ctx).SelectContext(ctx, &members, `SELECT address FROM arbitrator_active_set ORDER BY position`)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabase, "не удалось получить активных арбитров")
	}
	return entity.NewActiveSet(members), nil
}

// LockActiveSet берёт транзакционную advisory-блокировку: строки набора меняются целиком.
func (r *ArbitratorRepository) LockActiveSet(ctx context.Context) (*entity.ActiveSet, error) {
	if _, ok := current(ctx); !ok {
		return nil, apperror.New(apperror.ErrCodeInternal, "блокировка набора арбитров требует транзакции")
	}
	if _, err := r.t.q(ctx).ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, activeSetLockKey); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabase, "не удалось заблокировать набор арбитров")
	}
	return r.LoadActiveSet(ctx)
}

func (r *ArbitratorRepository) SaveActiveSet(ctx context.Context, set *entity.ActiveSet) error {
	return r.t.WithinTx(ctx, func(ctx context.Context) error {
		q := r.t.q(ctx)
		if _, err := q.ExecContext(ctx, `DELETE FROM arbitrator_active_set`); err != nil {
			return apperror.Wrap(err, apperror.ErrCodeDatabase, "не удалось обновить набор арбитров")
		}

		members := set.Members()
		if len(members) == 0 {
			return nil
		}
		positions := make([]int64, len(members))
		addresses := make([]string, len(members))
		for i, m := range members {
			positions[i] = int64(i)
			addresses[i] = m.String()
		}
		_, err := q.ExecContext(ctx, `
			INSERT INTO arbitrator_active_set (position, address)
			SELECT * FROM unnest($1::int[], $2::uuid[])`,
			pq.Array(positions), pq.Array(addresses))
		if err != nil {
			return apperror.Wrap(err, apperror.ErrCodeDatabase, "не удалось обновить набор арбитров")
		}
		return nil
	})
}
