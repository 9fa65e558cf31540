package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/freelance-escrow/internal/domain/entity"
	"github.com/ignatzorin/freelance-escrow/internal/domain/repository"
	"github.com/ignatzorin/freelance-escrow/internal/domain/valueobject"
	"github.com/ignatzorin/freelance-escrow/internal/pkg/apperror"
)

const escrowColumns = `project_id, currency, balance, funded, released, refunded, fees, created_at, updated_at`

type escrowRow struct {
	ProjectID uuid.UUID            `db:"project_id"`
	Currency  valueobject.Currency `db:"currency"`
	Balance   valueobject.Amount   `db:"balance"`
	Funded    valueobject.Amount   `db:"funded"`
	Released  valueobject.Amount   `db:"released"`
	Refunded  valueobject.Amount   `db:"refunded"`
	Fees      valueobject.Amount   `db:"fees"`
	CreatedAt time.Time            `db:"created_at"`
	UpdatedAt time.Time            `db:"updated_at"`
}

type ledgerRow struct {
	ID           uuid.UUID              `db:"id"`
	ProjectID    uuid.UUID              `db:"project_id"`
	Kind         entity.LedgerEntryKind `db:"kind"`
	Mover        uuid.UUID              `db:"mover"`
	Counterparty uuid.UUID              `db:"counterparty"`
	Currency     valueobject.Currency   `db:"currency"`
	Amount       valueobject.Amount     `db:"amount"`
	CreatedAt    time.Time              `db:"created_at"`
}

// EscrowRepository хранит счета эскроу и журнал движений.
type EscrowRepository struct {
	t *Transactor
}

var _ repository.EscrowRepository = (*EscrowRepository)(nil)

func NewEscrowRepository(t *Transactor) *EscrowRepository {
	return &EscrowRepository{t: t}
}

func (r *EscrowRepository) FindAccount(ctx context.Context, projectID uuid.UUID) (*entity.EscrowAccount, error) {
	return r.find(ctx, `SELECT `+escrowColumns+` FROM escrow_accounts WHERE project_id = $1`, projectID)
}

func (r *EscrowRepository) FindAccountForUpdate(ctx context.Context, projectID uuid.UUID) (*entity.EscrowAccount, error) {
	return r.find(ctx, `SELECT `+escrowColumns+` FROM escrow_accounts WHERE project_id = $1 FOR UPDATE`, projectID)
}

func (r *EscrowRepository) SaveAccount(ctx context.Context, a *entity.EscrowAccount) error {
	_, err := r.t.q(ctx).ExecContext(ctx, `
		INSERT INTO escrow_accounts (`+escrowColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (project_id) DO UPDATE SET
			balance = EXCLUDED.balance,
			funded = EXCLUDED.funded,
			released = EXCLUDED.released,
			refunded = EXCLUDED.refunded,
			fees = EXCLUDED.fees,
			updated_at = EXCLUDED.updated_at`,
		a.ProjectID, string(a.Currency), a.Balance, a.Funded, a.Released, a.Refunded, a.Fees, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabase, "не удалось сохранить счёт эскроу")
	}
	return nil
}

func (r *EscrowRepository) AppendEntry(ctx context.Context, e entity.LedgerEntry) error {
	_, err := r.t.q(ctx).ExecContext(ctx, `
		INSERT INTO ledger_entries (id, project_id, kind, mover, counterparty, currency, amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.ProjectID, string(e.Kind), e.Mover, e.Counterparty, string(e.Currency), e.Amount, e.CreatedAt,
	)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabase, "не удалось записать движение средств")
	}
	return nil
}

func (r *EscrowRepository) ListEntries(ctx context.Context, projectID uuid.UUID) ([]entity.LedgerEntry, error) {
	var rows []ledgerRow
	err := r.t.q(ctx).SelectContext(ctx, &rows, `
		SELECT id, project_id, kind, mover, counterparty, currency, amount, created_at
		FROM ledger_entries WHERE project_id = $1 ORDER BY seq`, projectID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabase, "не удалось получить журнал эскроу")
	}

	out := make([]entity.LedgerEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, entity.LedgerEntry(row))
	}
	return out, nil
}

func (r *EscrowRepository) find(ctx context.Context, query string, projectID uuid.UUID) (*entity.EscrowAccount, error) {
	var row escrowRow
	if err := r.t.q(ctx).GetContext(ctx, &row, query, projectID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabase, "не удалось получить счёт эскроу")
	}
	account := entity.EscrowAccount(row)
	return &account, nil
}
