package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/freelance-escrow/internal/domain/entity"
	"github.com/ignatzorin/freelance-escrow/internal/domain/repository"
	"github.com/ignatzorin/freelance-escrow/internal/pkg/apperror"
)

const settingsColumns = `owner_id, operator_id, treasury_id, escrow_id, projects_id, disputes_id, pool_id,
	fee_bps, min_reputation, panel_size, evidence_period_seconds, voting_period_seconds, updated_at`

type settingsRow struct {
	OwnerID        uuid.UUID `db:"owner_id"`
	OperatorID     uuid.UUID `db:"operator_id"`
	TreasuryID     uuid.UUID `db:"treasury_id"`
	EscrowID       uuid.UUID `db:"escrow_id"`
	ProjectsID     uuid.UUID `db:"projects_id"`
	DisputesID     uuid.UUID `db:"disputes_id"`
	PoolID         uuid.UUID `db:"pool_id"`
	FeeBps         int64     `db:"fee_bps"`
	MinReputation  int64     `db:"min_reputation"`
	PanelSize      int       `db:"panel_size"`
	EvidencePeriod int64     `db:"evidence_period_seconds"`
	VotingPeriod   int64     `db:"voting_period_seconds"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// PlatformSettingsRepository хранит единственную строку настроек реестра.
type PlatformSettingsRepository struct {
	t *Transactor
}

var _ repository.PlatformSettingsRepository = (*PlatformSettingsRepository)(nil)

func NewPlatformSettingsRepository(t *Transactor) *PlatformSettingsRepository {
	return &PlatformSettingsRepository{t: t}
}

func (r *PlatformSettingsRepository) Load(ctx context.Context) (*entity.PlatformSettings, error) {
	var row settingsRow
	err := r.t.q(ctx).GetContext(ctx, &row, `SELECT `+settingsColumns+` FROM platform_settings WHERE id = 1`)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabase, "не удалось получить настройки платформы")
	}
	return &entity.PlatformSettings{
		OwnerID:                 row.OwnerID,
		OperatorID:              row.OperatorID,
		TreasuryID:              row.TreasuryID,
		EscrowID:                row.EscrowID,
		ProjectsID:              row.ProjectsID,
		DisputesID:              row.DisputesID,
		PoolID:                  row.PoolID,
		FeeBps:                  uint32(row.FeeBps),
		MinReputationToRegister: uint64(row.MinReputation),
		PanelSize:               row.PanelSize,
		EvidencePeriod:          time.Duration(row.EvidencePeriod) * time.Second,
		VotingPeriod:            time.Duration(row.VotingPeriod) * time.Second,
		UpdatedAt:               row.UpdatedAt,
	}, nil
}

func (r *PlatformSettingsRepository) Save(ctx context.Context, s *entity.PlatformSettings) error {
	_, err := r.t.q(ctx).ExecContext(ctx, `
		INSERT INTO platform_settings (id, `+settingsColumns+`)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			owner_id = EXCLUDED.owner_id,
			operator_id = EXCLUDED.operator_id,
			treasury_id = EXCLUDED.treasury_id,
			escrow_id = EXCLUDED.escrow_id,
			projects_id = EXCLUDED.projects_id,
			disputes_id = EXCLUDED.disputes_id,
			pool_id = EXCLUDED.pool_id,
			fee_bps = EXCLUDED.fee_bps,
			min_reputation = EXCLUDED.min_reputation,
			panel_size = EXCLUDED.panel_size,
			evidence_period_seconds = EXCLUDED.evidence_period_seconds,
			voting_period_seconds = EXCLUDED.voting_period_seconds,
			updated_at = EXCLUDED.updated_at`,
		s.OwnerID, s.OperatorID, s.TreasuryID, s.EscrowID, s.ProjectsID, s.DisputesID, s.PoolID,
		int64(s.FeeBps), int64(s.MinReputationToRegister), s.PanelSize,
		int64(s.EvidencePeriod/time.Second), int64(s.VotingPeriod/time.Second), s.UpdatedAt,
	)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabase, "не удалось сохранить настройки платформы")
	}
	return nil
}
