package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ignatzorin/freelance-escrow/internal/domain/entity"
	"github.com/ignatzorin/freelance-escrow/internal/domain/repository"
	"github.com/ignatzorin/freelance-escrow/internal/domain/valueobject"
	"github.com/ignatzorin/freelance-escrow/internal/pkg/apperror"
)

const disputeColumns = `id, project_id, milestone_index, milestone_amount, client_id, freelancer_id, reason_ref,
	votes_for_client, votes_for_freelancer, status, started_at, evidence_deadline, voting_deadline,
	client_won, finalized_at, updated_at`

type disputeRow struct {
	ID                 uuid.UUID                 `db:"id"`
	ProjectID          uuid.UUID                 `db:"project_id"`
	MilestoneIndex     int                       `db:"milestone_index"`
	MilestoneAmount    valueobject.Amount        `db:"milestone_amount"`
	ClientID           uuid.UUID                 `db:"client_id"`
	FreelancerID       uuid.UUID                 `db:"freelancer_id"`
	ReasonRef          string                    `db:"reason_ref"`
	VotesForClient     int                       `db:"votes_for_client"`
	VotesForFreelancer int                       `db:"votes_for_freelancer"`
	Status             valueobject.DisputeStatus `db:"status"`
	StartedAt          time.Time                 `db:"started_at"`
	EvidenceDeadline   time.Time                 `db:"evidence_deadline"`
	VotingDeadline     *time.Time                `db:"voting_deadline"`
	ClientWon          *bool                     `db:"client_won"`
	FinalizedAt        *time.Time                `db:"finalized_at"`
	UpdatedAt          time.Time                 `db:"updated_at"`
}

type panelRow struct {
	DisputeID    uuid.UUID `db:"dispute_id"`
	Seat         int       `db:"seat"`
	ArbitratorID uuid.UUID `db:"arbitrator_id"`
}

type voteRow struct {
	DisputeID    uuid.UUID `db:"dispute_id"`
	ArbitratorID uuid.UUID `db:"arbitrator_id"`
	ForClient    bool      `db:"for_client"`
	CastAt       time.Time `db:"cast_at"`
}

type evidenceRow struct {
	DisputeID   uuid.UUID `db:"dispute_id"`
	SubmitterID uuid.UUID `db:"submitter_id"`
	Ref         string    `db:"evidence_ref"`
	SubmittedAt time.Time `db:"submitted_at"`
}

// DisputeRepository хранит споры вместе с панелью, голосами и доказательствами.
type DisputeRepository struct {
	t *Transactor
}

var _ repository.DisputeRepository = (*DisputeRepository)(nil)

func NewDisputeRepository(t *Transactor) *DisputeRepository {
	return &DisputeRepository{t: t}
}

func (r *DisputeRepository) Create(ctx context.Context, d *entity.Dispute) error {
	return r.t.WithinTx(ctx, func(ctx context.Context) error {
		q := r.t.q(ctx)
		_, err := q.ExecContext(ctx, `
			INSERT INTO disputes (`+disputeColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
			d.ID, d.ProjectID, d.MilestoneIndex, d.MilestoneAmount, d.ClientID, d.FreelancerID, d.ReasonRef,
			d.VotesForClient, d.VotesForFreelancer, string(d.Status), d.StartedAt, d.EvidenceDeadline, d.VotingDeadline,
			d.ClientWon, d.FinalizedAt, d.UpdatedAt,
		)
		if err != nil {
			return apperror.Wrap(err, apperror.ErrCodeDatabase, "не удалось создать спор")
		}

		for seat, arbitrator := range d.Panel {
			_, err := q.ExecContext(ctx,
				`INSERT INTO dispute_panel (dispute_id, seat, arbitrator_id) VALUES ($1, $2, $3)`,
				d.ID, seat, arbitrator)
			if err != nil {
				return apperror.Wrap(err, apperror.ErrCodeDatabase, "не удалось сохранить панель спора")
			}
		}
		return r.saveChildren(ctx, d)
	})
}

func (r *DisputeRepository) Update(ctx context.Context, d *entity.Dispute) error {
	return r.t.WithinTx(ctx, func(ctx context.Context) error {
		res, err := r.t.q(ctx).ExecContext(ctx, `
			UPDATE disputes
			SET votes_for_client = $2, votes_for_freelancer = $3, status = $4, voting_deadline = $5,
				client_won = $6, finalized_at = $7, updated_at = $8
			WHERE id = $1`,
			d.ID, d.VotesForClient, d.VotesForFreelancer, string(d.Status), d.VotingDeadline,
			d.ClientWon, d.FinalizedAt, d.UpdatedAt,
		)
		if err != nil {
			return apperror.Wrap(err, apperror.ErrCodeDatabase, "не удалось обновить спор")
		}
		if rows, err := res.RowsAffected(); err == nil && rows == 0 {
			return apperror.ErrDisputeNotFound
		}
		return r.saveChildren(ctx, d)
	})
}

// saveChildren дописывает голоса и перезаписывает доказательства сторон.
func (r *DisputeRepository) saveChildren(ctx context.Context, d *entity.Dispute) error {
	q := r.t.q(ctx)
	for _, b := range d.Ballots {
		_, err := q.ExecContext(ctx, `
			INSERT INTO dispute_votes (dispute_id, arbitrator_id, for_client, cast_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (dispute_id, arbitrator_id) DO NOTHING`,
			d.ID, b.Arbitrator, b.ForClient, b.CastAt)
		if err != nil {
			return apperror.Wrap(err, apperror.ErrCodeDatabase, "не удалось сохранить голос")
		}
	}
	for _, e := range d.Evidence {
		_, err := q.ExecContext(ctx, `
			INSERT INTO dispute_evidence (dispute_id, submitter_id, evidence_ref, submitted_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (dispute_id, submitter_id) DO UPDATE
			SET evidence_ref = EXCLUDED.evidence_ref, submitted_at = EXCLUDED.submitted_at`,
			d.ID, e.Submitter, e.Ref, e.SubmittedAt)
		if err != nil {
			return apperror.Wrap(err, apperror.ErrCodeDatabase, "не удалось сохранить доказательство")
		}
	}
	return nil
}

func (r *DisputeRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Dispute, error) {
	return r.find(ctx, `SELECT `+disputeColumns+` FROM disputes WHERE id = $1`, id)
}

func (r *DisputeRepository) FindForUpdate(ctx context.Context, id uuid.UUID) (*entity.Dispute, error) {
	return r.find(ctx, `SELECT `+disputeColumns+` FROM disputes WHERE id = $1 FOR UPDATE`, id)
}

func (r *DisputeRepository) ListByArbitrator(ctx context.Context, arbitrator uuid.UUID) ([]*entity.Dispute, error) {
	return r.list(ctx, `
		SELECT `+disputeColumns+` FROM disputes d
		WHERE EXISTS (SELECT 1 FROM dispute_panel p WHERE p.dispute_id = d.id AND p.arbitrator_id = $1)
		ORDER BY started_at`, arbitrator)
}

func (r *DisputeRepository) ListDue(ctx context.Context, now time.Time, offset, limit int) ([]*entity.Dispute, error) {
	return r.list(ctx, `
		SELECT `+disputeColumns+` FROM disputes
		WHERE (status = 'evidence' AND evidence_deadline < $1)
		   OR (status = 'voting' AND voting_deadline < $1)
		ORDER BY started_at, id
		LIMIT $2 OFFSET $3`, now, limit, offset)
}

func (r *DisputeRepository) find(ctx context.Context, query string, id uuid.UUID) (*entity.Dispute, error) {
	var row disputeRow
	if err := r.t.q(ctx).GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrDisputeNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabase, "не удалось получить спор")
	}
	out, err := r.hydrate(ctx, []disputeRow{row})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (r *DisputeRepository) list(ctx context.Context, query string, args ...interface{}) ([]*entity.Dispute, error) {
	var rows []disputeRow
	if err := r.t.q(ctx).SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabase, "не удалось получить споры")
	}
	if len(rows) == 0 {
		return []*entity.Dispute{}, nil
	}
	return r.hydrate(ctx, rows)
}

// hydrate подгружает панель, голоса и доказательства одним запросом на таблицу.
func (r *DisputeRepository) hydrate(ctx context.Context, rows []disputeRow) ([]*entity.Dispute, error) {
	q := r.t.q(ctx)
	ids := make([]string, len(rows))
	byID := make(map[uuid.UUID]*entity.Dispute, len(rows))
	out := make([]*entity.Dispute, len(rows))
	for i, row := range rows {
		ids[i] = row.ID.String()
		d := &entity.Dispute{
			ID:                 row.ID,
			ProjectID:          row.ProjectID,
			MilestoneIndex:     row.MilestoneIndex,
			MilestoneAmount:    row.MilestoneAmount,
			ClientID:           row.ClientID,
			FreelancerID:       row.FreelancerID,
			ReasonRef:          row.ReasonRef,
			Ballots:            make(map[uuid.UUID]entity.Ballot),
			Evidence:           make(map[uuid.UUID]entity.Evidence),
			VotesForClient:     row.VotesForClient,
			VotesForFreelancer: row.VotesForFreelancer,
			Status:             row.Status,
			StartedAt:          row.StartedAt,
			EvidenceDeadline:   row.EvidenceDeadline,
			VotingDeadline:     row.VotingDeadline,
			ClientWon:          row.ClientWon,
			FinalizedAt:        row.FinalizedAt,
			UpdatedAt:          row.UpdatedAt,
		}
		byID[row.ID] = d
		out[i] = d
	}

	var panel []panelRow
	if err := q.SelectContext(ctx, &panel, `
		SELECT dispute_id, seat, arbitrator_id FROM dispute_panel
		WHERE dispute_id = ANY($1::uuid[]) ORDER BY dispute_id, seat`, pq.Array(ids)); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabase, "не удалось получить панель спора")
	}
	for _, p := range panel {
		if d, ok := byID[p.DisputeID]; ok {
			d.Panel = append(d.Panel, p.ArbitratorID)
		}
	}

	var votes []voteRow
	if err := q.SelectContext(ctx, &votes, `
		SELECT dispute_id, arbitrator_id, for_client, cast_at FROM dispute_votes
		WHERE dispute_id = ANY($1::uuid[])`, pq.Array(ids)); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabase, "не удалось получить голоса")
	}
	for _, v := range votes {
		if d, ok := byID[v.DisputeID]; ok {
			d.Ballots[v.ArbitratorID] = entity.Ballot{Arbitrator: v.ArbitratorID, ForClient: v.ForClient, CastAt: v.CastAt}
		}
	}

	var evidence []evidenceRow
	if err := q.SelectContext(ctx, &evidence, `
		SELECT dispute_id, submitter_id, evidence_ref, submitted_at FROM dispute_evidence
		WHERE dispute_id = ANY($1::uuid[])`, pq.Array(ids)); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabase, "не удалось получить доказательства")
	}
	for _, e := range evidence {
		if d, ok := byID[e.DisputeID]; ok {
			d.Evidence[e.SubmitterID] = entity.Evidence{Submitter: e.SubmitterID, Ref: e.Ref, SubmittedAt: e.SubmittedAt}
		}
	}

	return out, nil
}
