package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ignatzorin/freelance-escrow/internal/domain/entity"
	"github.com/ignatzorin/freelance-escrow/internal/domain/repository"
	"github.com/ignatzorin/freelance-escrow/internal/domain/valueobject"
	"github.com/ignatzorin/freelance-escrow/internal/pkg/apperror"
)

const projectColumns = `id, job_id, client_id, freelancer_id, budget, deadline, status,
	completed_count, approved_count, disputed_milestone, started_at, updated_at`

type projectRow struct {
	ID                uuid.UUID                 `db:"id"`
	JobID             uuid.UUID                 `db:"job_id"`
	ClientID          uuid.UUID                 `db:"client_id"`
	FreelancerID      uuid.UUID                 `db:"freelancer_id"`
	Budget            valueobject.Amount        `db:"budget"`
	Deadline          time.Time                 `db:"deadline"`
	Status            valueobject.ProjectStatus `db:"status"`
	CompletedCount    int                       `db:"completed_count"`
	ApprovedCount     int                       `db:"approved_count"`
	DisputedMilestone sql.NullInt32             `db:"disputed_milestone"`
	StartedAt         time.Time                 `db:"started_at"`
	UpdatedAt         time.Time                 `db:"updated_at"`
}

type milestoneRow struct {
	ProjectID   uuid.UUID          `db:"project_id"`
	Index       int                `db:"idx"`
	Description string             `db:"description"`
	Amount      valueobject.Amount `db:"amount"`
	Completed   bool               `db:"completed"`
	Approved    bool               `db:"approved"`
	Arbitrated  bool               `db:"arbitrated"`
	CompletedAt *time.Time         `db:"completed_at"`
	ApprovedAt  *time.Time         `db:"approved_at"`
}

func (r projectRow) toEntity(milestones []milestoneRow) *entity.Project {
	p := &entity.Project{
		ID:             r.ID,
		JobID:          r.JobID,
		ClientID:       r.ClientID,
		FreelancerID:   r.FreelancerID,
		Budget:         r.Budget,
		Deadline:       r.Deadline,
		Status:         r.Status,
		CompletedCount: r.CompletedCount,
		ApprovedCount:  r.ApprovedCount,
		StartedAt:      r.StartedAt,
		UpdatedAt:      r.UpdatedAt,
		Milestones:     make([]entity.Milestone, 0, len(milestones)),
	}
	if r.DisputedMilestone.Valid {
		idx := int(r.DisputedMilestone.Int32)
		p.DisputedMilestone = &idx
	}
	for _, m := range milestones {
		p.Milestones = append(p.Milestones, entity.Milestone{
			Index:       m.Index,
			Description: m.Description,
			Amount:      m.Amount,
			Completed:   m.Completed,
			Approved:    m.Approved,
			Arbitrated:  m.Arbitrated,
			CompletedAt: m.CompletedAt,
			ApprovedAt:  m.ApprovedAt,
		})
	}
	return p
}

func disputedMilestone(p *entity.Project) sql.NullInt32 {
	if p.DisputedMilestone == nil {
		return sql.NullInt32{}
	}
	return sql.NullInt32{Int32: int32(*p.DisputedMilestone), Valid: true}
}

// ProjectRepository хранит проекты и их этапы.
type ProjectRepository struct {
	t *Transactor
}

var _ repository.ProjectRepository = (*ProjectRepository)(nil)

func NewProjectRepository(t *Transactor) *ProjectRepository {
	return &ProjectRepository{t: t}
}

func (r *ProjectRepository) Create(ctx context.Context, p *entity.Project) error {
	return r.t.WithinTx(ctx, func(ctx context.Context) error {
		q := r.t.q(ctx)
		_, err := q.ExecContext(ctx, `
			INSERT INTO projects (`+projectColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			p.ID, p.JobID, p.ClientID, p.FreelancerID, p.Budget, p.Deadline, string(p.Status),
			p.CompletedCount, p.ApprovedCount, disputedMilestone(p), p.StartedAt, p.UpdatedAt,
		)
		if err != nil {
			return apperror.Wrap(err, apperror.ErrCodeDatabase, "не удалось создать проект")
		}

		for _, m := range p.Milestones {
			_, err := q.ExecContext(ctx, `
				INSERT INTO milestones (project_id, idx, description, amount, completed, approved, arbitrated, completed_at, approved_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
				p.ID, m.Index, m.Description, m.Amount, m.Completed, m.Approved, m.Arbitrated, m.CompletedAt, m.ApprovedAt,
			)
			if err != nil {
				return apperror.Wrap(err, apperror.ErrCodeDatabase, "не удалось сохранить этап проекта")
			}
		}
		return nil
	})
}

func (r *ProjectRepository) Update(ctx context.Context, p *entity.Project) error {
	return r.t.WithinTx(ctx, func(ctx context.Context) error {
		q := r.t.q(ctx)
		res, err := q.ExecContext(ctx, `
			UPDATE projects
			SET status = $2, completed_count = $3, approved_count = $4, disputed_milestone = $5, updated_at = $6
			WHERE id = $1`,
			p.ID, string(p.Status), p.CompletedCount, p.ApprovedCount, disputedMilestone(p), p.UpdatedAt,
		)
		if err != nil {
			return apperror.Wrap(err, apperror.ErrCodeDatabase, "не удалось обновить проект")
		}
		if rows, err := res.RowsAffected(); err == nil && rows == 0 {
			return apperror.ErrProjectNotFound
		}

		for _, m := range p.Milestones {
			_, err := q.ExecContext(ctx, `
				UPDATE milestones
				SET completed = $3, approved = $4, arbitrated = $5, completed_at = $6, approved_at = $7
				WHERE project_id = $1 AND idx = $2`,
				p.ID, m.Index, m.Completed, m.Approved, m.Arbitrated, m.CompletedAt, m.ApprovedAt,
			)
			if err != nil {
				return apperror.Wrap(err, apperror.ErrCodeDatabase, "не удалось обновить этап проекта")
			}
		}
		return nil
	})
}

func (r *ProjectRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Project, error) {
	return r.find(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id)
}

// FindForUpdate блокирует строку проекта до конца транзакции.
func (r *ProjectRepository) FindForUpdate(ctx context.Context, id uuid.UUID) (*entity.Project, error) {
	return r.find(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1 FOR UPDATE`, id)
}

func (r *ProjectRepository) ListByParticipant(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entity.Project, error) {
	q := r.t.q(ctx)
	var rows []projectRow
	err := q.SelectContext(ctx, &rows, `
		SELECT `+projectColumns+` FROM projects
		WHERE client_id = $1 OR freelancer_id = $1
		ORDER BY started_at DESC
		LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabase, "не удалось получить проекты")
	}
	if len(rows) == 0 {
		return []*entity.Project{}, nil
	}

	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = row.ID.String()
	}
	var milestones []milestoneRow
	err = q.SelectContext(ctx, &milestones, `
		SELECT project_id, idx, description, amount, completed, approved, arbitrated, completed_at, approved_at
		FROM milestones WHERE project_id = ANY($1::uuid[])
		ORDER BY project_id, idx`, pq.Array(ids))
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabase, "не удалось получить этапы проектов")
	}

	byProject := make(map[uuid.UUID][]milestoneRow, len(rows))
	for _, m := range milestones {
		byProject[m.ProjectID] = append(byProject[m.ProjectID], m)
	}

	out := make([]*entity.Project, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toEntity(byProject[row.ID]))
	}
	return out, nil
}

func (r *ProjectRepository) find(ctx context.Context, query string, id uuid.UUID) (*entity.Project, error) {
	q := r.t.q(ctx)
	var row projectRow
	if err := q.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrProjectNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabase, "не удалось получить проект")
	}

	milestones, err := loadMilestones(ctx, q, id)
	if err != nil {
		return nil, err
	}
	return row.toEntity(milestones), nil
}

func loadMilestones(ctx context.Context, q sqlx.QueryerContext, projectID uuid.UUID) ([]milestoneRow, error) {
	var milestones []milestoneRow
	err := sqlx.SelectContext(ctx, q, &milestones, `
		SELECT project_id, idx, description, amount, completed, approved, arbitrated, completed_at, approved_at
		FROM milestones WHERE project_id = $1 ORDER BY idx`, projectID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabase, "не удалось получить этапы проекта")
	}
	return milestones, nil
}

// JobRepository хранит задания.
type JobRepository struct {
	t *Transactor
}

var _ repository.JobRepository = (*JobRepository)(nil)

func NewJobRepository(t *Transactor) *JobRepository {
	return &JobRepository{t: t}
}

const jobColumns = `id, client_id, title, status, created_at, updated_at`

func (r *JobRepository) Create(ctx context.Context, job *entity.Job) error {
	_, err := r.t.q(ctx).ExecContext(ctx, `
		INSERT INTO jobs (`+jobColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		job.ID, job.ClientID, job.Title, string(job.Status), job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabase, "не удалось создать задание")
	}
	return nil
}

func (r *JobRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	return r.find(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
}

func (r *JobRepository) FindForUpdate(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	return r.find(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1 FOR UPDATE`, id)
}

func (r *JobRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status valueobject.JobStatus) error {
	res, err := r.t.q(ctx).ExecContext(ctx,
		`UPDATE jobs SET status = $2, updated_at = NOW() WHERE id = $1`, id, string(status))
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabase, "не удалось обновить статус задания")
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return apperror.ErrJobNotFound
	}
	return nil
}

func (r *JobRepository) find(ctx context.Context, query string, id uuid.UUID) (*entity.Job, error) {
	var job entity.Job
	row := r.t.q(ctx).QueryRowxContext(ctx, query, id)
	if err := row.Scan(&job.ID, &job.ClientID, &job.Title, &job.Status, &job.CreatedAt, &job.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrJobNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabase, "не удалось получить задание")
	}
	return &job, nil
}
