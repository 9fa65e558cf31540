package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/freelance-escrow/internal/domain/entity"
	"github.com/ignatzorin/freelance-escrow/internal/domain/valueobject"
	"github.com/ignatzorin/freelance-escrow/internal/pkg/apperror"
)

type projectRepo struct{ s *Store }

func (r projectRepo) Create(ctx context.Context, p *entity.Project) error {
	return r.s.view(ctx, func(st *state) error {
		if _, ok := st.projects[p.ID]; ok {
			return apperror.New(apperror.ErrCodeConflict, "проект уже существует")
		}
		st.projects[p.ID] = p.Clone()
		st.projectOrder = append(st.projectOrder, p.ID)
		return nil
	})
}

func (r projectRepo) Update(ctx context.Context, p *entity.Project) error {
	return r.s.view(ctx, func(st *state) error {
		if _, ok := st.projects[p.ID]; !ok {
			return apperror.ErrProjectNotFound
		}
		st.projects[p.ID] = p.Clone()
		return nil
	})
}

func (r projectRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.Project, error) {
	var out *entity.Project
	err := r.s.view(ctx, func(st *state) error {
		p, ok := st.projects[id]
		if !ok {
			return apperror.ErrProjectNotFound
		}
		out = p.Clone()
		return nil
	})
	return out, err
}

func (r projectRepo) FindForUpdate(ctx context.Context, id uuid.UUID) (*entity.Project, error) {
	return r.FindByID(ctx, id)
}

func (r projectRepo) ListByParticipant(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entity.Project, error) {
	var out []*entity.Project
	err := r.s.view(ctx, func(st *state) error {
		skipped := 0
		// Новые проекты первыми.
		for i := len(st.projectOrder) - 1; i >= 0; i-- {
			p := st.projects[st.projectOrder[i]]
			if !p.IsParticipant(userID) {
				continue
			}
			if skipped < offset {
				skipped++
				continue
			}
			if limit > 0 && len(out) >= limit {
				break
			}
			out = append(out, p.Clone())
		}
		return nil
	})
	return out, err
}

type jobRepo struct{ s *Store }

func (r jobRepo) Create(ctx context.Context, job *entity.Job) error {
	return r.s.view(ctx, func(st *state) error {
		cp := *job
		st.jobs[job.ID] = &cp
		return nil
	})
}

func (r jobRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	var out *entity.Job
	err := r.s.view(ctx, func(st *state) error {
		j, ok := st.jobs[id]
		if !ok {
			return apperror.ErrJobNotFound
		}
		cp := *j
		out = &cp
		return nil
	})
	return out, err
}

func (r jobRepo) FindForUpdate(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	return r.FindByID(ctx, id)
}

func (r jobRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status valueobject.JobStatus) error {
	return r.s.view(ctx, func(st *state) error {
		j, ok := st.jobs[id]
		if !ok {
			return apperror.ErrJobNotFound
		}
		cp := *j
		cp.Status = status
		cp.UpdatedAt = time.Now()
		st.jobs[id] = &cp
		return nil
	})
}
