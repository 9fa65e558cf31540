package memory

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/freelance-escrow/internal/domain/entity"
	"github.com/ignatzorin/freelance-escrow/internal/domain/valueobject"
	"github.com/ignatzorin/freelance-escrow/internal/pkg/apperror"
)

type userRepo struct{ s *Store }

func (r userRepo) Create(ctx context.Context, u *entity.User) error {
	return r.s.view(ctx, func(st *state) error {
		for _, existing := range st.users {
			if strings.EqualFold(existing.Email, u.Email) {
				return apperror.ErrEmailTaken
			}
		}
		cp := *u
		st.users[u.ID] = &cp
		return nil
	})
}

func (r userRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	var out *entity.User
	err := r.s.view(ctx, func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return apperror.ErrUserNotFound
		}
		cp := *u
		out = &cp
		return nil
	})
	return out, err
}

func (r userRepo) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	var out *entity.User
	err := r.s.view(ctx, func(st *state) error {
		for _, u := range st.users {
			if strings.EqualFold(u.Email, email) {
				cp := *u
				out = &cp
				return nil
			}
		}
		return apperror.ErrUserNotFound
	})
	return out, err
}

func (r userRepo) TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.s.view(ctx, func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return apperror.ErrUserNotFound
		}
		cp := *u
		cp.LastLoginAt = &at
		st.users[id] = &cp
		return nil
	})
}

type feedbackRepo struct{ s *Store }

func (r feedbackRepo) Create(ctx context.Context, f *entity.Feedback) error {
	return r.s.view(ctx, func(st *state) error {
		for _, existing := range st.feedback {
			if existing.ProjectID == f.ProjectID && existing.AuthorID == f.AuthorID {
				return apperror.ErrFeedbackExists
			}
		}
		st.feedback = append(st.feedback, *f)
		return nil
	})
}

func (r feedbackRepo) Exists(ctx context.Context, projectID, authorID uuid.UUID) (bool, error) {
	found := false
	err := r.s.view(ctx, func(st *state) error {
		for _, f := range st.feedback {
			if f.ProjectID == projectID && f.AuthorID == authorID {
				found = true
				break
			}
		}
		return nil
	})
	return found, err
}

func (r feedbackRepo) SumScores(ctx context.Context, subjectID uuid.UUID) (uint64, error) {
	var sum uint64
	err := r.s.view(ctx, func(st *state) error {
		for _, f := range st.feedback {
			if f.SubjectID == subjectID {
				sum += uint64(f.Score)
			}
		}
		return nil
	})
	return sum, err
}

type walletRepo struct{ s *Store }

func (r walletRepo) FindForUpdate(ctx context.Context, userID uuid.UUID, currency valueobject.Currency) (*entity.WalletBalance, error) {
	var out *entity.WalletBalance
	err := r.s.view(ctx, func(st *state) error {
		if w, ok := st.wallets[walletKey{userID, currency}]; ok {
			out = &w
		}
		return nil
	})
	return out, err
}

func (r walletRepo) Save(ctx context.Context, b *entity.WalletBalance) error {
	return r.s.view(ctx, func(st *state) error {
		st.wallets[walletKey{b.UserID, b.Currency}] = *b
		return nil
	})
}

func (r walletRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]entity.WalletBalance, error) {
	var out []entity.WalletBalance
	err := r.s.view(ctx, func(st *state) error {
		for k, w := range st.wallets {
			if k.user == userID {
				out = append(out, w)
			}
		}
		return nil
	})
	return out, err
}

type preferenceRepo struct{ s *Store }

func (r preferenceRepo) IsOptedOut(ctx context.Context, userID uuid.UUID, category string) (bool, error) {
	var out bool
	err := r.s.view(ctx, func(st *state) error {
		_, out = st.optOuts[optOutKey{userID, category}]
		return nil
	})
	return out, err
}

func (r preferenceRepo) SetOptOut(ctx context.Context, userID uuid.UUID, category string, optedOut bool) error {
	return r.s.view(ctx, func(st *state) error {
		key := optOutKey{userID, category}
		if optedOut {
			st.optOuts[key] = struct{}{}
		} else {
			delete(st.optOuts, key)
		}
		return nil
	})
}
