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

const userColumns = `id, email, username, password_hash, role, is_active, last_login_at, created_at, updated_at`

// UserRepository хранит пользователей.
type UserRepository struct {
	t *Transactor
}

var _ repository.UserRepository = (*UserRepository)(nil)

func NewUserRepository(t *Transactor) *UserRepository {
	return &UserRepository{t: t}
}

func (r *UserRepository) Create(ctx context.Context, u *entity.User) error {
	_, err := r.t.q(ctx).ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		u.ID, u.Email, u.Username, u.PasswordHash, string(u.Role), u.IsActive, u.LastLoginAt, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.ErrEmailTaken
		}
		return apperror.Wrap(err, apperror.ErrCodeDatabase, "не удалось создать пользователя")
	}
	return nil
}

func (r *UserRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	return r.find(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	return r.find(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email)
}

func (r *UserRepository) TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.t.q(ctx).ExecContext(ctx, `UPDATE users SET last_login_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabase, "не удалось обновить время входа")
	}
	return nil
}

func (r *UserRepository) find(ctx context.Context, query string, arg interface{}) (*entity.User, error) {
	var u entity.User
	row := r.t.q(ctx).QueryRowxContext(ctx, query, arg)
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.Role, &u.IsActive, &u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrUserNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabase, "не удалось получить пользователя")
	}
	return &u, nil
}

// FeedbackRepository хранит отзывы.
type FeedbackRepository struct {
	t *Transactor
}

var _ repository.FeedbackRepository = (*FeedbackRepository)(nil)

func NewFeedbackRepository(t *Transactor) *FeedbackRepository {
	return &FeedbackRepository{t: t}
}

func (r *FeedbackRepository) Create(ctx context.Context, f *entity.Feedback) error {
	_, err := r.t.q(ctx).ExecContext(ctx, `
		INSERT INTO feedback (id, project_id, author_id, subject_id, score, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		f.ID, f.ProjectID, f.AuthorID, f.SubjectID, f.Score, f.Comment, f.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.ErrFeedbackExists
		}
		return apperror.Wrap(err, apperror.ErrCodeDatabase, "не удалось сохранить отзыв")
	}
	return nil
}

func (r *FeedbackRepository) Exists(ctx context.Context, projectID, authorID uuid.UUID) (bool, error) {
	var exists bool
	err := r.t.q(ctx).GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM feedback WHERE project_id = $1 AND author_id = $2)`, projectID, authorID)
	if err != nil {
		return false, apperror.Wrap(err, apperror.ErrCodeDatabase, "не удалось проверить отзыв")
	}
	return exists, nil
}

func (r *FeedbackRepository) SumScores(ctx context.Context, subjectID uuid.UUID) (uint64, error) {
	var sum int64
	err := r.t.q(ctx).GetContext(ctx, &sum, `SELECT COALESCE(SUM(score), 0) FROM feedback WHERE subject_id = $1`, subjectID)
	if err != nil {
		return 0, apperror.Wrap(err, apperror.ErrCodeDatabase, "не удалось посчитать репутацию")
	}
	return uint64(sum), nil
}

// WalletRepository хранит остатки кошельков.
type WalletRepository struct {
	t *Transactor
}

var _ repository.WalletRepository = (*WalletRepository)(nil)

func NewWalletRepository(t *Transactor) *WalletRepository {
	return &WalletRepository{t: t}
}

type walletRow struct {
	UserID    uuid.UUID            `db:"user_id"`
	Currency  valueobject.Currency `db:"currency"`
	Available valueobject.Amount   `db:"available"`
	Blocked   bool                 `db:"blocked"`
	UpdatedAt time.Time            `db:"updated_at"`
}

func (r *WalletRepository) FindForUpdate(ctx context.Context, userID uuid.UUID, currency valueobject.Currency) (*entity.WalletBalance, error) {
	var row walletRow
	err := r.t.q(ctx).GetContext(ctx, &row, `
		SELECT user_id, currency, available, blocked, updated_at
		FROM wallet_balances WHERE user_id = $1 AND currency = $2 FOR UPDATE`, userID, string(currency))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabase, "не удалось получить кошелёк")
	}
	balance := entity.WalletBalance(row)
	return &balance, nil
}

func (r *WalletRepository) Save(ctx context.Context, b *entity.WalletBalance) error {
	_, err := r.t.q(ctx).ExecContext(ctx, `
		INSERT INTO wallet_balances (user_id, currency, available, blocked, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, currency) DO UPDATE SET
			available = EXCLUDED.available,
			blocked = EXCLUDED.blocked,
			updated_at = EXCLUDED.updated_at`,
		b.UserID, string(b.Currency), b.Available, b.Blocked, b.UpdatedAt,
	)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabase, "не удалось сохранить кошелёк")
	}
	return nil
}

func (r *WalletRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]entity.WalletBalance, error) {
	var rows []walletRow
	err := r.t.q(ctx).SelectContext(ctx, &rows, `
		SELECT user_id, currency, available, blocked, updated_at
		FROM wallet_balances WHERE user_id = $1 ORDER BY currency`, userID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabase, "не удалось получить кошелёк")
	}
	out := make([]entity.WalletBalance, 0, len(rows))
	for _, row := range rows {
		out = append(out, entity.WalletBalance(row))
	}
	return out, nil
}

// NotificationPreferenceRepository хранит отписки от категорий уведомлений.
type NotificationPreferenceRepository struct {
	t *Transactor
}

var _ repository.NotificationPreferenceRepository = (*NotificationPreferenceRepository)(nil)

func NewNotificationPreferenceRepository(t *Transactor) *NotificationPreferenceRepository {
	return &NotificationPreferenceRepository{t: t}
}

func (r *NotificationPreferenceRepository) IsOptedOut(ctx context.Context, userID uuid.UUID, category string) (bool, error) {
	var exists bool
	err := r.t.q(ctx).GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM notification_opt_outs WHERE user_id = $1 AND category = $2)`, userID, category)
	if err != nil {
		return false, apperror.Wrap(err, apperror.ErrCodeDatabase, "не удалось получить настройки уведомлений")
	}
	return exists, nil
}

func (r *NotificationPreferenceRepository) SetOptOut(ctx context.Context, userID uuid.UUID, category string, optedOut bool) error {
	query := `DELETE FROM notification_opt_outs WHERE user_id = $1 AND category = $2`
	if optedOut {
		query = `INSERT INTO notification_opt_outs (user_id, category) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	}
	if _, err := r.t.q(ctx).ExecContext(ctx, query, userID, category); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabase, "не удалось сохранить настройки уведомлений")
	}
	return nil
}
