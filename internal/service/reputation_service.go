package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/freelance-escrow/internal/domain/entity"
	"github.com/ignatzorin/freelance-escrow/internal/domain/repository"
	"github.com/ignatzorin/freelance-escrow/internal/domain/valueobject"
	"github.com/ignatzorin/freelance-escrow/internal/logger"
	"github.com/ignatzorin/freelance-escrow/internal/pkg/apperror"
	"github.com/ignatzorin/freelance-escrow/internal/validation"
)

const (
	MinFeedbackScore = 1
	MaxFeedbackScore = 5
)

// FeedbackInput - отзыв участника завершённого проекта о контрагенте.
type FeedbackInput struct {
	ProjectID uuid.UUID
	AuthorID  uuid.UUID
	Score     int
	Comment   *string
}

// ReputationService принимает отзывы и считает репутацию как сумму оценок.
type ReputationService struct {
	tx       repository.Transactor
	feedback repository.FeedbackRepository
	projects repository.ProjectRepository
	now      func() time.Time
}

func NewReputationService(tx repository.Transactor, feedback repository.FeedbackRepository, projects repository.ProjectRepository) *ReputationService {
	return &ReputationService{tx: tx, feedback: feedback, projects: projects, now: time.Now}
}

// SubmitFeedback сохраняет отзыв. Автор должен участвовать в завершённом проекте,
// а оценивается всегда его контрагент.
func (s *ReputationService) SubmitFeedback(ctx context.Context, in FeedbackInput) (*entity.Feedback, error) {
	if in.Score < MinFeedbackScore || in.Score > MaxFeedbackScore {
		return nil, apperror.ErrInvalidScore
	}
	if err := validation.ValidateComment(in.Comment); err != nil {
		return nil, invalid(err)
	}

	var out *entity.Feedback
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		project, err := s.projects.FindByID(ctx, in.ProjectID)
		if err != nil {
			return err
		}
		if !project.IsParticipant(in.AuthorID) {
			return apperror.ErrNotParticipant
		}
		if project.Status != valueobject.ProjectStatusCompleted {
			return apperror.ErrProjectNotActive.WithMessage("отзыв можно оставить только по завершённому проекту")
		}

		exists, err := s.feedback.Exists(ctx, in.ProjectID, in.AuthorID)
		if err != nil {
			return apperror.Database(err, "не удалось проверить отзыв")
		}
		if exists {
			return apperror.ErrFeedbackExists
		}

		subject := project.FreelancerID
		if in.AuthorID == project.FreelancerID {
			subject = project.ClientID
		}

		out = &entity.Feedback{
			ID:        uuid.New(),
			ProjectID: in.ProjectID,
			AuthorID:  in.AuthorID,
			SubjectID: subject,
			Score:     in.Score,
			Comment:   in.Comment,
			CreatedAt: s.now(),
		}
		return apperror.Database(s.feedback.Create(ctx, out), "не удалось сохранить отзыв")
	})
	if err != nil {
		return nil, err
	}

	logger.Component("reputation").WithFields(logrus.Fields{
		"project_id": in.ProjectID,
		"subject_id": out.SubjectID,
		"score":      in.Score,
	}).Info("отзыв принят")
	return out, nil
}

// ReputationOf возвращает сумму оценок пользователя.
func (s *ReputationService) ReputationOf(ctx context.Context, address uuid.UUID) (uint64, error) {
	sum, err := s.feedback.SumScores(ctx, address)
	if err != nil {
		return 0, apperror.Database(err, "не удалось посчитать репутацию")
	}
	return sum, nil
}
