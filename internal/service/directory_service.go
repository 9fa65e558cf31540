package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/ignatzorin/freelance-escrow/internal/domain/repository"
	"github.com/ignatzorin/freelance-escrow/internal/domain/valueobject"
	"github.com/ignatzorin/freelance-escrow/internal/pkg/apperror"
)

// DirectoryService отвечает на вопросы о роли и активности пользователя.
// Неизвестный пользователь не имеет роли и считается неактивным.
type DirectoryService struct {
	users repository.UserRepository
}

func NewDirectoryService(users repository.UserRepository) *DirectoryService {
	return &DirectoryService{users: users}
}

func (s *DirectoryService) RoleOf(ctx context.Context, address uuid.UUID) (valueobject.Role, error) {
	user, err := s.users.FindByID(ctx, address)
	if err != nil {
		if errors.Is(err, apperror.ErrUserNotFound) {
			return "", nil
		}
		return "", apperror.Database(err, "не удалось получить пользователя")
	}
	return user.Role, nil
}

func (s *DirectoryService) IsActive(ctx context.Context, address uuid.UUID) (bool, error) {
	user, err := s.users.FindByID(ctx, address)
	if err != nil {
		if errors.Is(err, apperror.ErrUserNotFound) {
			return false, nil
		}
		return false, apperror.Database(err, "не удалось получить пользователя")
	}
	return user.IsActive, nil
}
