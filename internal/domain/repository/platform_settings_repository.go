package repository

import (
	"context"

	"github.com/ignatzorin/freelance-escrow/internal/domain/entity"
)

type PlatformSettingsRepository interface {
	// Load возвращает nil без ошибки, если настройки ещё не сохранялись.
	Load(ctx context.Context) (*entity.PlatformSettings, error)
	Save(ctx context.Context, settings *entity.PlatformSettings) error
}
