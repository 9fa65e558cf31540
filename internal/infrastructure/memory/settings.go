package memory

import (
	"context"

	"github.com/ignatzorin/freelance-escrow/internal/domain/entity"
)

type settingsRepo struct{ s *Store }

func (r settingsRepo) Load(ctx context.Context) (*entity.PlatformSettings, error) {
	var out *entity.PlatformSettings
	err := r.s.view(ctx, func(st *state) error {
		if st.settings != nil {
			cp := *st.settings
			out = &cp
		}
		return nil
	})
	return out, err
}

func (r settingsRepo) Save(ctx context.Context, settings *entity.PlatformSettings) error {
	return r.s.view(ctx, func(st *state) error {
		cp := *settings
		st.settings = &cp
		return nil
	})
}
