package config

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("STORAGE_DRIVER", "memory")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StorageDriverMemory, cfg.StorageDriver)
	assert.Equal(t, uint32(250), cfg.Platform.FeeBps)
	assert.Equal(t, uint64(10), cfg.Platform.MinReputationToRegister)
	assert.Equal(t, 3, cfg.Platform.PanelSize)
	assert.Equal(t, 72*time.Hour, cfg.Platform.EvidencePeriod)
	assert.Equal(t, 72*time.Hour, cfg.Platform.VotingPeriod)
	assert.NotEqual(t, uuid.Nil, cfg.Platform.OwnerID)
	assert.NotEqual(t, uuid.Nil, cfg.Platform.TreasuryID)
}

func TestLoad_PlatformOverrides(t *testing.T) {
	owner := uuid.New()
	t.Setenv("APP_ENV", "development")
	t.Setenv("PLATFORM_OWNER_ID", owner.String())
	t.Setenv("FEE_BPS", "100")
	t.Setenv("PANEL_SIZE", "5")
	t.Setenv("PANEL_RANDOMNESS", "seeded")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, owner, cfg.Platform.OwnerID)
	assert.Equal(t, uint32(100), cfg.Platform.FeeBps)
	assert.Equal(t, 5, cfg.Platform.PanelSize)
	assert.Equal(t, "seeded", cfg.Platform.PanelRandomness)
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("VOTING_PERIOD", "three days")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_ProductionRequiresSecretsAndPrincipals(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("REFRESH_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.example.com")
	_, err = Load()
	assert.Error(t, err)

	t.Setenv("PLATFORM_OWNER_ID", uuid.NewString())
	t.Setenv("TREASURY_ID", uuid.NewString())
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.AllowedOrigins)
}
