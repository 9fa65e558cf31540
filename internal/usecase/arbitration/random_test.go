package arbitration_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/freelance-escrow/internal/usecase/arbitration"
)

func TestSeededSource_Deterministic(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	src := arbitration.NewSeededSource(func() time.Time { return fixed })
	seed := []byte("dispute-1")

	for round := 0; round < 10; round++ {
		a, err := src.Intn(seed, round, 7)
		require.NoError(t, err)
		b, err := src.Intn(seed, round, 7)
		require.NoError(t, err)
		assert.Equal(t, a, b)
		assert.GreaterOrEqual(t, a, 0)
		assert.Less(t, a, 7)
	}

	_, err := src.Intn(seed, 0, 0)
	assert.Error(t, err)
}

func TestCryptoSource_Range(t *testing.T) {
	src := arbitration.CryptoSource{}
	for i := 0; i < 50; i++ {
		v, err := src.Intn(nil, i, 3)
		require.NoError(t, err)
		assert.True(t, v >= 0 && v < 3, "value %d out of range", v)
	}
	_, err := src.Intn(nil, 0, -1)
	assert.Error(t, err)
}

func TestNewRandomSource(t *testing.T) {
	for _, kind := range []string{"", "crypto", "seeded"} {
		src, err := arbitration.NewRandomSource(kind)
		require.NoError(t, err, kind)
		assert.NotNil(t, src)
	}
	_, err := arbitration.NewRandomSource("dice")
	assert.Error(t, err)
}
