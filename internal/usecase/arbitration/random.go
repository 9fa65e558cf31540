package arbitration

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"math/big"
	"time"

	"golang.org/x/crypto/sha3"

	"github.com/ignatzorin/freelance-escrow/internal/domain/repository"
)

// SeededSource выводит индекс из Keccak-256(seed || время || раунд).
// Источник предсказуем для того, кто контролирует seed и время вызова.
type SeededSource struct {
	now func() time.Time
}

func NewSeededSource(now func() time.Time) *SeededSource {
	if now == nil {
		now = time.Now
	}
	return &SeededSource{now: now}
}

func (s *SeededSource) Intn(seed []byte, round, n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("random: n должно быть положительным, получено %d", n)
	}
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], uint64(s.now().UnixNano()))
	binary.BigEndian.PutUint64(buf[8:], uint64(round))

	h := sha3.NewLegacyKeccak256()
	h.Write(seed)
	h.Write(buf[:])
	sum := h.Sum(nil)
	return int(binary.BigEndian.Uint64(sum[len(sum)-8:]) % uint64(n)), nil
}

// CryptoSource использует crypto/rand и игнорирует seed.
type CryptoSource struct{}

func (CryptoSource) Intn(_ []byte, _ int, n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("random: n должно быть положительным, получено %d", n)
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}

// NewRandomSource возвращает источник по имени из конфигурации.
func NewRandomSource(kind string) (repository.RandomSource, error) {
	switch kind {
	case "", "crypto":
		return CryptoSource{}, nil
	case "seeded":
		return NewSeededSource(nil), nil
	default:
		return nil, fmt.Errorf("random: неизвестный источник %q", kind)
	}
}
