package storage

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/freelance-escrow/internal/pkg/apperror"
)

// Минимальный заголовок PNG.
var pngHeader = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0x0D, 0x49, 0x48, 0x44, 0x52}

func TestEvidenceStorage_SaveIsContentAddressed(t *testing.T) {
	s, err := NewEvidenceStorage(t.TempDir(), 1)
	require.NoError(t, err)
	ctx := context.Background()

	first, err := s.Save(ctx, strings.NewReader("переписка с клиентом"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(first.Ref, "sha256:"))
	assert.Equal(t, "text/plain; charset=utf-8", first.ContentType)

	second, err := s.Save(ctx, strings.NewReader("переписка с клиентом"))
	require.NoError(t, err)
	assert.Equal(t, first.Ref, second.Ref)

	rc, err := s.Open(ctx, first.Ref)
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "переписка с клиентом", string(body))
}

func TestEvidenceStorage_DetectsImages(t *testing.T) {
	s, err := NewEvidenceStorage(t.TempDir(), 1)
	require.NoError(t, err)

	stored, err := s.Save(context.Background(), bytes.NewReader(pngHeader))
	require.NoError(t, err)
	assert.Equal(t, "image/png", stored.ContentType)
}

func TestEvidenceStorage_RejectsExecutables(t *testing.T) {
	s, err := NewEvidenceStorage(t.TempDir(), 1)
	require.NoError(t, err)

	elf := append([]byte{0x7F, 0x45, 0x4C, 0x46, 0x02, 0x01, 0x01}, make([]byte, 64)...)
	_, err = s.Save(context.Background(), bytes.NewReader(elf))
	require.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
}

func TestEvidenceStorage_RejectsOversizedFiles(t *testing.T) {
	s, err := NewEvidenceStorage(t.TempDir(), 1)
	require.NoError(t, err)

	big := strings.Repeat("a", int(s.MaxUploadBytes())+1)
	_, err = s.Save(context.Background(), strings.NewReader(big))
	require.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
}

func TestParseRef(t *testing.T) {
	_, ok := ParseRef("sha256:abc")
	assert.False(t, ok)
	_, ok = ParseRef("md5:" + strings.Repeat("a", 64))
	assert.False(t, ok)
	sum, ok := ParseRef("sha256:" + strings.Repeat("A", 64))
	assert.True(t, ok)
	assert.Equal(t, strings.Repeat("a", 64), sum)
}
