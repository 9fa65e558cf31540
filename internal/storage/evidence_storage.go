package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/h2non/filetype"

	"github.com/ignatzorin/freelance-escrow/internal/pkg/apperror"
)

const (
	refPrefix = "sha256:"
	// filetype определяет тип по первым 261 байтам.
	sniffLen = 261
)

// Типы, которые нельзя прикладывать к спору.
var blockedExtensions = map[string]struct{}{
	"exe":  {},
	"elf":  {},
	"dex":  {},
	"dey":  {},
	"wasm": {},
	"swf":  {},
	"crx":  {},
	"deb":  {},
	"rpm":  {},
}

// StoredEvidence описывает сохранённый файл.
type StoredEvidence struct {
	Ref         string
	Size        int64
	ContentType string
}

// EvidenceStorage хранит доказательства по спорам в файловой системе, адресуя их по содержимому.
type EvidenceStorage struct {
	rootPath       string
	maxUploadBytes int64
}

// NewEvidenceStorage создаёт файловое хранилище.
func NewEvidenceStorage(rootPath string, maxUploadMB int64) (*EvidenceStorage, error) {
	if err := os.MkdirAll(rootPath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: не удалось создать каталог %s: %w", rootPath, err)
	}
	if maxUploadMB <= 0 {
		maxUploadMB = 10
	}

	return &EvidenceStorage{
		rootPath:       rootPath,
		maxUploadBytes: maxUploadMB * 1024 * 1024,
	}, nil
}

// MaxUploadBytes возвращает лимит размера файла.
func (s *EvidenceStorage) MaxUploadBytes() int64 {
	return s.maxUploadBytes
}

// Save сохраняет файл и возвращает ссылку вида sha256:<hex>. Одинаковые файлы дают одну ссылку.
func (s *EvidenceStorage) Save(ctx context.Context, r io.Reader) (*StoredEvidence, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, apperror.ErrStorageFailed.WithCause(err)
	}
	head = head[:n]
	if n == 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "файл пуст")
	}

	contentType, err := detectContentType(head)
	if err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp(s.rootPath, "upload-*.tmp")
	if err != nil {
		return nil, apperror.ErrStorageFailed.WithCause(err)
	}
	tempPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tempPath)
	}()

	hasher := sha256.New()
	limited := io.LimitedReader{R: io.MultiReader(bytes.NewReader(head), r), N: s.maxUploadBytes + 1}
	written, err := io.Copy(io.MultiWriter(tmp, hasher), &limited)
	if err != nil {
		return nil, apperror.ErrStorageFailed.WithCause(err)
	}
	if written > s.maxUploadBytes {
		return nil, apperror.New(apperror.ErrCodeValidation,
			fmt.Sprintf("размер файла превышает лимит %d байт", s.maxUploadBytes))
	}
	if err := tmp.Close(); err != nil {
		return nil, apperror.ErrStorageFailed.WithCause(err)
	}

	sum := hex.EncodeToString(hasher.Sum(nil))
	target := s.pathFor(sum)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return nil, apperror.ErrStorageFailed.WithCause(err)
	}
	if _, err := os.Stat(target); os.IsNotExist(err) {
		if err := os.Rename(tempPath, target); err != nil {
			return nil, apperror.ErrStorageFailed.WithCause(err)
		}
	}

	return &StoredEvidence{
		Ref:         refPrefix + sum,
		Size:        written,
		ContentType: contentType,
	}, nil
}

// Open открывает файл по ссылке.
func (s *EvidenceStorage) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sum, ok := ParseRef(ref)
	if !ok {
		return nil, apperror.New(apperror.ErrCodeValidation, "некорректная ссылка на доказательство")
	}
	f, err := os.Open(s.pathFor(sum))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperror.New(apperror.ErrCodeNotFound, "файл не найден")
		}
		return nil, apperror.ErrStorageFailed.WithCause(err)
	}
	return f, nil
}

// ParseRef извлекает hex-хэш из ссылки sha256:<hex>.
func ParseRef(ref string) (string, bool) {
	sum, ok := strings.CutPrefix(ref, refPrefix)
	if !ok || len(sum) != sha256.Size*2 {
		return "", false
	}
	if _, err := hex.DecodeString(sum); err != nil {
		return "", false
	}
	return strings.ToLower(sum), true
}

func (s *EvidenceStorage) pathFor(sum string) string {
	return filepath.Join(s.rootPath, sum[:2], sum)
}

// detectContentType пропускает известные безопасные типы и обычный текст.
func detectContentType(head []byte) (string, error) {
	kind, err := filetype.Match(head)
	if err == nil && kind != filetype.Unknown {
		if _, blocked := blockedExtensions[kind.Extension]; blocked {
			return "", apperror.New(apperror.ErrCodeValidation, "исполняемые файлы запрещены")
		}
		return kind.MIME.Value, nil
	}
	if utf8.Valid(trimPartialRune(head)) {
		return "text/plain; charset=utf-8", nil
	}
	return "", apperror.New(apperror.ErrCodeValidation, "не удалось определить тип файла")
}

// trimPartialRune отбрасывает обрезанный на границе буфера UTF-8 символ.
func trimPartialRune(b []byte) []byte {
	for i := 0; i < utf8.UTFMax && len(b) > 0; i++ {
		if utf8.Valid(b) {
			return b
		}
		b = b[:len(b)-1]
	}
	return b
}
