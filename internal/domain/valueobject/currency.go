package valueobject

import (
	"strings"

	"github.com/ignatzorin/freelance-escrow/internal/pkg/apperror"
)

// Currency - нативная валюта платформы или символ токена.
type Currency string

// CurrencyNative обозначает нативную валюту.
const CurrencyNative Currency = "NATIVE"

// NewCurrency нормализует символ валюты: пустая строка означает нативную валюту.
func NewCurrency(raw string) (Currency, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return CurrencyNative, nil
	}
	if len(s) > 16 {
		return "", apperror.ErrInvalidCurrency
	}
	for _, r := range s {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') && r != '_' && r != '-' {
			return "", apperror.ErrInvalidCurrency
		}
	}
	return Currency(s), nil
}

func (c Currency) IsNative() bool {
	return c == CurrencyNative
}

func (c Currency) String() string {
	return string(c)
}
