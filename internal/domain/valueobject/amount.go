package valueobject

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
	"github.com/ignatzorin/freelance-escrow/internal/pkg/apperror"
)

// Amount - неотрицательная сумма в минимальных единицах валюты.
type Amount struct {
	v uint256.Int
}

// ZeroAmount возвращает нулевую сумму.
func ZeroAmount() Amount {
	return Amount{}
}

// NewAmount создаёт сумму из uint64.
func NewAmount(units uint64) Amount {
	var a Amount
	a.v.SetUint64(units)
	return a
}

// ParseAmount разбирает десятичную строку.
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Amount{}, apperror.ErrInvalidAmount.WithMessage("сумма не указана")
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return Amount{}, apperror.ErrInvalidAmount.WithCause(err)
	}
	return Amount{v: *v}, nil
}

// MustParseAmount используется в тестах и константах.
func MustParseAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Amount) IsZero() bool {
	return a.v.IsZero()
}

func (a Amount) Cmp(b Amount) int {
	return a.v.Cmp(&b.v)
}

func (a Amount) LessThan(b Amount) bool {
	return a.v.Lt(&b.v)
}

func (a Amount) Equal(b Amount) bool {
	return a.v.Eq(&b.v)
}

// Add складывает суммы, возвращая AmountOverflow при переполнении.
func (a Amount) Add(b Amount) (Amount, error) {
	var out Amount
	if _, overflow := out.v.AddOverflow(&a.v, &b.v); overflow {
		return Amount{}, apperror.ErrAmountOverflow
	}
	return out, nil
}

// Sub вычитает b из a; при недостатке возвращает InsufficientEscrowBalance.
func (a Amount) Sub(b Amount) (Amount, error) {
	var out Amount
	if _, underflow := out.v.SubOverflow(&a.v, &b.v); underflow {
		return Amount{}, apperror.ErrInsufficientEscrowBalance
	}
	return out, nil
}

// BasisPoints возвращает floor(a * bps / 10000).
func (a Amount) BasisPoints(bps uint32) Amount {
	var out Amount
	num := uint256.NewInt(uint64(bps))
	den := uint256.NewInt(10_000)
	out.v.MulDivOverflow(&a.v, num, den)
	return out
}

// Uint64 возвращает сумму, если она помещается в uint64.
func (a Amount) Uint64() (uint64, bool) {
	return a.v.Uint64(), a.v.IsUint64()
}

// Float64 - приближённое значение для метрик.
func (a Amount) Float64() float64 {
	f, _ := new(big.Float).SetInt(a.v.ToBig()).Float64()
	return f
}

func (a Amount) String() string {
	return a.v.Dec()
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.v.Dec())
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return apperror.ErrInvalidAmount.WithCause(err)
		}
		s = n.String()
	}
	parsed, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Value сохраняет сумму как NUMERIC.
func (a Amount) Value() (driver.Value, error) {
	return a.v.Dec(), nil
}

// Scan читает NUMERIC из Postgres.
func (a *Amount) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*a = Amount{}
		return nil
	case []byte:
		return a.scanString(string(v))
	case string:
		return a.scanString(v)
	case int64:
		if v < 0 {
			return fmt.Errorf("amount: отрицательное значение %d", v)
		}
		*a = NewAmount(uint64(v))
		return nil
	default:
		return fmt.Errorf("amount: неподдерживаемый тип %T", src)
	}
}

func (a *Amount) scanString(s string) error {
	// NUMERIC без дробной части может прийти как "10.0" после агрегатов.
	if i := strings.IndexByte(s, '.'); i >= 0 {
		if strings.Trim(s[i+1:], "0") != "" {
			return fmt.Errorf("amount: дробное значение %q", s)
		}
		s = s[:i]
	}
	parsed, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
