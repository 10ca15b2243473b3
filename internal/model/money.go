package model

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrNegativeBalance = errors.New("negative balance")
	ErrInvalidAmount   = errors.New("invalid amount")
)

// Money is an amount in minor currency units (cents). Balances are always
// recomputed from integer sums so repeated recomputation cannot drift.
type Money int64

const minorUnitExp = 2

func (m Money) Add(other Money) Money {
	return m + other
}

// AddChecked returns m + other and fails with ErrInvalidAmount when the sum
// does not fit in int64.
func (m Money) AddChecked(other Money) (Money, error) {
	if (other > 0 && m > math.MaxInt64-other) || (other < 0 && m < math.MinInt64-other) {
		return 0, fmt.Errorf("%w: %s + %s is out of range", ErrInvalidAmount, m, other)
	}
	return m + other, nil
}

// MulChecked returns m * n and fails with ErrInvalidAmount on overflow.
func (m Money) MulChecked(n int64) (Money, error) {
	if m == 0 || n == 0 {
		return 0, nil
	}
	result := int64(m) * n
	if result/n != int64(m) || (n == -1 && m == math.MinInt64) {
		return 0, fmt.Errorf("%w: %s x %d is out of range", ErrInvalidAmount, m, n)
	}
	return Money(result), nil
}

// Sub returns m - other and fails with ErrNegativeBalance when the result
// would drop below zero. Use SubAllowNegative when a negative result is
// expected.
func (m Money) Sub(other Money) (Money, error) {
	result := m - other
	if result < 0 {
		return 0, fmt.Errorf("%w: %s - %s", ErrNegativeBalance, m, other)
	}
	return result, nil
}

func (m Money) SubAllowNegative(other Money) Money {
	return m - other
}

func (m Money) Cmp(other Money) int {
	switch {
	case m < other:
		return -1
	case m > other:
		return 1
	default:
		return 0
	}
}

func (m Money) IsZero() bool     { return m == 0 }
func (m Money) IsPositive() bool { return m > 0 }

func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -minorUnitExp)
}

func (m Money) String() string {
	return m.Decimal().StringFixed(minorUnitExp)
}

func Sum(amounts ...Money) Money {
	var total Money
	for _, amount := range amounts {
		total += amount
	}
	return total
}

// SumChecked is Sum that fails with ErrInvalidAmount instead of wrapping.
func SumChecked(amounts ...Money) (Money, error) {
	var (
		total Money
		err   error
	)
	for _, amount := range amounts {
		if total, err = total.AddChecked(amount); err != nil {
			return 0, err
		}
	}
	return total, nil
}

// ParseMoney parses a decimal string such as "1500" or "1500.25" into minor
// units. More than two fractional digits are rejected instead of rounded.
func ParseMoney(raw string) (Money, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	minor := d.Shift(minorUnitExp)
	if !minor.IsInteger() {
		return 0, fmt.Errorf("%w: %q has more than %d decimals", ErrInvalidAmount, raw, minorUnitExp)
	}
	if !minor.BigInt().IsInt64() {
		return 0, fmt.Errorf("%w: %q out of range", ErrInvalidAmount, raw)
	}
	return Money(minor.IntPart()), nil
}

// MarshalJSON writes money as a fixed two-decimal string so clients never
// see float rounding.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

// UnmarshalJSON accepts "1500.25" or a bare JSON number.
func (m *Money) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if raw == "null" {
		return nil
	}
	parsed, err := ParseMoney(raw)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
