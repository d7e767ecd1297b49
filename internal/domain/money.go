package domain

import (
	"database/sql/driver"
	"fmt"

	"github.com/shopspring/decimal"
)

// Money is an arbitrary-precision currency amount. All monetary values in
// the core go through Money, never float64.
type Money struct {
	d decimal.Decimal
}

func NewMoney(units int64) Money {
	return Money{d: decimal.NewFromInt(units)}
}

func MoneyFromDecimal(d decimal.Decimal) Money {
	return Money{d: d}
}

// Amounts are stored as DECIMAL(20,4).
const (
	MaxAmountScale         = 4
	MaxAmountIntegerDigits = 16
)

// ParseMoney parses a decimal string such as "1050" or "1050.25".
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if err := checkRange(d); err != nil {
		return Money{}, fmt.Errorf("%w: %q", err, s)
	}
	return Money{d: d}, nil
}

// checkRange only looks at the exponent and coefficient length, so it stays
// cheap for inputs like "1e20000000".
func checkRange(d decimal.Decimal) error {
	exp := int(d.Exponent())
	if exp < -MaxAmountScale {
		return fmt.Errorf("%w: more than %d decimal places", ErrInvalidAmount, MaxAmountScale)
	}
	if d.IsZero() {
		return nil
	}
	// Any valid coefficient has at most 20 digits, well under 128 bits.
	if d.Coefficient().BitLen() > 128 || d.NumDigits()+exp > MaxAmountIntegerDigits {
		return fmt.Errorf("%w: more than %d integer digits", ErrInvalidAmount, MaxAmountIntegerDigits)
	}
	return nil
}

func (m Money) Decimal() decimal.Decimal { return m.d }

func (m Money) Add(o Money) Money { return Money{d: m.d.Add(o.d)} }

func (m Money) Sub(o Money) Money { return Money{d: m.d.Sub(o.d)} }

func (m Money) Cmp(o Money) int { return m.d.Cmp(o.d) }

func (m Money) Equal(o Money) bool { return m.d.Equal(o.d) }

func (m Money) LessThan(o Money) bool { return m.d.LessThan(o.d) }

func (m Money) GreaterThan(o Money) bool { return m.d.GreaterThan(o.d) }

func (m Money) GreaterThanOrEqual(o Money) bool { return m.d.GreaterThanOrEqual(o.d) }

func (m Money) IsPositive() bool { return m.d.IsPositive() }

func (m Money) IsZero() bool { return m.d.IsZero() }

// PercentCeil returns ceil(m * percent / 100).
func (m Money) PercentCeil(percent int) Money {
	return Money{d: m.d.Mul(decimal.NewFromInt(int64(percent))).Div(decimal.NewFromInt(100)).Ceil()}
}

func (m Money) String() string { return m.d.String() }

func (m Money) MarshalJSON() ([]byte, error) { return m.d.MarshalJSON() }

func (m *Money) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, string(data))
	}
	if err := checkRange(d); err != nil {
		return fmt.Errorf("%w: %s", err, string(data))
	}
	m.d = d
	return nil
}

func (m Money) Value() (driver.Value, error) { return m.d.Value() }

func (m *Money) Scan(value interface{}) error { return m.d.Scan(value) }

func MaxMoney(a, b Money) Money {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// Ref returns a pointer to a copy of m, for optional fields.
func (m Money) Ref() *Money { return &m }
