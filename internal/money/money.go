// Package money implements the fixed-point decimal type used for every
// currency amount, percentage rate and item quantity in the system.
package money

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is an exact base-10 value. The zero value is 0.
type Amount struct {
	d decimal.Decimal
}

// Zero is the additive identity.
var Zero = Amount{}

// Parse reads a decimal string such as "19.99" or "-3".
func Parse(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Zero, fmt.Errorf("money: empty value")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, fmt.Errorf("money: invalid decimal %q", s)
	}
	return Amount{d: d}, nil
}

// MustParse is Parse for constants and tests.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// FromInt returns a whole amount.
func FromInt(v int64) Amount {
	return Amount{d: decimal.NewFromInt(v)}
}

func (a Amount) Add(b Amount) Amount { return Amount{d: a.d.Add(b.d)} }
func (a Amount) Sub(b Amount) Amount { return Amount{d: a.d.Sub(b.d)} }
func (a Amount) Mul(b Amount) Amount { return Amount{d: a.d.Mul(b.d)} }

// Percent returns a * rate / 100 without rounding.
func (a Amount) Percent(rate Amount) Amount {
	return Amount{d: a.d.Mul(rate.d).Shift(-2)}
}

// Round2 rounds to two fraction digits, halves away from zero.
func (a Amount) Round2() Amount {
	return Amount{d: a.d.Round(2)}
}

// Sum adds all values.
func Sum(values ...Amount) Amount {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v.d)
	}
	return Amount{d: total}
}

func (a Amount) Cmp(b Amount) int       { return a.d.Cmp(b.d) }
func (a Amount) Equal(b Amount) bool    { return a.d.Equal(b.d) }
func (a Amount) Sign() int              { return a.d.Sign() }
func (a Amount) IsZero() bool           { return a.d.IsZero() }
func (a Amount) IsPositive() bool       { return a.d.IsPositive() }
func (a Amount) IsNegative() bool       { return a.d.IsNegative() }
func (a Amount) LessThan(b Amount) bool { return a.d.LessThan(b.d) }

// String formats with exactly two fraction digits.
func (a Amount) String() string {
	return a.d.StringFixed(2)
}

// MarshalJSON encodes the amount as a JSON number with two fraction digits.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.d.StringFixed(2)), nil
}

// UnmarshalJSON accepts numbers and numeric strings.
func (a *Amount) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*a = Zero
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		raw = s
	}
	parsed, err := Parse(raw)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Scan implements sql.Scanner for NUMERIC columns.
func (a *Amount) Scan(src any) error {
	if src == nil {
		*a = Zero
		return nil
	}
	var d decimal.Decimal
	if err := d.Scan(src); err != nil {
		return fmt.Errorf("money: scan: %w", err)
	}
	*a = Amount{d: d}
	return nil
}

// Value implements driver.Valuer.
func (a Amount) Value() (driver.Value, error) {
	return a.d.String(), nil
}
