package session

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Money is an amount in currency minor units (cents). It encodes to JSON as
// a decimal number with two fractional digits.
type Money int64

// Cents builds a Money from a minor-unit count.
func Cents(c int64) Money {
	return Money(c)
}

// ParseMoney parses a decimal amount such as "10", "10.5" or "-3.25".
// More than two significant fractional digits is an error.
func ParseMoney(s string) (Money, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return 0, fmt.Errorf("session: empty amount")
	}

	body := raw
	negative := false
	switch body[0] {
	case '-':
		negative = true
		body = body[1:]
	case '+':
		body = body[1:]
	}

	whole, frac, _ := strings.Cut(body, ".")
	if whole == "" && frac == "" {
		return 0, fmt.Errorf("session: invalid amount %q", raw)
	}
	if whole == "" {
		whole = "0"
	}
	if !allDigits(whole) || !allDigits(frac) {
		return 0, fmt.Errorf("session: invalid amount %q", raw)
	}

	frac = strings.TrimRight(frac, "0")
	if len(frac) > 2 {
		return 0, fmt.Errorf("session: amount %q has more than two decimal places", raw)
	}
	for len(frac) < 2 {
		frac += "0"
	}

	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || units > math.MaxInt64/100-1 {
		return 0, fmt.Errorf("session: amount %q out of range", raw)
	}
	cents, _ := strconv.ParseInt(frac, 10, 64)

	total := units*100 + cents
	if negative {
		total = -total
	}
	return Money(total), nil
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// String formats the amount with exactly two fractional digits.
func (m Money) String() string {
	v := int64(m)
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// Mul multiplies the amount by an integer quantity.
func (m Money) Mul(qty int) Money {
	return m * Money(qty)
}

// MulBasisPoints multiplies by bp/10000, rounding half away from zero to
// the nearest cent.
func (m Money) MulBasisPoints(bp int) Money {
	product := int64(m) * int64(bp)
	q := product / 10000
	r := product % 10000
	if r >= 5000 {
		q++
	} else if r <= -5000 {
		q--
	}
	return Money(q)
}

// MarshalJSON encodes the amount as a JSON number.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or a numeric string. null leaves the
// amount unchanged.
func (m *Money) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	text := string(trimmed)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return fmt.Errorf("session: decode amount: %w", err)
		}
	}
	parsed, err := ParseMoney(text)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
