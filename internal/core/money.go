// Package core provides money parsing and handling utilities.
//
// Amounts are held as integer minor units (cents) so aggregation is exact.
// Decimal text and legacy float values are converted with shopspring/decimal.
package core

import (
	"math"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var maxAmount = decimal.NewFromInt(math.MaxInt64).Shift(-2)

// Comma forms accepted in amounts: a decimal comma, or thousands grouping
// western (1,234,567) or Indian (12,34,567) style.
var (
	decimalComma  = regexp.MustCompile(`^\d+,\d{1,2}$`)
	westernGroups = regexp.MustCompile(`^\d{1,3}(,\d{3})+(\.\d+)?$`)
	indianGroups  = regexp.MustCompile(`^\d{1,2}(,\d{2})*,\d{3}(\.\d+)?$`)
)

// ParseAmount converts user decimal text to Money.
//
// A single comma followed by one or two digits is a decimal separator (12,34).
// Any other comma must group thousands, western or Indian style; otherwise the
// text is rejected. Values are rounded half-up to two decimals. Zero, negative,
// non-finite and oversized values return ErrInvalidAmount.
//
// Examples:
//
//	ParseAmount("12.34")    -> {1234}, nil
//	ParseAmount("12,34")    -> {1234}, nil
//	ParseAmount("1,50,000") -> {15000000}, nil
//	ParseAmount("1,2345")   -> {}, ErrInvalidAmount
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	if strings.Contains(s, ",") {
		switch {
		case decimalComma.MatchString(s):
			s = strings.Replace(s, ",", ".", 1)
		case westernGroups.MatchString(s), indianGroups.MatchString(s):
			s = strings.ReplaceAll(s, ",", "")
		default:
			return Money{}, ErrInvalidAmount
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	return MoneyFromDecimal(d)
}

// MoneyFromDecimal rounds d to cents and checks it is a valid positive amount.
func MoneyFromDecimal(d decimal.Decimal) (Money, error) {
	if d.GreaterThan(maxAmount) {
		return Money{}, ErrInvalidAmount
	}
	m := Money{Cents: d.Round(2).Shift(2).IntPart()}
	if err := m.Validate(); err != nil {
		return Money{}, err
	}
	return m, nil
}

// MoneyFromFloat converts a float amount in whole units (the legacy storage format).
func MoneyFromFloat(f float64) (Money, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Money{}, ErrInvalidAmount
	}
	return MoneyFromDecimal(decimal.NewFromFloat(f))
}

// Units builds Money from a whole-unit integer amount.
func Units(n int64) Money {
	return Money{Cents: n * 100}
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }

func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }

func (m Money) Abs() Money {
	if m.Cents < 0 {
		return Money{Cents: -m.Cents}
	}
	return m
}

func (m Money) IsNegative() bool { return m.Cents < 0 }

func (m Money) IsZero() bool { return m.Cents == 0 }

// Decimal returns the amount in whole currency units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// Float64 returns the amount in whole units for chart rendering.
// Use cents for calculations.
func (m Money) Float64() float64 {
	f, _ := m.Decimal().Float64()
	return f
}

// WholeUnits rounds half away from zero to whole currency units.
func (m Money) WholeUnits() int64 {
	return m.Decimal().Round(0).IntPart()
}

// String renders the plain decimal amount, e.g. "1234.50".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}
