package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Income Category = iota
	Expense
	Savings
	CreditCardPayment

	numCategories = 4
)

type (
	// Category classifies a transaction. The set is closed.
	Category uint8

	Money struct {
		Cents int64
	}

	Transaction struct {
		ID          string
		Category    Category
		Description string
		Amount      Money
		Timestamp   time.Time
	}

	// MonthKey identifies a calendar month.
	MonthKey struct {
		Year  int
		Month time.Month
	}

	// Totals holds one sum per category, indexed by Category.
	Totals [numCategories]Money
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidCategory = errors.New("invalid category")
)

var categoryNames = [numCategories]string{
	Income:            "income",
	Expense:           "expense",
	Savings:           "savings",
	CreditCardPayment: "credit-card",
}

var categoryLabels = [numCategories]string{
	Income:            "Income",
	Expense:           "Expenses",
	Savings:           "Savings",
	CreditCardPayment: "Credit Card Bills",
}

// Categories returns every category in display order.
func Categories() []Category {
	return []Category{Income, Expense, Savings, CreditCardPayment}
}

// ParseCategory accepts the wire name ("credit-card") and a few common aliases.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "income":
		return Income, nil
	case "expense", "expenses":
		return Expense, nil
	case "savings", "saving":
		return Savings, nil
	case "credit-card", "creditcard", "credit_card", "creditcardpayment":
		return CreditCardPayment, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidCategory, s)
}

func (c Category) Valid() bool {
	return c < numCategories
}

// String returns the wire name used in persisted state.
func (c Category) String() string {
	if !c.Valid() {
		return fmt.Sprintf("category(%d)", uint8(c))
	}
	return categoryNames[c]
}

// Label returns the human readable name.
func (c Category) Label() string {
	if !c.Valid() {
		return c.String()
	}
	return categoryLabels[c]
}

// Outflow reports whether the category reduces cash in hand.
func (c Category) Outflow() bool {
	return c != Income
}

func (c Category) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCategory, uint8(c))
	}
	return []byte(c.String()), nil
}

func (c *Category) UnmarshalText(b []byte) error {
	parsed, err := ParseCategory(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func (t Transaction) Validate() error {
	if !t.Category.Valid() {
		return ErrInvalidCategory
	}
	return t.Amount.Validate()
}

// MonthKeyOf returns the calendar month of t as seen in loc.
func MonthKeyOf(t time.Time, loc *time.Location) MonthKey {
	if loc != nil {
		t = t.In(loc)
	}
	return MonthKey{Year: t.Year(), Month: t.Month()}
}

// String formats the key as YYYY-MM.
func (k MonthKey) String() string {
	return fmt.Sprintf("%04d-%02d", k.Year, int(k.Month))
}

// Label returns e.g. "March 2025".
func (k MonthKey) Label() string {
	return fmt.Sprintf("%s %d", k.Month.String(), k.Year)
}

// ShortLabel returns the three letter month name used on chart axes.
func (k MonthKey) ShortLabel() string {
	return k.Month.String()[:3]
}

// Before reports whether k is an earlier month than other.
func (k MonthKey) Before(other MonthKey) bool {
	if k.Year != other.Year {
		return k.Year < other.Year
	}
	return k.Month < other.Month
}

// AddMonths shifts the key by n calendar months, rolling over years.
func (k MonthKey) AddMonths(n int) MonthKey {
	t := time.Date(k.Year, k.Month+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	return MonthKey{Year: t.Year(), Month: t.Month()}
}

// ParseMonthKey parses the YYYY-MM form.
func ParseMonthKey(s string) (MonthKey, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(s))
	if err != nil {
		return MonthKey{}, fmt.Errorf("parse month key %q: %w", s, err)
	}
	return MonthKey{Year: t.Year(), Month: t.Month()}, nil
}

// Get returns the total for c.
func (t Totals) Get(c Category) Money {
	if !c.Valid() {
		return Money{}
	}
	return t[c]
}

// Add accumulates amount into category c.
func (t *Totals) Add(c Category, amount Money) {
	if !c.Valid() {
		return
	}
	t[c] = t[c].Add(amount)
}

// Sum returns the total across all categories.
func (t Totals) Sum() Money {
	var sum Money
	for _, m := range t {
		sum = sum.Add(m)
	}
	return sum
}

// Net is Income minus every outflow category. It may be negative.
func (t Totals) Net() Money {
	return t[Income].Sub(t[Expense]).Sub(t[Savings]).Sub(t[CreditCardPayment])
}
