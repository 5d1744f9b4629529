package core

import (
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

const (
	DefaultLocale         = "en-IN"
	DefaultCurrencySymbol = "₹"
)

// CurrencyFormatter renders Money as a whole-unit, locale grouped string.
type CurrencyFormatter struct {
	printer *message.Printer
	symbol  string
}

// NewCurrencyFormatter builds a formatter for a BCP 47 locale such as "en-IN".
func NewCurrencyFormatter(locale, symbol string) (*CurrencyFormatter, error) {
	if locale == "" {
		locale = DefaultLocale
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, fmt.Errorf("parse locale %q: %w", locale, err)
	}
	return &CurrencyFormatter{printer: message.NewPrinter(tag), symbol: symbol}, nil
}

// DefaultCurrencyFormatter formats Indian rupees without decimals.
func DefaultCurrencyFormatter() *CurrencyFormatter {
	return &CurrencyFormatter{
		printer: message.NewPrinter(language.MustParse(DefaultLocale)),
		symbol:  DefaultCurrencySymbol,
	}
}

// Format rounds to whole units; negative amounts get a leading minus.
func (f *CurrencyFormatter) Format(m Money) string {
	units := m.WholeUnits()
	sign := ""
	if units < 0 {
		sign = "-"
		units = -units
	}
	return sign + f.symbol + f.printer.Sprintf("%v", number.Decimal(units))
}
