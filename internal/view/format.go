package view

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// MoneyFormatter renders amounts with locale grouping and a currency symbol.
type MoneyFormatter struct {
	printer *message.Printer
	symbol  string
}

// NewMoneyFormatter builds a formatter for locale, falling back to English
// when the tag cannot be parsed.
func NewMoneyFormatter(locale, symbol string) *MoneyFormatter {
	tag, err := language.Parse(strings.TrimSpace(locale))
	if err != nil {
		tag = language.English
	}
	return &MoneyFormatter{printer: message.NewPrinter(tag), symbol: strings.TrimSpace(symbol)}
}

// Format prints amount with exactly two fraction digits.
func (f *MoneyFormatter) Format(amount decimal.Decimal) string {
	// NUMERIC(12,2) values are exact in float64 once rounded to cents.
	value, _ := amount.Round(2).Float64()
	out := f.printer.Sprint(number.Decimal(value, number.MinFractionDigits(2), number.MaxFractionDigits(2)))
	if f.symbol == "" {
		return out
	}
	return f.symbol + " " + out
}
