package render

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"ledger/internal/core"
)

// symbolOverrides replaces x/text symbols that read badly in the widget.
var symbolOverrides = map[string]string{
	"INR": "₹",
	"SEK": "kr",
	"NOK": "kr",
	"DKK": "kr",
}

// suffixCurrencies place the symbol after the amount.
var suffixCurrencies = map[string]bool{
	"SEK": true,
	"NOK": true,
	"DKK": true,
	"EUR": true,
	"CHF": true,
	"PLN": true,
	"CZK": true,
}

// Currency formats whole-unit amounts for one currency and locale.
type Currency struct {
	Code    string
	unit    currency.Unit
	tag     language.Tag
	printer *message.Printer
}

// DefaultCurrency is Indian rupees in the en-IN locale.
func DefaultCurrency() Currency {
	c, _ := NewCurrency("INR", "en-IN")
	return c
}

// NewCurrency validates an ISO 4217 code and a BCP 47 locale.
func NewCurrency(code, locale string) (Currency, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	unit, err := currency.ParseISO(code)
	if err != nil {
		return Currency{}, fmt.Errorf("currency %q: %w", code, err)
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return Currency{}, fmt.Errorf("locale %q: %w", locale, err)
	}
	return Currency{
		Code:    code,
		unit:    unit,
		tag:     tag,
		printer: message.NewPrinter(tag),
	}, nil
}

// Symbol returns the narrow currency symbol.
func (c Currency) Symbol() string {
	if sym, ok := symbolOverrides[c.Code]; ok {
		return sym
	}
	return c.printer.Sprint(currency.NarrowSymbol(c.unit))
}

// Format renders an amount with no fraction digits, e.g. "₹50,000" or "-₹1,500".
func (c Currency) Format(a core.Amount) string {
	return c.format(a.Decimal)
}

// FormatFloat is Format for chart axis values.
func (c Currency) FormatFloat(v float64) string {
	return c.format(decimal.NewFromFloat(v))
}

// FormatSigned prefixes income with "+" and everything else with "-".
func (c Currency) FormatSigned(tx core.Transaction) string {
	sign := "-"
	if tx.Type == core.Income {
		sign = "+"
	}
	return sign + c.format(tx.Amount.Abs())
}

func (c Currency) format(d decimal.Decimal) string {
	// Half away from zero, like the browser's Intl formatter.
	d = d.Round(0)
	neg := d.IsNegative()
	digits := c.printer.Sprint(number.Decimal(d.Abs().IntPart(), number.MaxFractionDigits(0)))

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	if suffixCurrencies[c.Code] {
		b.WriteString(digits)
		b.WriteString(" ")
		b.WriteString(c.Symbol())
	} else {
		b.WriteString(c.Symbol())
		b.WriteString(digits)
	}
	return b.String()
}
