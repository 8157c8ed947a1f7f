package accounting

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// DefaultCurrency is used when neither the caller nor configuration supplies one.
const DefaultCurrency = "USD"

// NormalizeCurrency upper-cases code and checks it against ISO 4217.
func NormalizeCurrency(code string) (string, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return "", false
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return "", false
	}
	return unit.String(), true
}

// MinorUnits returns the number of decimal places the currency allows.
func MinorUnits(code string) int32 {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return 2
	}
	scale, _ := currency.Standard.Rounding(unit)
	return int32(scale)
}

// FitsMinorUnits reports whether amount has no more precision than the currency allows.
func FitsMinorUnits(amount decimal.Decimal, code string) bool {
	scale := MinorUnits(code)
	return amount.Equal(amount.Truncate(scale))
}
