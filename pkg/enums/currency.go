package enums

import "fmt"

// Currency represents supported settlement denominations. All internal
// amounts are integers in the smallest unit regardless of currency.
type Currency string

const (
	CurrencyXOF Currency = "XOF"
	CurrencyUSD Currency = "USD"
)

var validCurrencies = []Currency{
	CurrencyXOF,
	CurrencyUSD,
}

// String implements fmt.Stringer.
func (c Currency) String() string {
	return string(c)
}

// IsValid reports whether the currency is recognized.
func (c Currency) IsValid() bool {
	for _, candidate := range validCurrencies {
		if candidate == c {
			return true
		}
	}
	return false
}

// HasMinorUnit reports whether the provider expects amounts in a minor unit.
// XOF has no minor unit; the provider boundary converts to the major unit.
func (c Currency) HasMinorUnit() bool {
	return c != CurrencyXOF
}

// ParseCurrency converts a raw string into a Currency.
func ParseCurrency(value string) (Currency, error) {
	for _, candidate := range validCurrencies {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid currency %q", value)
}
