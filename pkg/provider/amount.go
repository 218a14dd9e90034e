package provider

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/enums"
)

// ToProviderAmount converts an internal cent amount to the unit the provider
// expects. XOF has no minor unit, so cents are rounded half-up to whole francs
// at this boundary only; everything inside the ledger stays in cents.
func ToProviderAmount(amountCents int64, currency enums.Currency) (int64, error) {
	if amountCents < 0 {
		return 0, fmt.Errorf("amount must not be negative, got %d", amountCents)
	}
	if currency.HasMinorUnit() {
		return amountCents, nil
	}
	major := decimal.NewFromInt(amountCents).Div(decimal.NewFromInt(100)).Round(0)
	return major.IntPart(), nil
}

// FromProviderAmount converts a provider amount back into internal cents.
func FromProviderAmount(amount int64, currency enums.Currency) (int64, error) {
	if amount < 0 {
		return 0, fmt.Errorf("amount must not be negative, got %d", amount)
	}
	if currency.HasMinorUnit() {
		return amount, nil
	}
	return amount * 100, nil
}
