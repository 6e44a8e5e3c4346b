package models

import (
	"github.com/casahogar/cashbox_backend/utils"
	"github.com/shopspring/decimal"
)

// Largest values the columns hold: decimal(12,2) for amounts and totals,
// decimal(10,2) for unit prices.
var (
	maxAmount = decimal.RequireFromString("9999999999.99")
	maxPrice  = decimal.RequireFromString("99999999.99")
)

// validateMax checks the value as it will be stored, after rounding.
func validateMax(field string, value decimal.Decimal, max decimal.Decimal) error {
	if value.Round(2).GreaterThan(max) {
		return utils.NewValidationError(field, "must not exceed "+max.StringFixed(2))
	}
	return nil
}
