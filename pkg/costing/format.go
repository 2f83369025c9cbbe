package costing

import (
	"strings"

	"github.com/jinzhu/inflection"
	"github.com/shopspring/decimal"
)

// Abbreviated measures never take a plural suffix.
var measureUnits = map[string]bool{
	"g": true, "kg": true, "mg": true,
	"l": true, "ml": true, "cl": true, "dl": true,
	"oz": true, "lb": true, "lbs": true,
	"tsp": true, "tbsp": true,
}

// FormatQuantity renders a quantity with its unit, pluralising count units:
// "3 eggs", "1 egg", "0.25 kg".
func FormatQuantity(quantity decimal.Decimal, unit string) string {
	unit = strings.TrimSpace(unit)
	q := RoundQuantity(quantity).String()
	if unit == "" {
		return q
	}
	if measureUnits[strings.ToLower(unit)] || quantity.Equal(decimal.NewFromInt(1)) {
		return q + " " + unit
	}
	return q + " " + inflection.Plural(unit)
}
