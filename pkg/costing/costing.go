// Package costing holds the money and quantity arithmetic shared by ingredients,
// price movements and recipes. Every function is pure and works on fixed-point
// decimals; monetary results round half away from zero to 2 places and
// quantities to 4 places.
package costing

import (
	"github.com/shopspring/decimal"
)

const (
	MoneyPlaces    = 2
	QuantityPlaces = 4
	// FractionPlaces is the precision of margins stored as fractions (0.5525 = 55.25%).
	FractionPlaces = 4
)

var hundred = decimal.NewFromInt(100)

// Largest magnitudes the storage columns hold: NUMERIC(12,2) for money and
// percentages, NUMERIC(12,4) for quantities, NUMERIC(10,4) for margin fractions.
var (
	MaxMoney    = decimal.RequireFromString("9999999999.99")
	MaxQuantity = decimal.RequireFromString("99999999.9999")
	MaxFraction = decimal.RequireFromString("999999.9999")
)

// MoneyFits reports whether d, once rounded to cents, can be stored.
func MoneyFits(d decimal.Decimal) bool {
	return RoundMoney(d).Abs().LessThanOrEqual(MaxMoney)
}

// QuantityFits reports whether d, once rounded to 4 places, can be stored.
func QuantityFits(d decimal.Decimal) bool {
	return RoundQuantity(d).Abs().LessThanOrEqual(MaxQuantity)
}

// FractionFits reports whether a margin fraction can be stored.
func FractionFits(d decimal.Decimal) bool {
	return d.Round(FractionPlaces).Abs().LessThanOrEqual(MaxFraction)
}

// RoundMoney rounds a monetary amount to cents.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// RoundQuantity rounds a quantity to 4 fractional digits.
func RoundQuantity(d decimal.Decimal) decimal.Decimal {
	return d.Round(QuantityPlaces)
}

// CostPerUnit derives the unit price from the price paid for a package.
// A missing or zero package quantity yields zero.
func CostPerUnit(totalCost, packageQuantity decimal.Decimal) decimal.Decimal {
	if packageQuantity.Sign() <= 0 {
		return decimal.Zero
	}
	return totalCost.DivRound(packageQuantity, MoneyPlaces)
}

// LineTotal is the cost of one recipe line.
func LineTotal(quantity, costPerUnit decimal.Decimal) decimal.Decimal {
	return RoundMoney(quantity.Mul(costPerUnit))
}

// MarginPercentage is (sellingPrice - cost) / cost * 100, or zero when either
// operand is not positive.
func MarginPercentage(ingredientCost, sellingPrice decimal.Decimal) decimal.Decimal {
	if ingredientCost.Sign() <= 0 || sellingPrice.Sign() <= 0 {
		return decimal.Zero
	}
	return sellingPrice.Sub(ingredientCost).Mul(hundred).DivRound(ingredientCost, MoneyPlaces)
}

// ChangePercentage is the relative change between two prices. It is null when
// the previous price is zero.
func ChangePercentage(previous, next decimal.Decimal) decimal.NullDecimal {
	if previous.IsZero() {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(next.Sub(previous).Mul(hundred).DivRound(previous, MoneyPlaces))
}

// ChangeAmount is next - previous.
func ChangeAmount(previous, next decimal.Decimal) decimal.Decimal {
	return next.Sub(previous)
}

// PackageTotal recomputes the package price after a unit price change.
// Without a package quantity the unit price is the package price.
func PackageTotal(costPerUnit decimal.Decimal, packageQuantity decimal.NullDecimal) decimal.Decimal {
	if packageQuantity.Valid && packageQuantity.Decimal.Sign() > 0 {
		return RoundMoney(costPerUnit.Mul(packageQuantity.Decimal))
	}
	return RoundMoney(costPerUnit)
}

// PerPortion splits a batch cost across servings.
func PerPortion(batchCost decimal.Decimal, servings int) decimal.Decimal {
	if servings <= 0 {
		return RoundMoney(batchCost)
	}
	return batchCost.DivRound(decimal.NewFromInt(int64(servings)), MoneyPlaces)
}

// MarginFraction converts a percentage (55.25) into the stored fraction (0.5525).
func MarginFraction(percentage decimal.Decimal) decimal.Decimal {
	return percentage.DivRound(hundred, FractionPlaces)
}

// Contribution is what a portion earns over its ingredient cost.
func Contribution(ingredientCost, sellingPrice decimal.Decimal) decimal.Decimal {
	return RoundMoney(sellingPrice.Sub(ingredientCost))
}
