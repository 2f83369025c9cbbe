package costing

import (
	"github.com/shopspring/decimal"
)

// MarginBand buckets a recipe by its stored margin fraction.
type MarginBand string

const (
	MarginHigh   MarginBand = "high"
	MarginMedium MarginBand = "medium"
	MarginLow    MarginBand = "low"
)

// Complexity buckets a recipe by how many ingredient lines it has.
type Complexity string

const (
	ComplexityEasy         Complexity = "easy"
	ComplexityIntermediate Complexity = "intermediate"
	ComplexityAdvanced     Complexity = "advanced"
)

var (
	highMarginFloor   = decimal.RequireFromString("0.65")
	mediumMarginFloor = decimal.RequireFromString("0.40")
	lowMarginAlert    = decimal.RequireFromString("0.35")
)

func BandFor(marginFraction decimal.Decimal) MarginBand {
	switch {
	case marginFraction.GreaterThanOrEqual(highMarginFloor):
		return MarginHigh
	case marginFraction.GreaterThanOrEqual(mediumMarginFloor):
		return MarginMedium
	default:
		return MarginLow
	}
}

// IsLowMargin flags recipes that need a price review.
func IsLowMargin(marginFraction decimal.Decimal) bool {
	return marginFraction.LessThan(lowMarginAlert)
}

func ComplexityFor(lineCount int) Complexity {
	switch {
	case lineCount >= 8:
		return ComplexityAdvanced
	case lineCount >= 5:
		return ComplexityIntermediate
	default:
		return ComplexityEasy
	}
}

// MovementSummary aggregates a set of price changes.
type MovementSummary struct {
	TotalMovements  int             `json:"total_movements"`
	TotalIncrease   decimal.Decimal `json:"total_increase"`
	TotalDecrease   decimal.Decimal `json:"total_decrease"`
	AverageChange   decimal.Decimal `json:"average_change"`
	LargestIncrease decimal.Decimal `json:"largest_increase"`
	LargestDecrease decimal.Decimal `json:"largest_decrease"`
}

// SummarizeChanges folds change amounts into a MovementSummary. Decreases are
// reported as positive magnitudes.
func SummarizeChanges(changes []decimal.Decimal) MovementSummary {
	s := MovementSummary{
		TotalIncrease:   decimal.Zero,
		TotalDecrease:   decimal.Zero,
		AverageChange:   decimal.Zero,
		LargestIncrease: decimal.Zero,
		LargestDecrease: decimal.Zero,
	}
	if len(changes) == 0 {
		return s
	}

	sum := decimal.Zero
	for _, c := range changes {
		sum = sum.Add(c)
		switch c.Sign() {
		case 1:
			s.TotalIncrease = s.TotalIncrease.Add(c)
			if c.GreaterThan(s.LargestIncrease) {
				s.LargestIncrease = c
			}
		case -1:
			abs := c.Abs()
			s.TotalDecrease = s.TotalDecrease.Add(abs)
			if abs.GreaterThan(s.LargestDecrease) {
				s.LargestDecrease = abs
			}
		}
	}
	s.TotalMovements = len(changes)
	s.AverageChange = sum.DivRound(decimal.NewFromInt(int64(len(changes))), MoneyPlaces)
	return s
}
