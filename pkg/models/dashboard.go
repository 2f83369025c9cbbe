package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DashboardStats is a tenant's overview. AverageCost is the mean per-portion
// ingredient cost and AverageMargin the mean stored margin fraction.
type DashboardStats struct {
	RecipeCount     int             `json:"recipe_count"`
	IngredientCount int             `json:"ingredient_count"`
	AverageCost     decimal.Decimal `json:"average_cost"`
	AverageMargin   decimal.Decimal `json:"average_margin"`
	RecentMovements int             `json:"recent_movements"`
	Since           time.Time       `json:"since"`
	GeneratedAt     time.Time       `json:"generated_at"`
}
