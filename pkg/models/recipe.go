package models

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Recipe is a recipe card header. IngredientCost is the per-portion cost;
// the batch cost is the sum of the line totals.
type Recipe struct {
	ID              int64           `json:"id"`
	UserID          int64           `json:"user_id"`
	Name            string          `json:"name"`
	CategoryID      int64           `json:"category_id"`
	Description     string          `json:"description,omitempty"`
	ChefNotes       *string         `json:"chef_notes,omitempty"` // nil when the column is absent
	PreparationTime *int            `json:"preparation_time,omitempty"`
	Yield           string          `json:"yield"`
	TargetMargin    decimal.Decimal `json:"target_margin"` // fraction, 0.55 = 55%
	IngredientCost  decimal.Decimal `json:"ingredient_cost"`
	SuggestedPrice  decimal.Decimal `json:"suggested_price"`
	ImagePath       string          `json:"image_path,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       *time.Time      `json:"updated_at,omitempty"`

	// Joined from recipe_categories.
	CategoryName  string `json:"category_name,omitempty"`
	CategoryIcon  string `json:"category_icon,omitempty"`
	CategoryColor string `json:"category_color,omitempty"`

	Ingredients []RecipeIngredient `json:"ingredients"`
}

// RecipeIngredient is a recipe line. Name, unit and cost are snapshots taken
// when the recipe was saved.
type RecipeIngredient struct {
	ID             int64           `json:"id"`
	RecipeID       int64           `json:"recipe_id"`
	IngredientID   int64           `json:"ingredient_id"`
	IngredientName string          `json:"ingredient_name"`
	Quantity       decimal.Decimal `json:"quantity"`
	Unit           string          `json:"unit"`
	CostPerUnit    decimal.Decimal `json:"cost_per_unit"`
	TotalCost      decimal.Decimal `json:"total_cost"`
}

// BatchCost sums the line totals.
func (r *Recipe) BatchCost() decimal.Decimal {
	total := decimal.Zero
	for _, line := range r.Ingredients {
		total = total.Add(line.TotalCost)
	}
	return total
}

// Servings parses Yield, falling back to 1 for legacy free-text values.
func (r *Recipe) Servings() int {
	n, err := strconv.Atoi(strings.TrimSpace(r.Yield))
	if err != nil || n < 1 {
		return 1
	}
	return n
}
