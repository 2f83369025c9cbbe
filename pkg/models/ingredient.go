package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is applied to ingredients created without one.
const DefaultCurrency = "EUR"

// Ingredient is a purchasable item with its current price snapshot.
// CostPerUnit always reflects the latest recorded price movement, or
// TotalCost / PackageQuantity when no movement exists yet.
type Ingredient struct {
	ID              int64               `json:"id"`
	UserID          int64               `json:"user_id"`
	Name            string              `json:"name"`
	CategoryID      *int64              `json:"category_id,omitempty"`
	Unit            string              `json:"unit"`
	CostPerUnit     decimal.Decimal     `json:"cost_per_unit"`
	Currency        string              `json:"currency"`
	PackageQuantity decimal.NullDecimal `json:"package_quantity"`
	TotalCost       decimal.NullDecimal `json:"total_cost"`
	Supplier        string              `json:"supplier,omitempty"`
	LastPriceUpdate *time.Time          `json:"last_price_update,omitempty"`
	Notes           string              `json:"notes,omitempty"`
	IsActive        bool                `json:"is_active"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       *time.Time          `json:"updated_at,omitempty"`

	// Populated on list reads from the joined category.
	CategoryName string `json:"category_name,omitempty"`
	CategoryIcon string `json:"category_icon,omitempty"`
}
