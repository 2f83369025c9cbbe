package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Direction classifies a price movement. It is derived, never stored.
type Direction string

const (
	DirectionIncrease Direction = "increase"
	DirectionDecrease Direction = "decrease"
	DirectionNeutral  Direction = "neutral"
)

// PriceMovement is one immutable entry in an ingredient's price ledger.
// Stored in ingredient_price_movements; rows are never updated or deleted.
type PriceMovement struct {
	ID               int64               `json:"id"`
	UserID           int64               `json:"user_id"`
	IngredientID     int64               `json:"ingredient_id"`
	PreviousPrice    decimal.Decimal     `json:"previous_price"`
	NewPrice         decimal.Decimal     `json:"new_price"`
	ChangeAmount     decimal.Decimal     `json:"change_amount"`
	ChangePercentage decimal.NullDecimal `json:"change_percentage"` // null when previous price is zero
	EffectiveDate    time.Time           `json:"effective_date"`
	RecordedAt       time.Time           `json:"recorded_at"`
	Notes            string              `json:"notes,omitempty"`
	RequestKey       *uuid.UUID          `json:"request_key,omitempty"`

	// Joined from ingredients on list reads.
	IngredientName string `json:"ingredient_name,omitempty"`
	Unit           string `json:"unit,omitempty"`
	Currency       string `json:"currency,omitempty"`
}

func (m *PriceMovement) Direction() Direction {
	switch m.ChangeAmount.Sign() {
	case 1:
		return DirectionIncrease
	case -1:
		return DirectionDecrease
	default:
		return DirectionNeutral
	}
}

// PriceMovementFilter narrows a ledger listing. Every field is optional and
// date bounds are inclusive.
type PriceMovementFilter struct {
	IngredientID *int64
	StartDate    *time.Time
	EndDate      *time.Time
}
