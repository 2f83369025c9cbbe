package models

import "time"

// Category groups ingredients (stored in categories).
type Category struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	IconKey      string    `json:"icon_key,omitempty"`
	DisplayOrder *int      `json:"display_order,omitempty"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

// DefaultRecipeCategoryIcon is used when a recipe category has no icon.
const DefaultRecipeCategoryIcon = "category"

// RecipeCategory groups recipes (stored in recipe_categories).
type RecipeCategory struct {
	ID           int64      `json:"id"`
	UserID       int64      `json:"user_id"`
	Name         string     `json:"name"`
	Description  string     `json:"description,omitempty"`
	IconKey      string     `json:"icon_key"`
	Color        string     `json:"color,omitempty"`
	DisplayOrder *int       `json:"display_order,omitempty"`
	IsActive     bool       `json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
}
