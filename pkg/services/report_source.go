package services

import (
	"context"

	"github.com/ekaya-inc/recipe-costing/pkg/models"
)

// ReportSource is the read-only view handed to export and printing
// collaborators. It exposes no write path.
type ReportSource interface {
	Recipes(ctx context.Context, userID int64) (*RecipeList, error)
	Ingredients(ctx context.Context, userID int64) ([]*models.Ingredient, error)
	PriceMovements(ctx context.Context, userID int64, filter models.PriceMovementFilter) (*PriceMovementList, error)
}

// ReportBundle is everything a tenant-wide export needs, read in one request.
type ReportBundle struct {
	Recipes        *RecipeList           `json:"recipes"`
	Ingredients    []*models.Ingredient `json:"ingredients"`
	PriceMovements *PriceMovementList    `json:"price_movements"`
}

type reportSource struct {
	recipes     RecipeService
	ingredients IngredientService
	movements   PriceMovementService
}

// NewReportSource creates a ReportSource over the costing services.
func NewReportSource(recipes RecipeService, ingredients IngredientService, movements PriceMovementService) ReportSource {
	return &reportSource{recipes: recipes, ingredients: ingredients, movements: movements}
}

var _ ReportSource = (*reportSource)(nil)

func (r *reportSource) Recipes(ctx context.Context, userID int64) (*RecipeList, error) {
	return r.recipes.List(ctx, userID)
}

func (r *reportSource) Ingredients(ctx context.Context, userID int64) ([]*models.Ingredient, error) {
	return r.ingredients.List(ctx, userID)
}

func (r *reportSource) PriceMovements(ctx context.Context, userID int64, filter models.PriceMovementFilter) (*PriceMovementList, error) {
	return r.movements.List(ctx, userID, filter)
}

// BuildReport reads the full bundle from src.
func BuildReport(ctx context.Context, src ReportSource, userID int64, filter models.PriceMovementFilter) (*ReportBundle, error) {
	recipes, err := src.Recipes(ctx, userID)
	if err != nil {
		return nil, err
	}
	ingredients, err := src.Ingredients(ctx, userID)
	if err != nil {
		return nil, err
	}
	movements, err := src.PriceMovements(ctx, userID, filter)
	if err != nil {
		return nil, err
	}
	return &ReportBundle{Recipes: recipes, Ingredients: ingredients, PriceMovements: movements}, nil
}
