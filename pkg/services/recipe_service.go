package services

import (
	"context"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ekaya-inc/recipe-costing/pkg/apperrors"
	"github.com/ekaya-inc/recipe-costing/pkg/costing"
	"github.com/ekaya-inc/recipe-costing/pkg/models"
	"github.com/ekaya-inc/recipe-costing/pkg/repositories"
)

const (
	maxRecipeName      = 200
	maxChefNotes       = 2000
	maxServings        = 999
	maxPreparationTime = 24 * 60
)

// RecipeLineInput is one submitted ingredient line. Lines with a
// non-positive IngredientID are blank form rows and are skipped.
type RecipeLineInput struct {
	IngredientID int64           `json:"ingredient_id"`
	Quantity     decimal.Decimal `json:"quantity"`
}

// RecipeInput is the editable part of a recipe. Costs are never taken from
// the caller; they are recomputed from current ingredient prices.
type RecipeInput struct {
	Name            string            `json:"name"`
	CategoryID      int64             `json:"category_id"`
	Description     string            `json:"description,omitempty"`
	ChefNotes       *string           `json:"chef_notes,omitempty"`
	PreparationTime *int              `json:"preparation_time,omitempty"`
	Servings        int               `json:"servings"`
	SuggestedPrice  decimal.Decimal   `json:"suggested_price"`
	ImagePath       string            `json:"image_path,omitempty"`
	Ingredients     []RecipeLineInput `json:"ingredients"`
}

// RecipeLineView adds a display label to a stored line.
type RecipeLineView struct {
	models.RecipeIngredient
	Label string `json:"label"`
}

// RecipeCard is a recipe with the figures a recipe card shows.
type RecipeCard struct {
	*models.Recipe
	Lines            []RecipeLineView   `json:"lines"`
	Servings         int                `json:"servings"`
	BatchCost        decimal.Decimal    `json:"batch_cost"`
	Contribution     decimal.Decimal    `json:"contribution"`
	MarginPercentage decimal.Decimal    `json:"margin_percentage"`
	MarginBand       costing.MarginBand `json:"margin_band"`
	LowMargin        bool               `json:"low_margin"`
	Complexity       costing.Complexity `json:"complexity"`
}

// RecipeListSummary aggregates a recipe list.
type RecipeListSummary struct {
	Count             int             `json:"count"`
	AveragePrice      decimal.Decimal `json:"average_price"`
	AverageMargin     decimal.Decimal `json:"average_margin"` // fraction
	TotalContribution decimal.Decimal `json:"total_contribution"`
	LowMarginCount    int             `json:"low_margin_count"`
}

// RecipeList is the tenant's recipe cards, newest first.
type RecipeList struct {
	Recipes []*RecipeCard     `json:"recipes"`
	Summary RecipeListSummary `json:"summary"`
}

// RecipeService is the recipe side of the costing workflow.
type RecipeService interface {
	List(ctx context.Context, userID int64) (*RecipeList, error)
	Get(ctx context.Context, userID, id int64) (*RecipeCard, error)
	// Save creates the recipe when id is zero, otherwise replaces it. Line
	// costs are snapshotted from the ingredients' current prices.
	Save(ctx context.Context, userID, id int64, input *RecipeInput) (*RecipeCard, error)
}

type recipeService struct {
	recipeRepo     repositories.RecipeRepository
	ingredientRepo repositories.IngredientRepository
	categoryRepo   repositories.RecipeCategoryRepository
	runInTx        TxRunner
	dashboard      DashboardInvalidator
	logger         *zap.Logger
}

// NewRecipeService creates a new RecipeService.
func NewRecipeService(
	recipeRepo repositories.RecipeRepository,
	ingredientRepo repositories.IngredientRepository,
	categoryRepo repositories.RecipeCategoryRepository,
	runInTx TxRunner,
	dashboard DashboardInvalidator,
	logger *zap.Logger,
) RecipeService {
	return &recipeService{
		recipeRepo:     recipeRepo,
		ingredientRepo: ingredientRepo,
		categoryRepo:   categoryRepo,
		runInTx:        runInTx,
		dashboard:      invalidatorOrNoop(dashboard),
		logger:         logger.Named("recipe-service"),
	}
}

var _ RecipeService = (*recipeService)(nil)

func (s *recipeService) List(ctx context.Context, userID int64) (*RecipeList, error) {
	recipes, err := s.recipeRepo.List(ctx, userID)
	if err != nil {
		return nil, err
	}

	cards := make([]*RecipeCard, len(recipes))
	for i, r := range recipes {
		cards[i] = NewRecipeCard(r)
	}

	return &RecipeList{Recipes: cards, Summary: SummarizeRecipes(cards)}, nil
}

func (s *recipeService) Get(ctx context.Context, userID, id int64) (*RecipeCard, error) {
	recipe, err := s.recipeRepo.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if recipe == nil {
		return nil, apperrors.ErrNotFound
	}
	return NewRecipeCard(recipe), nil
}

func (s *recipeService) Save(ctx context.Context, userID, id int64, input *RecipeInput) (*RecipeCard, error) {
	recipe, lines, err := s.validate(userID, id, input)
	if err != nil {
		return nil, err
	}

	err = s.runInTx(ctx, func(ctx context.Context) error {
		category, err := s.categoryRepo.GetByID(ctx, userID, recipe.CategoryID)
		if err != nil {
			return err
		}
		if category == nil {
			return apperrors.Invalid("category_id", "select a category")
		}

		if err := s.priceLines(ctx, userID, recipe, lines); err != nil {
			return err
		}
		return s.recipeRepo.Save(ctx, recipe)
	})
	if err != nil {
		return nil, err
	}

	s.dashboard.Invalidate(ctx, userID)
	s.logger.Info("Recipe saved",
		zap.Int64("user_id", userID),
		zap.Int64("recipe_id", recipe.ID),
		zap.Bool("created", id == 0),
		zap.Int("lines", len(recipe.Ingredients)),
		zap.String("ingredient_cost", recipe.IngredientCost.StringFixed(costing.MoneyPlaces)))

	// Re-read so joined category fields and the stored chef notes are current.
	saved, err := s.recipeRepo.Get(ctx, userID, recipe.ID)
	if err != nil {
		return nil, err
	}
	if saved == nil {
		return nil, apperrors.ErrNotFound
	}
	return NewRecipeCard(saved), nil
}

// validate checks everything that does not need the database and builds the
// recipe header. It returns the submitted lines that are not blank.
func (s *recipeService) validate(userID, id int64, input *RecipeInput) (*models.Recipe, []RecipeLineInput, error) {
	if input == nil {
		return nil, nil, apperrors.Invalid("", "recipe is required")
	}

	name, err := requiredText("name", input.Name, maxRecipeName)
	if err != nil {
		return nil, nil, err
	}
	description, err := optionalText("description", input.Description, 2000)
	if err != nil {
		return nil, nil, err
	}
	if input.CategoryID <= 0 {
		return nil, nil, apperrors.Invalid("category_id", "select a category")
	}
	if input.Servings < 1 || input.Servings > maxServings {
		return nil, nil, apperrors.Invalid("servings", "must be between 1 and %d", maxServings)
	}
	if input.PreparationTime != nil && (*input.PreparationTime < 0 || *input.PreparationTime > maxPreparationTime) {
		return nil, nil, apperrors.Invalid("preparation_time", "must be between 0 and %d minutes", maxPreparationTime)
	}

	price := costing.RoundMoney(input.SuggestedPrice)
	if price.Sign() <= 0 {
		return nil, nil, apperrors.Invalid("suggested_price", "must be greater than zero")
	}
	if !costing.MoneyFits(price) {
		return nil, nil, apperrors.Invalid("suggested_price", "must be at most %s", costing.MaxMoney.StringFixed(costing.MoneyPlaces))
	}

	var chefNotes *string
	if input.ChefNotes != nil {
		notes, err := optionalText("chef_notes", *input.ChefNotes, maxChefNotes)
		if err != nil {
			return nil, nil, err
		}
		if notes != "" {
			chefNotes = &notes
		}
	}

	lines := make([]RecipeLineInput, 0, len(input.Ingredients))
	for i, line := range input.Ingredients {
		if line.IngredientID <= 0 {
			continue
		}
		if line.Quantity.Sign() <= 0 || costing.RoundQuantity(line.Quantity).Sign() <= 0 {
			return nil, nil, apperrors.Invalid(fmt.Sprintf("ingredients[%d].quantity", i), "must be greater than zero")
		}
		if !costing.QuantityFits(line.Quantity) {
			return nil, nil, apperrors.Invalid(fmt.Sprintf("ingredients[%d].quantity", i), "must be at most %s", costing.MaxQuantity.String())
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return nil, nil, apperrors.Invalid("ingredients", "add at least one ingredient")
	}

	recipe := &models.Recipe{
		ID:              id,
		UserID:          userID,
		Name:            name,
		CategoryID:      input.CategoryID,
		Description:     description,
		ChefNotes:       chefNotes,
		PreparationTime: input.PreparationTime,
		Yield:           strconv.Itoa(input.Servings),
		SuggestedPrice:  price,
		ImagePath:       input.ImagePath,
	}
	return recipe, lines, nil
}

// priceLines snapshots each line from the ingredient's current price and
// derives the per-portion cost and margin.
func (s *recipeService) priceLines(ctx context.Context, userID int64, recipe *models.Recipe, lines []RecipeLineInput) error {
	recipe.Ingredients = make([]models.RecipeIngredient, 0, len(lines))
	for i, line := range lines {
		ing, err := s.ingredientRepo.GetByID(ctx, userID, line.IngredientID)
		if err != nil {
			return err
		}
		if ing == nil {
			return apperrors.Invalid(fmt.Sprintf("ingredients[%d].ingredient_id", i), "ingredient not found")
		}

		quantity := costing.RoundQuantity(line.Quantity)
		total := costing.LineTotal(quantity, ing.CostPerUnit)
		if !costing.MoneyFits(total) {
			return apperrors.Invalid(fmt.Sprintf("ingredients[%d].quantity", i), "line cost would exceed %s", costing.MaxMoney.StringFixed(costing.MoneyPlaces))
		}
		recipe.Ingredients = append(recipe.Ingredients, models.RecipeIngredient{
			IngredientID:   ing.ID,
			IngredientName: ing.Name,
			Quantity:       quantity,
			Unit:           ing.Unit,
			CostPerUnit:    ing.CostPerUnit,
			TotalCost:      total,
		})
	}

	recipe.IngredientCost = costing.PerPortion(recipe.BatchCost(), recipe.Servings())
	if !costing.MoneyFits(recipe.IngredientCost) {
		return apperrors.Invalid("ingredients", "cost per portion would exceed %s", costing.MaxMoney.StringFixed(costing.MoneyPlaces))
	}
	recipe.TargetMargin = costing.MarginFraction(costing.MarginPercentage(recipe.IngredientCost, recipe.SuggestedPrice))
	if !costing.FractionFits(recipe.TargetMargin) {
		return apperrors.Invalid("suggested_price", "is too far above the ingredient cost")
	}
	return nil
}

// NewRecipeCard derives the card figures from a stored recipe.
func NewRecipeCard(recipe *models.Recipe) *RecipeCard {
	lines := make([]RecipeLineView, len(recipe.Ingredients))
	for i, line := range recipe.Ingredients {
		lines[i] = RecipeLineView{
			RecipeIngredient: line,
			Label:            costing.FormatQuantity(line.Quantity, line.Unit) + " " + line.IngredientName,
		}
	}

	return &RecipeCard{
		Recipe:           recipe,
		Lines:            lines,
		Servings:         recipe.Servings(),
		BatchCost:        recipe.BatchCost(),
		Contribution:     costing.Contribution(recipe.IngredientCost, recipe.SuggestedPrice),
		MarginPercentage: costing.MarginPercentage(recipe.IngredientCost, recipe.SuggestedPrice),
		MarginBand:       costing.BandFor(recipe.TargetMargin),
		LowMargin:        costing.IsLowMargin(recipe.TargetMargin),
		Complexity:       costing.ComplexityFor(len(recipe.Ingredients)),
	}
}

// SummarizeRecipes computes the list header figures.
func SummarizeRecipes(cards []*RecipeCard) RecipeListSummary {
	summary := RecipeListSummary{
		Count:             len(cards),
		AveragePrice:      decimal.Zero,
		AverageMargin:     decimal.Zero,
		TotalContribution: decimal.Zero,
	}
	if len(cards) == 0 {
		return summary
	}

	priceSum, marginSum := decimal.Zero, decimal.Zero
	for _, c := range cards {
		priceSum = priceSum.Add(c.SuggestedPrice)
		marginSum = marginSum.Add(c.TargetMargin)
		summary.TotalContribution = summary.TotalContribution.Add(c.Contribution)
		if c.LowMargin {
			summary.LowMarginCount++
		}
	}

	n := decimal.NewFromInt(int64(len(cards)))
	summary.AveragePrice = priceSum.DivRound(n, costing.MoneyPlaces)
	summary.AverageMargin = marginSum.DivRound(n, costing.FractionPlaces)
	return summary
}
