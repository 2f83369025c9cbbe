package seed

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/recipe-costing/pkg/services"
)

// requestKeySpace namespaces the deterministic request keys of seeded price
// changes, so loading the same fixture twice records each change once.
var requestKeySpace = uuid.MustParse("6f1c7a52-3c1e-4b8e-9a57-2f4f0b9e1d30")

// Result counts what a load created. Entries that already existed by name
// are counted as skipped.
type Result struct {
	Categories       int `json:"categories"`
	RecipeCategories int `json:"recipe_categories"`
	Suppliers        int `json:"suppliers"`
	Ingredients      int `json:"ingredients"`
	PriceChanges     int `json:"price_changes"`
	Recipes          int `json:"recipes"`
	Skipped          int `json:"skipped"`
}

// Loader writes a fixture for one tenant through the services. The context
// passed to Load must carry that tenant's scope.
type Loader struct {
	catalog     services.CatalogService
	ingredients services.IngredientService
	movements   services.PriceMovementService
	recipes     services.RecipeService
	logger      *zap.Logger
}

func NewLoader(
	catalog services.CatalogService,
	ingredients services.IngredientService,
	movements services.PriceMovementService,
	recipes services.RecipeService,
	logger *zap.Logger,
) *Loader {
	return &Loader{
		catalog:     catalog,
		ingredients: ingredients,
		movements:   movements,
		recipes:     recipes,
		logger:      logger.Named("seed"),
	}
}

// Load creates everything in f that the tenant does not have yet. Fixtures
// built in code are checked here the same way Parse checks files.
func (l *Loader) Load(ctx context.Context, userID int64, f *Fixture) (*Result, error) {
	if err := f.check(); err != nil {
		return nil, err
	}
	res := &Result{}

	categoryIDs, err := l.loadCategories(ctx, userID, f, res)
	if err != nil {
		return nil, err
	}
	recipeCategoryIDs, err := l.loadRecipeCategories(ctx, userID, f, res)
	if err != nil {
		return nil, err
	}
	if err := l.loadSuppliers(ctx, userID, f, res); err != nil {
		return nil, err
	}
	ingredientIDs, err := l.loadIngredients(ctx, userID, f, categoryIDs, res)
	if err != nil {
		return nil, err
	}
	if err := l.loadPriceChanges(ctx, userID, f, ingredientIDs, res); err != nil {
		return nil, err
	}
	if err := l.loadRecipes(ctx, userID, f, recipeCategoryIDs, ingredientIDs, res); err != nil {
		return nil, err
	}

	l.logger.Info("Fixture loaded",
		zap.Int64("user_id", userID),
		zap.Int("ingredients", res.Ingredients),
		zap.Int("price_changes", res.PriceChanges),
		zap.Int("recipes", res.Recipes),
		zap.Int("skipped", res.Skipped))
	return res, nil
}

// idsByName maps lower-cased names to ids.
type idsByName map[string]int64

func (m idsByName) set(name string, id int64) { m[normalize(name)] = id }

func (m idsByName) get(name string) (int64, bool) {
	id, ok := m[normalize(name)]
	return id, ok
}

func (l *Loader) loadCategories(ctx context.Context, userID int64, f *Fixture, res *Result) (idsByName, error) {
	existing, err := l.catalog.ListCategories(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make(idsByName, len(existing))
	for _, c := range existing {
		ids.set(c.Name, c.ID)
	}

	for i, c := range f.Categories {
		if _, ok := ids.get(c.Name); ok {
			res.Skipped++
			continue
		}
		order := i + 1
		created, err := l.catalog.CreateCategory(ctx, userID, &services.CategoryInput{
			Name:         c.Name,
			Description:  c.Description,
			IconKey:      c.Icon,
			DisplayOrder: &order,
		})
		if err != nil {
			return nil, fmt.Errorf("category %q: %w", c.Name, err)
		}
		ids.set(created.Name, created.ID)
		res.Categories++
	}
	return ids, nil
}

func (l *Loader) loadRecipeCategories(ctx context.Context, userID int64, f *Fixture, res *Result) (idsByName, error) {
	existing, err := l.catalog.ListRecipeCategories(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make(idsByName, len(existing))
	for _, c := range existing {
		ids.set(c.Name, c.ID)
	}

	for i, c := range f.RecipeCategories {
		if _, ok := ids.get(c.Name); ok {
			res.Skipped++
			continue
		}
		order := i + 1
		created, err := l.catalog.CreateRecipeCategory(ctx, userID, &services.CategoryInput{
			Name:         c.Name,
			Description:  c.Description,
			IconKey:      c.Icon,
			Color:        c.Color,
			DisplayOrder: &order,
		})
		if err != nil {
			return nil, fmt.Errorf("recipe category %q: %w", c.Name, err)
		}
		ids.set(created.Name, created.ID)
		res.RecipeCategories++
	}
	return ids, nil
}

func (l *Loader) loadSuppliers(ctx context.Context, userID int64, f *Fixture, res *Result) error {
	existing, err := l.catalog.ListSuppliers(ctx, userID)
	if err != nil {
		return err
	}
	seen := nameSet(len(existing))
	for _, s := range existing {
		seen.add(s.Name)
	}

	for _, s := range f.Suppliers {
		if seen.has(s.Name) {
			res.Skipped++
			continue
		}
		if _, err := l.catalog.CreateSupplier(ctx, userID, &services.SupplierInput{
			Name:          s.Name,
			ContactPerson: s.ContactPerson,
			Phone:         s.Phone,
			Email:         s.Email,
		}); err != nil {
			return fmt.Errorf("supplier %q: %w", s.Name, err)
		}
		seen.add(s.Name)
		res.Suppliers++
	}
	return nil
}

func (l *Loader) loadIngredients(ctx context.Context, userID int64, f *Fixture, categoryIDs idsByName, res *Result) (idsByName, error) {
	existing, err := l.ingredients.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make(idsByName, len(existing))
	for _, ing := range existing {
		ids.set(ing.Name, ing.ID)
	}

	for _, ing := range f.Ingredients {
		if _, ok := ids.get(ing.Name); ok {
			res.Skipped++
			continue
		}

		input := &services.IngredientInput{
			Name:     ing.Name,
			Supplier: ing.Supplier,
			Unit:     ing.Unit,
			Notes:    ing.Notes,
		}
		if ing.Category != "" {
			id, _ := categoryIDs.get(ing.Category)
			input.CategoryID = &id
		}
		if input.TotalCost, err = parseDecimal(ing.TotalCost); err != nil {
			return nil, fmt.Errorf("ingredient %q: total_cost: %w", ing.Name, err)
		}
		if input.PackageQuantity, err = parseDecimal(ing.PackageQuantity); err != nil {
			return nil, fmt.Errorf("ingredient %q: package_quantity: %w", ing.Name, err)
		}

		created, err := l.ingredients.Create(ctx, userID, input)
		if err != nil {
			return nil, fmt.Errorf("ingredient %q: %w", ing.Name, err)
		}
		ids.set(created.Name, created.ID)
		res.Ingredients++
	}
	return ids, nil
}

func (l *Loader) loadPriceChanges(ctx context.Context, userID int64, f *Fixture, ingredientIDs idsByName, res *Result) error {
	for i, pc := range f.PriceChanges {
		id, _ := ingredientIDs.get(pc.Ingredient)
		newPrice, err := parseDecimal(pc.NewPrice)
		if err != nil {
			return fmt.Errorf("price change %d: new_price: %w", i, err)
		}
		effective, err := parseDate(pc.EffectiveDate)
		if err != nil {
			return fmt.Errorf("price change %d: effective_date: %w", i, err)
		}
		requestKey := uuid.NewSHA1(requestKeySpace, []byte(strconv.FormatInt(userID, 10)+"/"+normalize(pc.Ingredient)+"/"+strconv.Itoa(i)))

		result, err := l.movements.RecordPriceChange(ctx, userID, &services.PriceChangeInput{
			IngredientID:  id,
			NewPrice:      newPrice,
			EffectiveDate: effective,
			Notes:         pc.Notes,
			RequestKey:    &requestKey,
		})
		if err != nil {
			return fmt.Errorf("price change %d (%s): %w", i, pc.Ingredient, err)
		}
		if result.Replayed {
			res.Skipped++
			continue
		}
		res.PriceChanges++
	}
	return nil
}

func (l *Loader) loadRecipes(ctx context.Context, userID int64, f *Fixture, categoryIDs, ingredientIDs idsByName, res *Result) error {
	existing, err := l.recipes.List(ctx, userID)
	if err != nil {
		return err
	}
	seen := nameSet(len(existing.Recipes))
	for _, r := range existing.Recipes {
		seen.add(r.Name)
	}

	for _, r := range f.Recipes {
		if seen.has(r.Name) {
			res.Skipped++
			continue
		}

		categoryID, _ := categoryIDs.get(r.Category)
		price, err := parseDecimal(r.SuggestedPrice)
		if err != nil {
			return fmt.Errorf("recipe %q: suggested_price: %w", r.Name, err)
		}
		input := &services.RecipeInput{
			Name:            r.Name,
			CategoryID:      categoryID,
			Description:     r.Description,
			PreparationTime: r.PreparationTime,
			Servings:        r.Servings,
			SuggestedPrice:  price,
		}
		if r.ChefNotes != "" {
			notes := r.ChefNotes
			input.ChefNotes = &notes
		}
		for _, line := range r.Lines {
			ingredientID, _ := ingredientIDs.get(line.Ingredient)
			quantity, err := parseDecimal(line.Quantity)
			if err != nil {
				return fmt.Errorf("recipe %q: quantity of %q: %w", r.Name, line.Ingredient, err)
			}
			input.Ingredients = append(input.Ingredients, services.RecipeLineInput{
				IngredientID: ingredientID,
				Quantity:     quantity,
			})
		}

		if _, err := l.recipes.Save(ctx, userID, 0, input); err != nil {
			return fmt.Errorf("recipe %q: %w", r.Name, err)
		}
		seen.add(r.Name)
		res.Recipes++
	}
	return nil
}
