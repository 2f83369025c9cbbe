package services

import (
	"context"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/recipe-costing/pkg/apperrors"
	"github.com/ekaya-inc/recipe-costing/pkg/models"
)

// costingStore is an in-memory stand-in for the tenant's tables. Reads hand
// out copies so services cannot mutate stored rows without calling a write.
type costingStore struct {
	nextID           int64
	ingredients      map[int64]*models.Ingredient
	movements        []*models.PriceMovement
	recipes          map[int64]*models.Recipe
	recipeCategories map[int64]*models.RecipeCategory
}

func newCostingStore() *costingStore {
	return &costingStore{
		ingredients:      make(map[int64]*models.Ingredient),
		recipes:          make(map[int64]*models.Recipe),
		recipeCategories: make(map[int64]*models.RecipeCategory),
	}
}

func (s *costingStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *costingStore) addRecipeCategory(userID int64, name string) *models.RecipeCategory {
	c := &models.RecipeCategory{ID: s.id(), UserID: userID, Name: name, IconKey: models.DefaultRecipeCategoryIcon, IsActive: true}
	s.recipeCategories[c.ID] = c
	return c
}

// passThroughTx runs fn directly; the fakes have no transactions.
func passThroughTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type recordingInvalidator struct {
	calls []int64
}

func (r *recordingInvalidator) Invalidate(_ context.Context, userID int64) {
	r.calls = append(r.calls, userID)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	require.Truef(t, d(want).Equal(got), "want %s, got %s %v", want, got.String(), msgAndArgs)
}

// fakeIngredientRepo

type fakeIngredientRepo struct {
	store     *costingStore
	updateErr error
	locked    []int64
}

func (r *fakeIngredientRepo) List(_ context.Context, userID int64) ([]*models.Ingredient, error) {
	var out []*models.Ingredient
	for _, ing := range r.store.ingredients {
		if ing.UserID == userID {
			c := *ing
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name) })
	return out, nil
}

func (r *fakeIngredientRepo) GetByID(_ context.Context, userID, id int64) (*models.Ingredient, error) {
	ing, ok := r.store.ingredients[id]
	if !ok || ing.UserID != userID {
		return nil, nil
	}
	c := *ing
	return &c, nil
}

func (r *fakeIngredientRepo) GetByIDForUpdate(ctx context.Context, userID, id int64) (*models.Ingredient, error) {
	r.locked = append(r.locked, id)
	return r.GetByID(ctx, userID, id)
}

func (r *fakeIngredientRepo) Create(_ context.Context, ing *models.Ingredient) error {
	for _, existing := range r.store.ingredients {
		if existing.UserID == ing.UserID && strings.EqualFold(existing.Name, ing.Name) {
			return apperrors.ErrDuplicateName
		}
	}
	ing.ID = r.store.id()
	ing.CreatedAt = time.Now()
	c := *ing
	r.store.ingredients[ing.ID] = &c
	return nil
}

func (r *fakeIngredientRepo) Update(_ context.Context, ing *models.Ingredient) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	existing, ok := r.store.ingredients[ing.ID]
	if !ok || existing.UserID != ing.UserID {
		return apperrors.ErrNotFound
	}
	c := *ing
	r.store.ingredients[ing.ID] = &c
	return nil
}

// fakeMovementRepo

type fakeMovementRepo struct {
	store     *costingStore
	createErr error
	// racer, when set, is stored by the next Create which then reports a
	// request key conflict, as if a concurrent call had committed first.
	racer *models.PriceMovement
}

func (r *fakeMovementRepo) Create(_ context.Context, m *models.PriceMovement) error {
	if r.createErr != nil {
		return r.createErr
	}
	if r.racer != nil {
		r.racer.ID = r.store.id()
		r.store.movements = append(r.store.movements, r.racer)
		r.racer = nil
		return apperrors.ErrConflict
	}
	if m.RequestKey != nil {
		for _, existing := range r.store.movements {
			if existing.RequestKey != nil && *existing.RequestKey == *m.RequestKey && existing.UserID == m.UserID {
				return apperrors.ErrConflict
			}
		}
	}
	m.ID = r.store.id()
	m.RecordedAt = time.Now()
	c := *m
	r.store.movements = append(r.store.movements, &c)
	return nil
}

func (r *fakeMovementRepo) List(_ context.Context, userID int64, filter models.PriceMovementFilter) ([]*models.PriceMovement, error) {
	var out []*models.PriceMovement
	for _, m := range r.store.movements {
		if m.UserID != userID {
			continue
		}
		if filter.IngredientID != nil && m.IngredientID != *filter.IngredientID {
			continue
		}
		if filter.StartDate != nil && m.EffectiveDate.Before(*filter.StartDate) {
			continue
		}
		if filter.EndDate != nil && m.EffectiveDate.After(*filter.EndDate) {
			continue
		}
		c := *m
		out = append(out, &c)
	}
	return out, nil
}

func (r *fakeMovementRepo) GetByRequestKey(_ context.Context, userID int64, key uuid.UUID) (*models.PriceMovement, error) {
	for _, m := range r.store.movements {
		if m.UserID == userID && m.RequestKey != nil && *m.RequestKey == key {
			c := *m
			return &c, nil
		}
	}
	return nil, nil
}

// fakeRecipeRepo

type fakeRecipeRepo struct {
	store   *costingStore
	saveErr error
	saved   []*models.Recipe
}

func (r *fakeRecipeRepo) copyRecipe(recipe *models.Recipe) *models.Recipe {
	c := *recipe
	c.Ingredients = append([]models.RecipeIngredient(nil), recipe.Ingredients...)
	if cat, ok := r.store.recipeCategories[c.CategoryID]; ok {
		c.CategoryName = cat.Name
		c.CategoryIcon = cat.IconKey
	}
	return &c
}

func (r *fakeRecipeRepo) List(_ context.Context, userID int64) ([]*models.Recipe, error) {
	var out []*models.Recipe
	for _, recipe := range r.store.recipes {
		if recipe.UserID == userID {
			out = append(out, r.copyRecipe(recipe))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *fakeRecipeRepo) Get(_ context.Context, userID, id int64) (*models.Recipe, error) {
	recipe, ok := r.store.recipes[id]
	if !ok || recipe.UserID != userID {
		return nil, nil
	}
	return r.copyRecipe(recipe), nil
}

func (r *fakeRecipeRepo) Save(_ context.Context, recipe *models.Recipe) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	if recipe.ID == 0 {
		recipe.ID = r.store.id()
	} else if existing, ok := r.store.recipes[recipe.ID]; !ok || existing.UserID != recipe.UserID {
		return apperrors.ErrNotFound
	}
	for i := range recipe.Ingredients {
		recipe.Ingredients[i].ID = r.store.id()
		recipe.Ingredients[i].RecipeID = recipe.ID
	}
	r.store.recipes[recipe.ID] = r.copyRecipe(recipe)
	r.saved = append(r.saved, r.copyRecipe(recipe))
	return nil
}

// fakeRecipeCategoryRepo

type fakeRecipeCategoryRepo struct {
	store *costingStore
}

func (r *fakeRecipeCategoryRepo) List(_ context.Context, userID int64) ([]*models.RecipeCategory, error) {
	var out []*models.RecipeCategory
	for _, c := range r.store.recipeCategories {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *fakeRecipeCategoryRepo) GetByID(_ context.Context, userID, id int64) (*models.RecipeCategory, error) {
	c, ok := r.store.recipeCategories[id]
	if !ok || c.UserID != userID {
		return nil, nil
	}
	return c, nil
}

func (r *fakeRecipeCategoryRepo) Create(_ context.Context, c *models.RecipeCategory) error {
	c.ID = r.store.id()
	if c.IconKey == "" {
		c.IconKey = models.DefaultRecipeCategoryIcon
	}
	r.store.recipeCategories[c.ID] = c
	return nil
}

// costingFixture wires the three costing services over one store.
type costingFixture struct {
	store       *costingStore
	ingRepo     *fakeIngredientRepo
	moveRepo    *fakeMovementRepo
	recipeRepo  *fakeRecipeRepo
	invalidator *recordingInvalidator
	ingredients *ingredientService
	movements   *priceMovementService
	recipes     *recipeService
}

var fixtureNow = time.Date(2026, 3, 14, 15, 30, 0, 0, time.UTC)

func newCostingFixture() *costingFixture {
	store := newCostingStore()
	f := &costingFixture{
		store:       store,
		ingRepo:     &fakeIngredientRepo{store: store},
		moveRepo:    &fakeMovementRepo{store: store},
		recipeRepo:  &fakeRecipeRepo{store: store},
		invalidator: &recordingInvalidator{},
	}
	logger := zap.NewNop()

	f.ingredients = NewIngredientService(f.ingRepo, f.moveRepo, passThroughTx, f.invalidator, logger).(*ingredientService)
	f.ingredients.now = fixedClock(fixtureNow)
	f.movements = NewPriceMovementService(f.ingRepo, f.moveRepo, passThroughTx, f.invalidator, logger).(*priceMovementService)
	f.movements.now = fixedClock(fixtureNow)
	f.recipes = NewRecipeService(f.recipeRepo, f.ingRepo, &fakeRecipeCategoryRepo{store: store}, passThroughTx, f.invalidator, logger).(*recipeService)
	return f
}

func (f *costingFixture) flour(t *testing.T, userID int64) *models.Ingredient {
	t.Helper()
	ing, err := f.ingredients.Create(context.Background(), userID, &IngredientInput{
		Name:            "Flour",
		Unit:            "kg",
		TotalCost:       d("10.00"),
		PackageQuantity: d("5"),
	})
	require.NoError(t, err)
	return ing
}
