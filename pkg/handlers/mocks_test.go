package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/recipe-costing/pkg/auth"
	"github.com/ekaya-inc/recipe-costing/pkg/models"
	"github.com/ekaya-inc/recipe-costing/pkg/services"
)

// newRequest builds a request authenticated as userID. Pass userID 0 for an
// anonymous request.
func newRequest(t *testing.T, method, target string, body any, userID int64) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)

	if userID != 0 {
		claims := &auth.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: strconv.FormatInt(userID, 10)}}
		req = req.WithContext(context.WithValue(req.Context(), auth.ClaimsKey, claims))
	}
	return req
}

// decodeData unwraps the success envelope into dst.
func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()

	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
	require.True(t, envelope.Success)
	require.NoError(t, json.Unmarshal(envelope.Data, dst))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()

	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

// mockIngredientService implements services.IngredientService for handler tests.
type mockIngredientService struct {
	ingredients []*models.Ingredient
	ingredient  *models.Ingredient
	err         error

	capturedUserID int64
	capturedID     int64
	capturedInput  *services.IngredientInput
}

func (m *mockIngredientService) List(_ context.Context, userID int64) ([]*models.Ingredient, error) {
	m.capturedUserID = userID
	return m.ingredients, m.err
}

func (m *mockIngredientService) Get(_ context.Context, userID, id int64) (*models.Ingredient, error) {
	m.capturedUserID, m.capturedID = userID, id
	return m.ingredient, m.err
}

func (m *mockIngredientService) Create(_ context.Context, userID int64, input *services.IngredientInput) (*models.Ingredient, error) {
	m.capturedUserID, m.capturedInput = userID, input
	return m.ingredient, m.err
}

func (m *mockIngredientService) Update(_ context.Context, userID, id int64, input *services.IngredientInput) (*models.Ingredient, error) {
	m.capturedUserID, m.capturedID, m.capturedInput = userID, id, input
	return m.ingredient, m.err
}

// mockPriceMovementService implements services.PriceMovementService.
type mockPriceMovementService struct {
	list   *services.PriceMovementList
	result *services.PriceChangeResult
	err    error

	capturedFilter models.PriceMovementFilter
	capturedInput  *services.PriceChangeInput
}

func (m *mockPriceMovementService) List(_ context.Context, _ int64, filter models.PriceMovementFilter) (*services.PriceMovementList, error) {
	m.capturedFilter = filter
	if m.err != nil {
		return nil, m.err
	}
	if m.list == nil {
		return &services.PriceMovementList{}, nil
	}
	return m.list, nil
}

func (m *mockPriceMovementService) RecordPriceChange(_ context.Context, _ int64, input *services.PriceChangeInput) (*services.PriceChangeResult, error) {
	m.capturedInput = input
	return m.result, m.err
}

// mockRecipeService implements services.RecipeService.
type mockRecipeService struct {
	list *services.RecipeList
	card *services.RecipeCard
	err  error

	capturedID    int64
	capturedInput *services.RecipeInput
}

func (m *mockRecipeService) List(context.Context, int64) (*services.RecipeList, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.list == nil {
		return &services.RecipeList{}, nil
	}
	return m.list, nil
}

func (m *mockRecipeService) Get(_ context.Context, _, id int64) (*services.RecipeCard, error) {
	m.capturedID = id
	return m.card, m.err
}

func (m *mockRecipeService) Save(_ context.Context, _, id int64, input *services.RecipeInput) (*services.RecipeCard, error) {
	m.capturedID, m.capturedInput = id, input
	return m.card, m.err
}

// mockCatalogService implements services.CatalogService.
type mockCatalogService struct {
	categories       []*models.Category
	recipeCategories []*models.RecipeCategory
	suppliers        []*models.Supplier
	err              error

	capturedCategory *services.CategoryInput
	capturedSupplier *services.SupplierInput
	capturedID       int64
}

func (m *mockCatalogService) ListCategories(context.Context, int64) ([]*models.Category, error) {
	return m.categories, m.err
}

func (m *mockCatalogService) CreateCategory(_ context.Context, userID int64, input *services.CategoryInput) (*models.Category, error) {
	m.capturedCategory = input
	if m.err != nil {
		return nil, m.err
	}
	return &models.Category{ID: 1, UserID: userID, Name: input.Name, IsActive: true}, nil
}

func (m *mockCatalogService) ListRecipeCategories(context.Context, int64) ([]*models.RecipeCategory, error) {
	return m.recipeCategories, m.err
}

func (m *mockCatalogService) CreateRecipeCategory(_ context.Context, userID int64, input *services.CategoryInput) (*models.RecipeCategory, error) {
	m.capturedCategory = input
	if m.err != nil {
		return nil, m.err
	}
	return &models.RecipeCategory{ID: 1, UserID: userID, Name: input.Name, IconKey: models.DefaultRecipeCategoryIcon}, nil
}

func (m *mockCatalogService) ListSuppliers(context.Context, int64) ([]*models.Supplier, error) {
	return m.suppliers, m.err
}

func (m *mockCatalogService) CreateSupplier(_ context.Context, userID int64, input *services.SupplierInput) (*models.Supplier, error) {
	m.capturedSupplier = input
	if m.err != nil {
		return nil, m.err
	}
	return &models.Supplier{ID: 1, UserID: userID, Name: input.Name}, nil
}

func (m *mockCatalogService) UpdateSupplier(_ context.Context, userID, id int64, input *services.SupplierInput) (*models.Supplier, error) {
	m.capturedID, m.capturedSupplier = id, input
	if m.err != nil {
		return nil, m.err
	}
	return &models.Supplier{ID: id, UserID: userID, Name: input.Name}, nil
}

// mockDashboardService implements services.DashboardService.
type mockDashboardService struct {
	stats *models.DashboardStats
	err   error
}

func (m *mockDashboardService) Get(context.Context, int64) (*models.DashboardStats, error) {
	return m.stats, m.err
}
