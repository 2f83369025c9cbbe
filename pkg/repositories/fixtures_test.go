//go:build integration

package repositories

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/recipe-costing/pkg/models"
	"github.com/ekaya-inc/recipe-costing/pkg/testhelpers"
)

// repoTestContext holds a tenant context on the shared engine database.
// Every test uses its own userID so tests never see each other's rows.
type repoTestContext struct {
	t        *testing.T
	engineDB *testhelpers.EngineDB
	userID   int64
	ctx      context.Context
}

func setupRepoTest(t *testing.T, userID int64) *repoTestContext {
	t.Helper()
	engineDB := testhelpers.GetEngineDB(t)
	testhelpers.PurgeTenant(t, engineDB, userID)
	t.Cleanup(func() { testhelpers.PurgeTenant(t, engineDB, userID) })

	return &repoTestContext{
		t:        t,
		engineDB: engineDB,
		userID:   userID,
		ctx:      testhelpers.TenantContext(t, engineDB, userID),
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func (tc *repoTestContext) createIngredient(name, costPerUnit string) *models.Ingredient {
	tc.t.Helper()
	ing := &models.Ingredient{
		UserID:      tc.userID,
		Name:        name,
		Unit:        "kg",
		CostPerUnit: dec(costPerUnit),
		IsActive:    true,
	}
	require.NoError(tc.t, NewIngredientRepository().Create(tc.ctx, ing))
	return ing
}

func (tc *repoTestContext) createRecipeCategory(name string) *models.RecipeCategory {
	tc.t.Helper()
	c := &models.RecipeCategory{UserID: tc.userID, Name: name, IsActive: true}
	require.NoError(tc.t, NewRecipeCategoryRepository().Create(tc.ctx, c))
	return c
}
