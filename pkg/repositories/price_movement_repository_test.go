//go:build integration

package repositories

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/recipe-costing/pkg/apperrors"
	"github.com/ekaya-inc/recipe-costing/pkg/models"
)

func day(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func (tc *repoTestContext) recordMovement(ingredientID int64, prev, next, date string) *models.PriceMovement {
	tc.t.Helper()
	p, n := dec(prev), dec(next)
	m := &models.PriceMovement{
		UserID:        tc.userID,
		IngredientID:  ingredientID,
		PreviousPrice: p,
		NewPrice:      n,
		ChangeAmount:  n.Sub(p),
		EffectiveDate: day(date),
	}
	if !p.IsZero() {
		m.ChangePercentage = decimal.NewNullDecimal(n.Sub(p).Mul(decimal.NewFromInt(100)).DivRound(p, 2))
	}
	require.NoError(tc.t, NewPriceMovementRepository().Create(tc.ctx, m))
	return m
}

func TestPriceMovementRepository_Create(t *testing.T) {
	tc := setupRepoTest(t, 921001)
	flour := tc.createIngredient("Flour", "2.00")

	m := tc.recordMovement(flour.ID, "2.00", "2.50", "2024-01-01")
	assert.NotZero(t, m.ID)
	assert.False(t, m.RecordedAt.IsZero())

	list, err := NewPriceMovementRepository().List(tc.ctx, tc.userID, models.PriceMovementFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)

	got := list[0]
	assert.True(t, dec("0.50").Equal(got.ChangeAmount))
	require.True(t, got.ChangePercentage.Valid)
	assert.True(t, dec("25.00").Equal(got.ChangePercentage.Decimal))
	assert.Equal(t, "Flour", got.IngredientName)
	assert.Equal(t, "kg", got.Unit)
	assert.Equal(t, "EUR", got.Currency)
	assert.Equal(t, models.DirectionIncrease, got.Direction())
	assert.Equal(t, "2024-01-01", got.EffectiveDate.Format("2006-01-02"))
}

func TestPriceMovementRepository_ZeroPreviousPriceHasNoPercentage(t *testing.T) {
	tc := setupRepoTest(t, 921011)
	ing := tc.createIngredient("Saffron", "0")

	tc.recordMovement(ing.ID, "0", "9.99", "2024-02-01")

	list, err := NewPriceMovementRepository().List(tc.ctx, tc.userID, models.PriceMovementFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.False(t, list[0].ChangePercentage.Valid)
}

func TestPriceMovementRepository_List_FilterAndOrder(t *testing.T) {
	tc := setupRepoTest(t, 921021)
	repo := NewPriceMovementRepository()

	flour := tc.createIngredient("Flour", "2.00")
	milk := tc.createIngredient("Milk", "1.00")

	first := tc.recordMovement(flour.ID, "2.00", "2.20", "2024-01-01")
	tc.recordMovement(milk.ID, "1.00", "0.90", "2024-01-15")
	sameDayEarlier := tc.recordMovement(flour.ID, "2.20", "2.40", "2024-02-01")
	sameDayLater := tc.recordMovement(flour.ID, "2.40", "2.30", "2024-02-01")

	flourOnly, err := repo.List(tc.ctx, tc.userID, models.PriceMovementFilter{IngredientID: &flour.ID})
	require.NoError(t, err)
	require.Len(t, flourOnly, 3)
	// effective_date DESC, then recorded_at DESC within a day
	assert.Equal(t, sameDayLater.ID, flourOnly[0].ID)
	assert.Equal(t, sameDayEarlier.ID, flourOnly[1].ID)
	assert.Equal(t, first.ID, flourOnly[2].ID)
	for _, m := range flourOnly {
		assert.Equal(t, flour.ID, m.IngredientID)
	}

	all, err := repo.List(tc.ctx, tc.userID, models.PriceMovementFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 4)

	start, end := day("2024-01-01"), day("2024-01-15")
	ranged, err := repo.List(tc.ctx, tc.userID, models.PriceMovementFilter{StartDate: &start, EndDate: &end})
	require.NoError(t, err)
	require.Len(t, ranged, 2, "date bounds are inclusive")
	assert.Equal(t, milk.ID, ranged[0].IngredientID)
}

func TestPriceMovementRepository_TenantIsolation(t *testing.T) {
	owner := setupRepoTest(t, 921031)
	other := setupRepoTest(t, 921032)

	ing := owner.createIngredient("Cocoa", "6.00")
	owner.recordMovement(ing.ID, "6.00", "6.60", "2024-03-01")

	list, err := NewPriceMovementRepository().List(other.ctx, other.userID, models.PriceMovementFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)

	// Recording against another tenant's ingredient is rejected by the composite key.
	m := &models.PriceMovement{
		UserID:        other.userID,
		IngredientID:  ing.ID,
		PreviousPrice: dec("6.00"),
		NewPrice:      dec("1.00"),
		ChangeAmount:  dec("-5.00"),
		EffectiveDate: day("2024-03-02"),
	}
	assert.ErrorIs(t, NewPriceMovementRepository().Create(other.ctx, m), apperrors.ErrNotFound)
}

func TestPriceMovementRepository_RequestKey(t *testing.T) {
	tc := setupRepoTest(t, 921041)
	repo := NewPriceMovementRepository()
	ing := tc.createIngredient("Vanilla", "30.00")

	key := uuid.New()
	m := &models.PriceMovement{
		UserID:        tc.userID,
		IngredientID:  ing.ID,
		PreviousPrice: dec("30.00"),
		NewPrice:      dec("33.00"),
		ChangeAmount:  dec("3.00"),
		EffectiveDate: day("2024-04-01"),
		RequestKey:    &key,
	}
	require.NoError(t, repo.Create(tc.ctx, m))

	got, err := repo.GetByRequestKey(tc.ctx, tc.userID, key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, m.ID, got.ID)
	require.NotNil(t, got.RequestKey)
	assert.Equal(t, key, *got.RequestKey)

	replay := *m
	replay.ID = 0
	assert.ErrorIs(t, repo.Create(tc.ctx, &replay), apperrors.ErrConflict)

	missing, err := repo.GetByRequestKey(tc.ctx, tc.userID, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestPriceMovementRepository_LedgerIsAppendOnly(t *testing.T) {
	tc := setupRepoTest(t, 921051)
	ing := tc.createIngredient("Yeast", "4.00")
	m := tc.recordMovement(ing.ID, "4.00", "4.40", "2024-05-01")

	scope, err := tenantScope(tc.ctx)
	require.NoError(t, err)

	_, err = scope.Querier().Exec(tc.ctx, "UPDATE ingredient_price_movements SET new_price = 1 WHERE id = $1", m.ID)
	assert.Error(t, err)
	_, err = scope.Querier().Exec(tc.ctx, "DELETE FROM ingredient_price_movements WHERE id = $1", m.ID)
	assert.Error(t, err)
}
