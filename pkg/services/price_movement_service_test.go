package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/recipe-costing/pkg/apperrors"
	"github.com/ekaya-inc/recipe-costing/pkg/models"
)

func TestPriceMovementService_RecordPriceChange(t *testing.T) {
	f := newCostingFixture()
	flour := f.flour(t, 1)
	f.invalidator.calls = nil

	result, err := f.movements.RecordPriceChange(context.Background(), 1, &PriceChangeInput{
		IngredientID: flour.ID,
		NewPrice:     d("2.50"),
		Notes:        "  supplier increase ",
	})
	require.NoError(t, err)
	assert.False(t, result.Replayed)

	m := result.Movement
	assert.NotZero(t, m.ID)
	assertDecimal(t, "2.00", m.PreviousPrice)
	assertDecimal(t, "2.50", m.NewPrice)
	assertDecimal(t, "0.50", m.ChangeAmount)
	require.True(t, m.ChangePercentage.Valid)
	assertDecimal(t, "25.00", m.ChangePercentage.Decimal)
	assert.Equal(t, models.DirectionIncrease, m.Direction())
	assert.Equal(t, today(fixtureNow), m.EffectiveDate)
	assert.Equal(t, "supplier increase", m.Notes)
	assert.Equal(t, "Flour", m.IngredientName)

	ing := result.Ingredient
	assertDecimal(t, "2.50", ing.CostPerUnit)
	assertDecimal(t, "12.50", ing.TotalCost.Decimal)
	require.NotNil(t, ing.LastPriceUpdate)
	assert.Equal(t, today(fixtureNow), *ing.LastPriceUpdate)

	stored, err := f.ingredients.Get(context.Background(), 1, flour.ID)
	require.NoError(t, err)
	assertDecimal(t, "2.50", stored.CostPerUnit)
	assert.Equal(t, []int64{flour.ID}, f.ingRepo.locked)
	assert.Equal(t, []int64{1}, f.invalidator.calls)
}

func TestPriceMovementService_ChainedChangesUsePreviousNewPrice(t *testing.T) {
	f := newCostingFixture()
	flour := f.flour(t, 1)
	ctx := context.Background()

	_, err := f.movements.RecordPriceChange(ctx, 1, &PriceChangeInput{IngredientID: flour.ID, NewPrice: d("2.50")})
	require.NoError(t, err)
	second, err := f.movements.RecordPriceChange(ctx, 1, &PriceChangeInput{IngredientID: flour.ID, NewPrice: d("2.25")})
	require.NoError(t, err)

	assertDecimal(t, "2.50", second.Movement.PreviousPrice)
	assertDecimal(t, "-0.25", second.Movement.ChangeAmount)
	assertDecimal(t, "-10.00", second.Movement.ChangePercentage.Decimal)
	assert.Equal(t, models.DirectionDecrease, second.Movement.Direction())
}

func TestPriceMovementService_FromZeroPriceHasNoPercentage(t *testing.T) {
	f := newCostingFixture()
	ctx := context.Background()
	flour := f.flour(t, 1)

	_, err := f.movements.RecordPriceChange(ctx, 1, &PriceChangeInput{IngredientID: flour.ID, NewPrice: d("0")})
	require.NoError(t, err)
	result, err := f.movements.RecordPriceChange(ctx, 1, &PriceChangeInput{IngredientID: flour.ID, NewPrice: d("1.10")})
	require.NoError(t, err)

	assert.False(t, result.Movement.ChangePercentage.Valid)
	assertDecimal(t, "1.10", result.Movement.ChangeAmount)
}

func TestPriceMovementService_BackdatedEffectiveDate(t *testing.T) {
	f := newCostingFixture()
	flour := f.flour(t, 1)
	effective := time.Date(2026, 1, 2, 18, 0, 0, 0, time.UTC)

	result, err := f.movements.RecordPriceChange(context.Background(), 1, &PriceChangeInput{
		IngredientID:  flour.ID,
		NewPrice:      d("1.80"),
		EffectiveDate: &effective,
	})
	require.NoError(t, err)

	want := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, want, result.Movement.EffectiveDate)
	assert.Equal(t, want, *result.Ingredient.LastPriceUpdate)
}

func TestPriceMovementService_RecordPriceChange_Validation(t *testing.T) {
	bulk := &IngredientInput{Name: "Rice", Unit: "g", TotalCost: d("99999999"), PackageQuantity: d("99999999")}
	pinch := &IngredientInput{Name: "Salt", Unit: "g", TotalCost: d("0.01"), PackageQuantity: d("1")}

	tests := []struct {
		name  string
		stock *IngredientInput // created first; the change targets it
		input *PriceChangeInput
		field string
	}{
		{"nil input", nil, nil, ""},
		{"no ingredient", nil, &PriceChangeInput{NewPrice: d("1")}, "ingredient_id"},
		{"negative price", nil, &PriceChangeInput{IngredientID: 1, NewPrice: d("-0.01")}, "new_price"},
		{"price too large", nil, &PriceChangeInput{IngredientID: 1, NewPrice: d("1e11")}, "new_price"},
		{"package total overflows", bulk, &PriceChangeInput{NewPrice: d("100000")}, "new_price"},
		{"change percentage overflows", pinch, &PriceChangeInput{NewPrice: d("9999999999.99")}, "new_price"},
		{"long notes", nil, &PriceChangeInput{IngredientID: 1, NewPrice: d("1"), Notes: strings.Repeat("n", 501)}, "notes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCostingFixture()
			if tt.stock != nil {
				ing, err := f.ingredients.Create(context.Background(), 1, tt.stock)
				require.NoError(t, err)
				tt.input.IngredientID = ing.ID
			}

			_, err := f.movements.RecordPriceChange(context.Background(), 1, tt.input)

			var ve *apperrors.ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Equal(t, tt.field, ve.Field)
			assert.Empty(t, f.store.movements)
		})
	}
}

func TestPriceMovementService_UnknownIngredient(t *testing.T) {
	f := newCostingFixture()
	flour := f.flour(t, 1)

	_, err := f.movements.RecordPriceChange(context.Background(), 2, &PriceChangeInput{
		IngredientID: flour.ID,
		NewPrice:     d("9.99"),
	})

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Empty(t, f.store.movements)
}

func TestPriceMovementService_SnapshotFailureSurfaces(t *testing.T) {
	f := newCostingFixture()
	flour := f.flour(t, 1)
	f.invalidator.calls = nil
	f.ingRepo.updateErr = errors.New("connection reset")

	_, err := f.movements.RecordPriceChange(context.Background(), 1, &PriceChangeInput{
		IngredientID: flour.ID,
		NewPrice:     d("3.00"),
	})

	assert.EqualError(t, err, "connection reset")
	assert.Empty(t, f.invalidator.calls)
}

func TestPriceMovementService_RequestKeyReplay(t *testing.T) {
	f := newCostingFixture()
	flour := f.flour(t, 1)
	key := uuid.New()
	input := &PriceChangeInput{IngredientID: flour.ID, NewPrice: d("2.50"), RequestKey: &key}

	first, err := f.movements.RecordPriceChange(context.Background(), 1, input)
	require.NoError(t, err)
	second, err := f.movements.RecordPriceChange(context.Background(), 1, input)
	require.NoError(t, err)

	assert.False(t, first.Replayed)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Movement.ID, second.Movement.ID)
	assertDecimal(t, "2.50", second.Ingredient.CostPerUnit)
	assert.Len(t, f.store.movements, 1)
}

func TestPriceMovementService_RequestKeyRace(t *testing.T) {
	f := newCostingFixture()
	flour := f.flour(t, 1)
	key := uuid.New()
	f.moveRepo.racer = &models.PriceMovement{
		UserID:        1,
		IngredientID:  flour.ID,
		PreviousPrice: d("2.00"),
		NewPrice:      d("2.50"),
		ChangeAmount:  d("0.50"),
		EffectiveDate: today(fixtureNow),
		RequestKey:    &key,
	}

	result, err := f.movements.RecordPriceChange(context.Background(), 1, &PriceChangeInput{
		IngredientID: flour.ID,
		NewPrice:     d("2.50"),
		RequestKey:   &key,
	})
	require.NoError(t, err)

	assert.True(t, result.Replayed)
	assert.Len(t, f.store.movements, 1)
}

func TestPriceMovementService_RequestKeyReusedForDifferentChange(t *testing.T) {
	f := newCostingFixture()
	flour := f.flour(t, 1)
	sugar, err := f.ingredients.Create(context.Background(), 1, &IngredientInput{
		Name: "Sugar", Unit: "kg", TotalCost: d("3.00"), PackageQuantity: d("1"),
	})
	require.NoError(t, err)
	key := uuid.New()

	_, err = f.movements.RecordPriceChange(context.Background(), 1, &PriceChangeInput{
		IngredientID: flour.ID, NewPrice: d("2.50"), RequestKey: &key,
	})
	require.NoError(t, err)

	tests := []struct {
		name  string
		input *PriceChangeInput
	}{
		{"different price", &PriceChangeInput{IngredientID: flour.ID, NewPrice: d("2.75"), RequestKey: &key}},
		{"different ingredient", &PriceChangeInput{IngredientID: sugar.ID, NewPrice: d("2.50"), RequestKey: &key}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := f.movements.RecordPriceChange(context.Background(), 1, tt.input)

			assert.Nil(t, result)
			assert.ErrorIs(t, err, apperrors.ErrConflict)
			assert.Len(t, f.store.movements, 1)
		})
	}

	// Same key and same payload, modulo rounding, is still a replay.
	again, err := f.movements.RecordPriceChange(context.Background(), 1, &PriceChangeInput{
		IngredientID: flour.ID, NewPrice: d("2.499"), RequestKey: &key,
	})
	require.NoError(t, err)
	assert.True(t, again.Replayed)
}

func TestPriceMovementService_List(t *testing.T) {
	f := newCostingFixture()
	ctx := context.Background()
	flour := f.flour(t, 1)
	sugar, err := f.ingredients.Create(ctx, 1, &IngredientInput{
		Name: "Sugar", Unit: "kg", TotalCost: d("3.00"), PackageQuantity: d("1"),
	})
	require.NoError(t, err)

	jan := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	for _, in := range []*PriceChangeInput{
		{IngredientID: flour.ID, NewPrice: d("2.50"), EffectiveDate: &jan},
		{IngredientID: flour.ID, NewPrice: d("2.20"), EffectiveDate: &feb},
		{IngredientID: sugar.ID, NewPrice: d("4.00"), EffectiveDate: &feb},
	} {
		_, err := f.movements.RecordPriceChange(ctx, 1, in)
		require.NoError(t, err)
	}

	t.Run("all", func(t *testing.T) {
		list, err := f.movements.List(ctx, 1, models.PriceMovementFilter{})
		require.NoError(t, err)

		assert.Len(t, list.Movements, 3)
		assert.Equal(t, 3, list.Summary.TotalMovements)
		assertDecimal(t, "1.50", list.Summary.TotalIncrease)
		assertDecimal(t, "0.30", list.Summary.TotalDecrease)
		assertDecimal(t, "1.00", list.Summary.LargestIncrease)
		assertDecimal(t, "0.30", list.Summary.LargestDecrease)
		assertDecimal(t, "0.40", list.Summary.AverageChange)
	})

	t.Run("by ingredient and range", func(t *testing.T) {
		start := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
		list, err := f.movements.List(ctx, 1, models.PriceMovementFilter{IngredientID: &flour.ID, StartDate: &start})
		require.NoError(t, err)

		require.Len(t, list.Movements, 1)
		assertDecimal(t, "2.20", list.Movements[0].NewPrice)
	})

	t.Run("inverted range", func(t *testing.T) {
		_, err := f.movements.List(ctx, 1, models.PriceMovementFilter{StartDate: &feb, EndDate: &jan})
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})

	t.Run("other tenant sees nothing", func(t *testing.T) {
		list, err := f.movements.List(ctx, 2, models.PriceMovementFilter{})
		require.NoError(t, err)
		assert.Empty(t, list.Movements)
		assert.Equal(t, 0, list.Summary.TotalMovements)
	})
}
