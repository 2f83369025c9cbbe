//go:build integration

package migrations_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/recipe-costing/pkg/testhelpers"
)

// Test_001_CostingSchema verifies migration 001 creates the ledger tables with RLS enabled
func Test_001_CostingSchema(t *testing.T) {
	engineDB := testhelpers.GetEngineDB(t)
	ctx := context.Background()

	tables := []string{
		"categories",
		"suppliers",
		"ingredients",
		"recipe_categories",
		"recipes",
		"recipe_ingredients",
		"ingredient_price_movements",
	}

	for _, table := range tables {
		var rlsEnabled, rlsForced bool
		err := engineDB.DB.Pool.QueryRow(ctx, `
			SELECT relrowsecurity, relforcerowsecurity
			FROM pg_class
			WHERE relname = $1 AND relkind = 'r'
		`, table).Scan(&rlsEnabled, &rlsForced)
		require.NoError(t, err, "Table %s should exist", table)
		assert.True(t, rlsEnabled, "Table %s should have RLS enabled", table)
		assert.True(t, rlsForced, "Table %s should force RLS", table)
	}

	columns := map[string]string{
		"previous_price":    "numeric",
		"new_price":         "numeric",
		"change_amount":     "numeric",
		"change_percentage": "numeric",
		"effective_date":    "date",
		"recorded_at":       "timestamp with time zone",
		"request_key":       "uuid",
	}

	for colName, expectedType := range columns {
		var dataType string
		err := engineDB.DB.Pool.QueryRow(ctx, `
			SELECT data_type
			FROM information_schema.columns
			WHERE table_name = 'ingredient_price_movements'
			AND column_name = $1
		`, colName).Scan(&dataType)
		require.NoError(t, err, "Column %s should exist", colName)
		assert.Equal(t, expectedType, dataType, "Column %s should have type %s", colName, expectedType)
	}
}

// Test_001_PriceMovementsAppendOnly verifies ledger rows cannot be updated or deleted
func Test_001_PriceMovementsAppendOnly(t *testing.T) {
	engineDB := testhelpers.GetEngineDB(t)
	ctx := context.Background()

	const userID int64 = 900001
	defer testhelpers.PurgeTenant(t, engineDB, userID)

	var ingredientID int64
	err := engineDB.DB.Pool.QueryRow(ctx, `
		INSERT INTO ingredients (user_id, name, unit, cost_per_unit)
		VALUES ($1, 'Append Only Flour', 'kg', 2.00)
		RETURNING id
	`, userID).Scan(&ingredientID)
	require.NoError(t, err)

	var movementID int64
	err = engineDB.DB.Pool.QueryRow(ctx, `
		INSERT INTO ingredient_price_movements
			(user_id, ingredient_id, previous_price, new_price, change_amount, effective_date)
		VALUES ($1, $2, 2.00, 2.50, 0.50, DATE '2024-01-01')
		RETURNING id
	`, userID, ingredientID).Scan(&movementID)
	require.NoError(t, err)

	_, err = engineDB.DB.Pool.Exec(ctx, `UPDATE ingredient_price_movements SET notes = 'edited' WHERE id = $1`, movementID)
	assert.Error(t, err, "Updating a ledger row should fail")

	_, err = engineDB.DB.Pool.Exec(ctx, `DELETE FROM ingredient_price_movements WHERE id = $1`, movementID)
	assert.Error(t, err, "Deleting a ledger row should fail")
}
