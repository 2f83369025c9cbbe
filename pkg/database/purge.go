package database

import (
	"context"
	"fmt"
)

// Tenant tables in delete order (children first).
var tenantTables = []string{
	"ingredient_price_movements",
	"recipes",
	"recipe_categories",
	"ingredients",
	"categories",
	"suppliers",
}

// PurgeCounts reports rows removed (or that would be removed) per table.
type PurgeCounts map[string]int64

// CountTenantRows counts a tenant's rows in every tenant table.
func CountTenantRows(ctx context.Context, q Querier, userID int64) (PurgeCounts, error) {
	counts := make(PurgeCounts, len(tenantTables)+1)
	for _, table := range tenantTables {
		var n int64
		if err := q.QueryRow(ctx, fmt.Sprintf("SELECT count(*) FROM %s WHERE user_id = $1", table), userID).Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", table, err)
		}
		counts[table] = n
	}

	var lines int64
	err := q.QueryRow(ctx, `
		SELECT count(*) FROM recipe_ingredients ri
		JOIN recipes r ON r.id = ri.recipe_id
		WHERE r.user_id = $1`, userID).Scan(&lines)
	if err != nil {
		return nil, fmt.Errorf("failed to count recipe_ingredients: %w", err)
	}
	counts["recipe_ingredients"] = lines

	return counts, nil
}

// PurgeTenant deletes every row owned by userID, ledger included, in one
// transaction. It is operator tooling: the ledger is otherwise append-only.
func PurgeTenant(ctx context.Context, scope *TenantScope, userID int64) (PurgeCounts, error) {
	tx, err := scope.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, "SET LOCAL app.allow_ledger_purge = 'on'"); err != nil {
		return nil, fmt.Errorf("failed to enable ledger purge: %w", err)
	}

	counts := make(PurgeCounts, len(tenantTables))
	for _, table := range tenantTables {
		// recipe_ingredients go with their recipes (ON DELETE CASCADE)
		tag, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE user_id = $1", table), userID)
		if err != nil {
			return nil, fmt.Errorf("failed to purge %s: %w", table, err)
		}
		counts[table] = tag.RowsAffected()
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit purge: %w", err)
	}
	return counts, nil
}
