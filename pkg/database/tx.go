package database

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoTenantScope is returned when a context carries no tenant scope.
var ErrNoTenantScope = errors.New("no tenant scope in context")

// RunInTx runs fn inside one transaction on the tenant scope carried by ctx.
// Stores called from fn pick the transaction up through TenantScope.Querier.
// The transaction commits when fn returns nil and rolls back otherwise,
// including when ctx is cancelled. Nested calls become savepoints.
func RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	scope, ok := GetTenantScope(ctx)
	if !ok {
		return ErrNoTenantScope
	}

	tx, err := scope.Begin(ctx)
	if err != nil {
		return err
	}
	// Rollback must reach the server even when ctx is already cancelled,
	// otherwise pgx gives up before sending it and the connection is lost.
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	if err := fn(ctx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
