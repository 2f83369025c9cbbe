package database

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is the statement surface shared by a pooled connection and a transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TenantScope wraps a connection with tenant context and ensures cleanup.
// The connection has app.current_user_id set for RLS policy evaluation.
// A scope belongs to a single request and is not shared between goroutines.
type TenantScope struct {
	Conn   *pgxpool.Conn
	UserID int64

	mu      sync.Mutex
	tx      *scopeTx
	columns map[string]bool
}

// Close resets tenant context and releases connection to pool.
// This MUST be called to prevent tenant context from leaking to the next request.
func (s *TenantScope) Close() {
	if s.Conn == nil {
		return
	}

	s.mu.Lock()
	tx := s.tx
	s.mu.Unlock()
	if tx != nil {
		_ = tx.Rollback(context.Background())
	}

	// Reset the tenant context before returning connection to pool
	_, _ = s.Conn.Exec(context.Background(), "RESET app.current_user_id")
	s.Conn.Release()
}

// Querier returns the open transaction when there is one, otherwise the connection.
func (s *TenantScope) Querier() Querier {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx != nil {
		return s.tx
	}
	return s.Conn
}

// Begin starts a transaction on the scope's connection. When a transaction is
// already open the returned transaction is a savepoint inside it, so callers
// can nest units of work without issuing a second BEGIN.
// Callers should defer Rollback; it is a no-op after Commit.
func (s *TenantScope) Begin(ctx context.Context) (pgx.Tx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tx != nil {
		return s.tx.Begin(ctx)
	}

	tx, err := s.Conn.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	s.tx = &scopeTx{Tx: tx, scope: s}
	return s.tx, nil
}

// InTx reports whether a transaction is open on the scope.
func (s *TenantScope) InTx() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx != nil
}

func (s *TenantScope) endTx(tx *scopeTx) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx == tx {
		s.tx = nil
	}
}

// scopeTx detaches itself from the scope once it finishes.
type scopeTx struct {
	pgx.Tx
	scope *TenantScope
}

// Commit refuses a cancelled context and rolls back instead, so a request that
// was abandoned part way never commits.
func (t *scopeTx) Commit(ctx context.Context) error {
	defer t.scope.endTx(t)
	if err := ctx.Err(); err != nil {
		_ = t.Tx.Rollback(context.WithoutCancel(ctx))
		return err
	}
	return t.Tx.Commit(ctx)
}

// Rollback ignores cancellation of ctx so the ROLLBACK is always sent and the
// connection goes back to the scope in a clean state.
func (t *scopeTx) Rollback(ctx context.Context) error {
	defer t.scope.endTx(t)
	return t.Tx.Rollback(context.WithoutCancel(ctx))
}

// HasColumn reports whether table.column exists in the current schema.
// The answer is cached for the lifetime of the scope.
func (s *TenantScope) HasColumn(ctx context.Context, table, column string) (bool, error) {
	key := table + "." + column

	s.mu.Lock()
	if exists, ok := s.columns[key]; ok {
		s.mu.Unlock()
		return exists, nil
	}
	s.mu.Unlock()

	var exists bool
	err := s.Querier().QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.columns
			WHERE table_schema = current_schema()
			  AND table_name = $1
			  AND column_name = $2
		)`, table, column).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to look up column %s: %w", key, err)
	}

	s.mu.Lock()
	if s.columns == nil {
		s.columns = make(map[string]bool)
	}
	s.columns[key] = exists
	s.mu.Unlock()

	return exists, nil
}

// WithTenant acquires a connection and sets the tenant context for RLS.
// The returned TenantScope MUST be closed with defer scope.Close().
func (db *DB) WithTenant(ctx context.Context, userID int64) (*TenantScope, error) {
	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	_, err = conn.Exec(ctx, "SELECT set_config('app.current_user_id', $1, false)", strconv.FormatInt(userID, 10))
	if err != nil {
		conn.Release()
		return nil, err
	}

	return &TenantScope{Conn: conn, UserID: userID}, nil
}

// WithoutTenant acquires a connection without tenant context.
// Use this for operator tooling that needs full access (e.g., test cleanup).
// The returned TenantScope MUST be closed with defer scope.Close().
func (db *DB) WithoutTenant(ctx context.Context) (*TenantScope, error) {
	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &TenantScope{Conn: conn}, nil
}
