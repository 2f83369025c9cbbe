//go:build integration

package database_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/recipe-costing/pkg/database"
	"github.com/ekaya-inc/recipe-costing/pkg/testhelpers"
)

// scratchDatabase creates an empty database owned by a fresh user and drops
// both when the test finishes. grantSchema controls CREATE on schema public.
func scratchDatabase(t *testing.T, name string, grantSchema bool) string {
	t.Helper()
	testDB := testhelpers.GetTestDB(t)
	ctx := context.Background()

	user := name + "_user"
	const password = "test_password"

	_, _ = testDB.Pool.Exec(ctx, "DROP DATABASE IF EXISTS "+name)
	_, _ = testDB.Pool.Exec(ctx, "DROP USER IF EXISTS "+user)

	_, err := testDB.Pool.Exec(ctx, "CREATE DATABASE "+name)
	require.NoError(t, err, "Failed to create scratch database")
	_, err = testDB.Pool.Exec(ctx, "CREATE USER "+user+" WITH PASSWORD '"+password+"'")
	require.NoError(t, err, "Failed to create scratch user")
	_, err = testDB.Pool.Exec(ctx, "GRANT CONNECT ON DATABASE "+name+" TO "+user)
	require.NoError(t, err)

	host, err := testDB.Container.Host(ctx)
	require.NoError(t, err)
	port, err := testDB.Container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	if grantSchema {
		superDB, err := sql.Open("pgx", fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
			testhelpers.TestDBUser, testhelpers.TestDBPassword, host, port.Port(), name))
		require.NoError(t, err)
		_, err = superDB.Exec("GRANT ALL ON SCHEMA public TO " + user)
		_ = superDB.Close()
		require.NoError(t, err, "Failed to grant schema privileges")
	}

	t.Cleanup(func() {
		_, _ = testDB.Pool.Exec(ctx, `
			SELECT pg_terminate_backend(pid)
			FROM pg_stat_activity
			WHERE datname = $1 AND pid <> pg_backend_pid()
		`, name)
		time.Sleep(100 * time.Millisecond)
		_, _ = testDB.Pool.Exec(ctx, "DROP DATABASE IF EXISTS "+name)
		_, _ = testDB.Pool.Exec(ctx, "DROP USER IF EXISTS "+user)
	})

	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable&statement_timeout=5000",
		user, password, host, port.Port(), name)
}

func Test_Migrations_FailFastWithoutSchemaPermissions(t *testing.T) {
	connStr := scratchDatabase(t, "test_migration_perms", false)

	db, err := sql.Open("pgx", connStr)
	require.NoError(t, err)
	defer db.Close()

	done := make(chan error, 1)
	go func() {
		done <- database.RunMigrations(db, zap.NewNop())
	}()

	select {
	case err := <-done:
		require.Error(t, err, "Migrations should fail with insufficient permissions")
		assert.Contains(t, err.Error(), "permission denied")
	case <-time.After(30 * time.Second):
		t.Fatal("TIMEOUT: migrations hung instead of failing with a permission error")
	}
}

func Test_Migrations_UpAndDownToLegacySchema(t *testing.T) {
	connStr := scratchDatabase(t, "test_migration_versions", true)

	db, err := sql.Open("pgx", connStr)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, database.RunMigrations(db, zap.NewNop()))
	// Second run is a no-op
	require.NoError(t, database.RunMigrations(db, zap.NewNop()))

	hasChefNotes := func() bool {
		var exists bool
		err := db.QueryRow(`
			SELECT EXISTS (
				SELECT 1 FROM information_schema.columns
				WHERE table_name = 'recipes' AND column_name = 'chef_notes'
			)`).Scan(&exists)
		require.NoError(t, err)
		return exists
	}

	assert.True(t, hasChefNotes(), "chef_notes should exist at head")

	require.NoError(t, database.MigrateTo(db, 1, zap.NewNop()))
	assert.False(t, hasChefNotes(), "chef_notes should be gone at version 1")

	require.NoError(t, database.RunMigrations(db, zap.NewNop()))
	assert.True(t, hasChefNotes())
}
