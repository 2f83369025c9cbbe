package testhelpers

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver for database/sql (migrations)
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/ekaya-inc/recipe-costing/pkg/database"
)

const (
	// TestImage is the stock PostgreSQL image the integration tests run against.
	TestImage = "postgres:17-alpine"

	// TestDBUser is the container superuser. Migrations run as this user.
	TestDBUser = "recipe"
	// TestDBPassword is the password shared by every test role.
	TestDBPassword = "test_password"
	// TestDBName is the maintenance database created with the container.
	TestDBName = "test_data"

	// EngineDBName is the migrated database shared by repository, service and handler tests.
	EngineDBName = "recipe_costing_test"
	// AppRole is a non-superuser login so row level security applies to the tests.
	AppRole = "recipe_app"
)

// TestDB holds a shared test database container and connection pool.
type TestDB struct {
	Container testcontainers.Container
	Pool      *pgxpool.Pool
	ConnStr   string
}

var (
	sharedTestDB     *TestDB
	sharedTestDBOnce sync.Once
	sharedTestDBErr  error
)

// GetTestDB returns a shared PostgreSQL container for integration tests.
// The container is created once and reused across all tests in the run.
// Pool is connected as the superuser to the maintenance database.
func GetTestDB(t *testing.T) *TestDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedTestDBOnce.Do(func() {
		sharedTestDB, sharedTestDBErr = setupTestDB()
	})

	if sharedTestDBErr != nil {
		t.Fatalf("Failed to setup test database: %v", sharedTestDBErr)
	}

	return sharedTestDB
}

func setupTestDB() (*TestDB, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        TestImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       TestDBName,
			"POSTGRES_USER":     TestDBUser,
			"POSTGRES_PASSWORD": TestDBPassword,
		},
		// The entrypoint starts postgres twice: once for initdb, once for real.
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start test container: %w", err)
	}

	testDB := &TestDB{Container: container}
	testDB.ConnStr, err = testDB.URL(ctx, TestDBUser, TestDBName)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, testDB.ConnStr)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Verify connection with retry
	for i := 0; i < 10; i++ {
		if err := pool.Ping(ctx); err == nil {
			break
		}
		time.Sleep(500 * time.Millisecond)
	}

	testDB.Pool = pool
	return testDB, nil
}

// URL builds a connection string for user on database dbName inside the container.
func (d *TestDB) URL(ctx context.Context, user, dbName string) (string, error) {
	host, err := d.Container.Host(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get container host: %w", err)
	}

	port, err := d.Container.MappedPort(ctx, "5432")
	if err != nil {
		return "", fmt.Errorf("failed to get container port: %w", err)
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		user, TestDBPassword, host, port.Port(), dbName), nil
}

// EngineDB holds a migrated database. DB connects as AppRole, so tenant
// isolation is enforced by row level security the way it is in production.
// Admin connects as the superuser for DDL and fixtures that bypass RLS.
type EngineDB struct {
	DB      *database.DB
	Admin   *pgxpool.Pool
	ConnStr string
}

var (
	sharedEngineDB     *EngineDB
	sharedEngineDBOnce sync.Once
	sharedEngineDBErr  error
)

// GetEngineDB returns a shared engine database for integration tests.
// The database has migrations applied and is reused across all tests.
func GetEngineDB(t *testing.T) *EngineDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	// Ensure test container is running first
	testDB := GetTestDB(t)

	sharedEngineDBOnce.Do(func() {
		sharedEngineDB, sharedEngineDBErr = setupEngineDB(testDB, EngineDBName, 0)
	})

	if sharedEngineDBErr != nil {
		t.Fatalf("Failed to setup engine database: %v", sharedEngineDBErr)
	}

	return sharedEngineDB
}

// NewEngineDBAtVersion creates a private database migrated to exactly version
// and drops it when the test finishes. Version 0 means the latest schema.
func NewEngineDBAtVersion(t *testing.T, name string, version uint) *EngineDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	testDB := GetTestDB(t)
	engineDB, err := setupEngineDB(testDB, name, version)
	require.NoError(t, err, "Failed to setup database %s", name)

	t.Cleanup(func() {
		ctx := context.Background()
		engineDB.DB.Close()
		engineDB.Admin.Close()
		_, _ = testDB.Pool.Exec(ctx, `
			SELECT pg_terminate_backend(pid)
			FROM pg_stat_activity
			WHERE datname = $1 AND pid <> pg_backend_pid()
		`, name)
		_, _ = testDB.Pool.Exec(ctx, "DROP DATABASE IF EXISTS "+name)
	})

	return engineDB
}

func setupEngineDB(testDB *TestDB, name string, version uint) (*EngineDB, error) {
	ctx := context.Background()

	_, _ = testDB.Pool.Exec(ctx, "DROP DATABASE IF EXISTS "+name)
	if _, err := testDB.Pool.Exec(ctx, "CREATE DATABASE "+name); err != nil {
		return nil, fmt.Errorf("failed to create database %s: %w", name, err)
	}

	adminURL, err := testDB.URL(ctx, TestDBUser, name)
	if err != nil {
		return nil, err
	}

	// Run migrations using database/sql (required by golang-migrate)
	sqlDB, err := sql.Open("pgx", adminURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open sql connection: %w", err)
	}
	defer sqlDB.Close()

	if version == 0 {
		err = database.RunMigrations(sqlDB, zap.NewNop())
	} else {
		err = database.MigrateTo(sqlDB, version, zap.NewNop())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := grantAppRole(ctx, sqlDB); err != nil {
		return nil, err
	}

	appURL, err := testDB.URL(ctx, AppRole, name)
	if err != nil {
		return nil, err
	}

	db, err := database.NewConnection(ctx, &database.Config{
		URL:             appURL,
		MaxConnections:  5,
		ApplicationName: "recipe-costing-test",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to engine database: %w", err)
	}

	admin, err := pgxpool.New(ctx, adminURL)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create admin pool: %w", err)
	}

	return &EngineDB{
		DB:      db,
		Admin:   admin,
		ConnStr: appURL,
	}, nil
}

// grantAppRole creates the application login once per cluster and grants it
// DML on the freshly migrated database.
func grantAppRole(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		fmt.Sprintf(`DO $$ BEGIN
			IF NOT EXISTS (SELECT 1 FROM pg_roles WHERE rolname = '%s') THEN
				CREATE ROLE %s LOGIN PASSWORD '%s' NOSUPERUSER NOBYPASSRLS;
			END IF;
		END $$`, AppRole, AppRole, TestDBPassword),
		"GRANT USAGE ON SCHEMA public TO " + AppRole,
		"GRANT SELECT, INSERT, UPDATE, DELETE ON ALL TABLES IN SCHEMA public TO " + AppRole,
		"GRANT USAGE, SELECT ON ALL SEQUENCES IN SCHEMA public TO " + AppRole,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to grant %s: %w", AppRole, err)
		}
	}
	return nil
}

// PurgeTenant removes every row owned by userID, ledger rows included.
// Call it with defer at the start of a test that writes tenant data.
func PurgeTenant(t *testing.T, engineDB *EngineDB, userID int64) {
	t.Helper()
	ctx := context.Background()

	scope, err := engineDB.DB.WithoutTenant(ctx)
	if err != nil {
		t.Logf("Failed to acquire cleanup connection: %v", err)
		return
	}
	defer scope.Close()

	if _, err := database.PurgeTenant(ctx, scope, userID); err != nil {
		t.Logf("Failed to purge tenant %d: %v", userID, err)
	}
}

// TenantContext returns a context carrying a tenant scope for userID.
// The scope is closed when the test finishes.
func TenantContext(t *testing.T, engineDB *EngineDB, userID int64) context.Context {
	t.Helper()
	ctx := context.Background()

	scope, err := engineDB.DB.WithTenant(ctx, userID)
	require.NoError(t, err, "Failed to create tenant scope")
	t.Cleanup(scope.Close)

	return database.SetTenantScope(ctx, scope)
}
