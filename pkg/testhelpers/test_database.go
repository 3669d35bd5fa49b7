package testhelpers

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/floroz/commerce/internal/infra/database"
	"github.com/floroz/commerce/migrations"
)

// TestDatabase is a migrated Postgres container with a connection pool
type TestDatabase struct {
	Container *postgres.PostgresContainer
	Pool      *pgxpool.Pool
	ConnStr   string
}

// NewTestDatabase starts a Postgres container and applies the embedded migrations.
// Tests using it are skipped under -short.
func NewTestDatabase(t *testing.T) *TestDatabase {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("commerce_test"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err, "failed to start postgres container")

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")

	db, err := sql.Open("pgx", connStr)
	require.NoError(t, err, "failed to open sql db for migrations")
	defer db.Close()
	require.NoError(t, database.MigrateDB(ctx, db, migrations.FS, "up"), "failed to run migrations")

	pool, err := database.NewPool(ctx, connStr)
	require.NoError(t, err, "failed to connect to database")

	return &TestDatabase{
		Container: pgContainer,
		Pool:      pool,
		ConnStr:   connStr,
	}
}

// Close releases the pool and terminates the container
func (td *TestDatabase) Close() {
	td.Pool.Close()
	// Container shutdown failures are not test failures
	_ = td.Container.Terminate(context.Background())
}
