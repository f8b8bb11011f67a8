package storage

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestStore starts a PostgreSQL container, applies the migrations, and
// returns a Store ready for use. Cleanup is registered on t.
func setupTestStore(t *testing.T, ttl time.Duration) *Store {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("drinkexchange"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err, "failed to create pool")
	t.Cleanup(pool.Close)

	runMigrations(t, ctx, pool)

	return NewStore(pool, ttl)
}

// runMigrations applies the SQL files from migrations/ in name order.
func runMigrations(t *testing.T, ctx context.Context, pool *pgxpool.Pool) {
	t.Helper()

	migrationsDir := filepath.Join(findProjectRoot(t), "migrations")
	entries, err := os.ReadDir(migrationsDir)
	require.NoError(t, err, "failed to read migrations directory")

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ".sql" {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	for _, file := range files {
		sql, err := os.ReadFile(filepath.Join(migrationsDir, file))
		require.NoError(t, err, "failed to read migration file: %s", file)

		_, err = pool.Exec(ctx, string(sql))
		require.NoError(t, err, "failed to execute migration: %s", file)
	}
}

// findProjectRoot walks up from the current directory to find go.mod.
func findProjectRoot(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	require.NoError(t, err, "failed to get working directory")

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find project root (go.mod)")
		}
		dir = parent
	}
}

// seedMarket inserts an event, two drinks, and one pair, returning the ids.
func seedMarket(t *testing.T, store *Store, baseOne, baseTwo string) (eventID, pairID int64) {
	t.Helper()
	ctx := context.Background()

	ev, err := store.Create(ctx)
	require.NoError(t, err)

	var drinkOneID, drinkTwoID int64
	row := store.pool.QueryRow(ctx,
		`INSERT INTO drinks (name, base_price) VALUES ($1, $2) RETURNING id;`, "mojito", baseOne)
	require.NoError(t, row.Scan(&drinkOneID))
	row = store.pool.QueryRow(ctx,
		`INSERT INTO drinks (name, base_price) VALUES ($1, $2) RETURNING id;`, "paloma", baseTwo)
	require.NoError(t, row.Scan(&drinkTwoID))

	row = store.pool.QueryRow(ctx,
		`INSERT INTO pairs (event_id, drink_one_id, drink_two_id,
		    inc_one, sub_one, floor_one, inc_two, sub_two, floor_two)
		 VALUES ($1, $2, $3, '1', '0.5', '2', '1', '0.5', '2')
		 RETURNING id;`, ev.ID, drinkOneID, drinkTwoID)
	require.NoError(t, row.Scan(&pairID))

	return ev.ID, pairID
}

func mustDecimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
