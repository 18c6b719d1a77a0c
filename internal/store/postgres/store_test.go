package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"movierental/internal/store"
	"movierental/internal/store/storetest"
)

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// setupTestDB connects to PostgreSQL and skips the test when no server is
// reachable. Every call starts from empty tables.
func setupTestDB(t *testing.T) store.Store {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		dsn = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			getenv("PGHOST", "localhost"), getenv("PGPORT", "5432"), getenv("PGUSER", "user"),
			getenv("PGPASSWORD", "password"), getenv("PGDATABASE", "testdb"))
	}

	s, err := Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	if err := s.Ping(ctx); err != nil {
		t.Skipf("skipping postgres tests: could not connect: %v", err)
	}
	require.NoError(t, s.Migrate(ctx))
	_, err = s.DB().ExecContext(ctx,
		`TRUNCATE TABLE rental_events, rentals, late_fees, titles, pricing_categories RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
	return s
}

func TestConformance(t *testing.T) {
	storetest.Run(t, setupTestDB)
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := setupTestDB(t).(*Store)
	require.NoError(t, s.Migrate(context.Background()))

	var n int
	require.NoError(t, s.DB().QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&n))
	require.Equal(t, len(migrations), n)
}
