// Package databasetest provides migrated throwaway stores for tests.
package databasetest

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"library_lending/internal/platform/config"
	"library_lending/internal/platform/database"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// NewSQLiteStore returns a migrated SQLite store in a temporary directory.
// The store is closed when the test finishes.
func NewSQLiteStore(t testing.TB) *database.Store {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "library_test.db")
	return open(t, config.DriverSQLite, dsn)
}

// NewPostgresStore returns a migrated store in a fresh schema of the
// database named by TEST_POSTGRES_DSN, and skips the test when it is unset.
// The schema is dropped when the test finishes.
func NewPostgresStore(t testing.TB) *database.Store {
	t.Helper()
	base := os.Getenv("TEST_POSTGRES_DSN")
	if base == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}

	schema := "test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	admin, err := sqlx.Open("pgx", base)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	t.Cleanup(func() { admin.Close() })
	if _, err := admin.Exec("CREATE SCHEMA " + schema); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	t.Cleanup(func() {
		if _, err := admin.Exec("DROP SCHEMA " + schema + " CASCADE"); err != nil {
			t.Logf("drop schema %s: %v", schema, err)
		}
	})

	return open(t, config.DriverPostgres, withSearchPath(base, schema))
}

func open(t testing.TB, driver, dsn string) *database.Store {
	t.Helper()
	log := zap.NewNop()

	if err := database.Migrate(driver, dsn, log); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	store, err := database.Connect(context.Background(), driver, dsn, log)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// withSearchPath points a URL or keyword/value DSN at schema.
func withSearchPath(dsn, schema string) string {
	if !strings.Contains(dsn, "://") {
		return dsn + " search_path=" + schema
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return dsn + "?search_path=" + schema
	}
	q := u.Query()
	q.Set("search_path", schema)
	u.RawQuery = q.Encode()
	return u.String()
}
