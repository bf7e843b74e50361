package database

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"testing"
	"time"
)

// TestDatabaseURLEnv names the variable holding the integration test database URL
const TestDatabaseURLEnv = "STOCK_INSIGHTS_TEST_DATABASE_URL"

// SetupTestDB connects to the integration test database, skipping the test when none is configured
func SetupTestDB(t *testing.T) *DB {
	t.Helper()

	dsn := os.Getenv(TestDatabaseURLEnv)
	if dsn == "" {
		t.Skipf("Integration test - set %s to run", TestDatabaseURLEnv)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	db, err := NewDBFromDSN(ctx, dsn, 2)
	if err != nil {
		t.Fatalf("failed to create test database connection: %v", err)
	}

	if err := runMigrations(ctx, db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}
	if _, err := db.pool.Exec(ctx, "TRUNCATE "+SnapshotsTable); err != nil {
		db.Close()
		t.Fatalf("failed to truncate %s: %v", SnapshotsTable, err)
	}

	return db
}

// runMigrations applies every *.up.sql file under migrations/ in name order
func runMigrations(ctx context.Context, db *DB) error {
	_, file, _, _ := runtime.Caller(0)
	files, err := filepath.Glob(filepath.Join(filepath.Dir(file), "..", "..", "migrations", "*.up.sql"))
	if err != nil {
		return err
	}
	sort.Strings(files)

	for _, f := range files {
		stmt, err := os.ReadFile(f)
		if err != nil {
			return err
		}
		if _, err := db.pool.Exec(ctx, string(stmt)); err != nil {
			return err
		}
	}
	return nil
}

// TeardownTestDB truncates test tables and closes the pool
func TeardownTestDB(t *testing.T, db *DB) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := db.pool.Exec(ctx, "TRUNCATE "+SnapshotsTable); err != nil {
		t.Logf("warning: failed to truncate %s: %v", SnapshotsTable, err)
	}
	db.Close()
}
