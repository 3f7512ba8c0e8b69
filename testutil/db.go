// Package testutil holds helpers shared by package tests.
package testutil

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/onnwee/queuebot/db"
)

// SetupTestDB returns a migrated database that is closed when the test ends.
// It uses a private in-memory sqlite database unless TEST_PG_DSN points at a
// postgres instance, in which case the queue tables are emptied first.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	driver, dsn := db.DriverSQLite, ":memory:"
	if pg := os.Getenv("TEST_PG_DSN"); pg != "" {
		driver, dsn = db.DriverPostgres, pg
	}
	database, err := db.Connect(driver, dsn)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	ctx := context.Background()
	if err := db.Migrate(ctx, database, driver); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	if driver == db.DriverPostgres {
		for _, table := range []string{"queue_members", "queue_blacklist", "queues", "oauth_tokens"} {
			if _, err := database.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				t.Fatalf("failed to reset %s: %v", table, err)
			}
		}
	}
	return database
}
