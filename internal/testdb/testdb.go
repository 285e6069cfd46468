// Package testdb connects integration tests to a PostgreSQL database.
//
// Tests call Open, which skips the test when no database is configured, or
// fails it when running in CI, where a database is always expected.
package testdb

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/phrazzld/dataset-forge/internal/platform/logger"
	"github.com/phrazzld/dataset-forge/internal/platform/postgres"
)

// Environment variables checked by URL, in order.
const (
	EnvTestDatabaseURL = "FORGE_TEST_DATABASE_URL"
	EnvDatabaseURL     = "DATABASE_URL"
)

// URL returns the test database URL or "" when none is configured.
func URL() string {
	for _, name := range []string{EnvTestDatabaseURL, EnvDatabaseURL} {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

// IsCI reports whether the tests run under a CI system.
func IsCI() bool {
	for _, name := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "CIRCLECI"} {
		if os.Getenv(name) != "" {
			return true
		}
	}
	return false
}

// Open connects to the test database and applies migrations. The
// connection is closed when the test ends.
func Open(t *testing.T) *sql.DB {
	t.Helper()

	url := URL()
	if url == "" {
		if IsCI() {
			t.Fatalf("%s must be set in CI", EnvTestDatabaseURL)
		}
		t.Skipf("%s not set, skipping PostgreSQL integration test", EnvTestDatabaseURL)
	}

	ctx := context.Background()
	db, err := postgres.Open(ctx, url, 4)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := postgres.Migrate(ctx, db, logger.Discard()); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

// CleanupProject deletes the tasks of projectID when the test ends, so
// tests sharing a database can each use their own project.
func CleanupProject(t *testing.T, db *sql.DB, projectID string) {
	t.Helper()
	t.Cleanup(func() {
		if _, err := db.ExecContext(context.Background(),
			`DELETE FROM tasks WHERE project_id = $1`, projectID); err != nil {
			t.Errorf("failed to clean up project %s: %v", projectID, err)
		}
	})
}
