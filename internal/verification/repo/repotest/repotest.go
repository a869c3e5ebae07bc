// Package repotest opens migrated in-memory databases for tests.
package repotest

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/DTBbuilds/SmartDuka-sub007/internal/verification/repo"
)

var seq atomic.Int64

// Open returns a fresh migrated SQLite database closed at test cleanup.
func Open(t testing.TB) *repo.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:verify_%d?mode=memory&cache=shared", seq.Add(1))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	wrapped := repo.Wrap(db, "sqlite")
	if err := repo.Migrate(context.Background(), wrapped); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return wrapped
}

// Exec runs a raw statement, failing the test on error.
func Exec(t testing.TB, db *repo.DB, query string, args ...interface{}) {
	t.Helper()
	if _, err := db.ExecContext(context.Background(), query, args...); err != nil {
		t.Fatalf("exec %q: %v", query, err)
	}
}
