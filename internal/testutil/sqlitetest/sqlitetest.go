// Package sqlitetest opens a migrated in-memory SQLite catalog for tests.
package sqlitetest

import (
	"context"
	"database/sql"
	"testing"

	"github.com/dmitrijs2005/vidkeeper/internal/migrations"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// Open returns an in-memory catalog with every migration applied. The pool
// is pinned to one connection so the database survives between statements.
func Open(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	goose.SetBaseFS(migrations.Migrations)
	goose.SetLogger(goose.NopLogger())
	require.NoError(t, goose.SetDialect("sqlite3"))
	require.NoError(t, goose.UpContext(context.Background(), db, migrations.Dir("sqlite3")))
	return db
}
