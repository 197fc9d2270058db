// Package repomanager opens the catalog database, runs the embedded goose
// migrations and hands out dialect-aware repositories.
package repomanager

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/vidkeeper/internal/dbx"
	"github.com/dmitrijs2005/vidkeeper/internal/migrations"
	"github.com/dmitrijs2005/vidkeeper/internal/repositories/artifacts"
	"github.com/dmitrijs2005/vidkeeper/internal/repositories/auditlog"
	"github.com/dmitrijs2005/vidkeeper/internal/repositories/preferences"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// sqlitePragmas apply to every pooled SQLite connection: WAL lets the
// retention process read while the worker writes, busy_timeout waits out the
// other writer instead of failing with SQLITE_BUSY.
const sqlitePragmas = "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"

// SQLRepositoryManager serves SQLite and PostgreSQL catalogs.
type SQLRepositoryManager struct {
	dialect dbx.Dialect
}

// NewSQLRepositoryManager constructs a manager for the given dialect.
func NewSQLRepositoryManager(dialect dbx.Dialect) *SQLRepositoryManager {
	return &SQLRepositoryManager{dialect: dialect}
}

func (m *SQLRepositoryManager) Dialect() dbx.Dialect { return m.dialect }

// Artifacts returns an artifacts.Repository bound to db.
func (m *SQLRepositoryManager) Artifacts(db dbx.DBTX) artifacts.Repository {
	return artifacts.NewSQLRepository(db, m.dialect)
}

// AuditLog returns an auditlog.Repository bound to db.
func (m *SQLRepositoryManager) AuditLog(db dbx.DBTX) auditlog.Repository {
	return auditlog.NewSQLRepository(db, m.dialect)
}

// Preferences returns a preferences.Repository bound to db.
func (m *SQLRepositoryManager) Preferences(db dbx.DBTX) preferences.Repository {
	return preferences.NewSQLRepository(db, m.dialect)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations applies the embedded migrations for the manager's dialect.
func (m *SQLRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect(m.dialect.Goose()); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, db, migrations.Dir(m.dialect.Goose())); err != nil {
		return fmt.Errorf("migrate %s catalog: %w", m.dialect, err)
	}
	return nil
}

// Open connects to the catalog and verifies the connection. For SQLite the
// parent directory of the database file is created when missing.
func Open(ctx context.Context, driver, dsn string) (*sql.DB, dbx.Dialect, error) {
	dialect, err := dbx.DialectFor(driver)
	if err != nil {
		return nil, 0, err
	}

	driverName := "pgx"
	if dialect == dbx.SQLite {
		driverName = "sqlite"
		if err := ensureParentDir(dsn); err != nil {
			return nil, 0, err
		}
		dsn = withPragmas(dsn)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, 0, fmt.Errorf("open catalog: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, 0, fmt.Errorf("ping catalog: %w", err)
	}
	return db, dialect, nil
}

func withPragmas(dsn string) string {
	if strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + sqlitePragmas
}

func ensureParentDir(dsn string) error {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" || strings.HasPrefix(path, ":memory:") {
		return nil
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create catalog directory %s: %w", dir, err)
	}
	return nil
}
