package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/vidkeeper/internal/dbx"
	"github.com/dmitrijs2005/vidkeeper/internal/repositories/artifacts"
	"github.com/dmitrijs2005/vidkeeper/internal/repositories/auditlog"
	"github.com/dmitrijs2005/vidkeeper/internal/repositories/preferences"
)

// RepositoryManager vends repositories bound to a handle (*sql.DB or *sql.Tx)
// and migrates the schema.
type RepositoryManager interface {
	Dialect() dbx.Dialect
	RunMigrations(context.Context, *sql.DB) error
	Artifacts(db dbx.DBTX) artifacts.Repository
	AuditLog(db dbx.DBTX) auditlog.Repository
	Preferences(db dbx.DBTX) preferences.Repository
}
