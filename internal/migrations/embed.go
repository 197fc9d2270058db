// Package migrations embeds the goose SQL migrations for both catalog
// dialects. Each dialect lives in its own directory of the embedded FS.
package migrations

import "embed"

//go:embed postgres/*.sql sqlite/*.sql
var Migrations embed.FS

// Dir returns the migration directory for a goose dialect name.
func Dir(gooseDialect string) string {
	if gooseDialect == "sqlite3" {
		return "sqlite"
	}
	return "postgres"
}
