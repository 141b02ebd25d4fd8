package relay

import (
	"embed"
	"io/fs"
)

// migrationsFS holds the relay event schema, with SQLite variants under
// data/sql/migrations/sqlite.
//
//go:embed data/sql/migrations/*.sql data/sql/migrations/sqlite/*.sql
var migrationsFS embed.FS

// GetMigrationsFS returns the full embedded migration tree.
func GetMigrationsFS() fs.FS {
	return migrationsFS
}

// GetCoreMigrationsFS returns the relay event schema migrations.
func GetCoreMigrationsFS() fs.FS {
	return migrationsFS
}
