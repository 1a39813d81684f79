// Package migrations embeds SQL migration files into the binary.
//
// Files are grouped per SQL dialect (sqlite/, postgres/) and registered
// with the database package on import.
package migrations

import (
	"embed"

	"github.com/nerrad567/gray-twin-core/internal/infrastructure/database"
)

//go:embed sqlite/*.sql postgres/*.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
