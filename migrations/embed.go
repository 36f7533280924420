// Package migrations embeds SQL migration files into the binary.
//
// The beeper runs from a single self-contained executable on the device,
// so the schema ships inside it rather than alongside it.
package migrations

import (
	"embed"

	"github.com/nerrad567/beeper-core/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	// Register embedded migrations with the database package.
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "." // Files are at root of embedded FS
}
