// Package migrations embeds the SQL schema applied by cmd/migrate.
package migrations

import "embed"

//go:embed sql/*.sql
var FS embed.FS

// Dir is the path of the migration files inside FS.
const Dir = "sql"
