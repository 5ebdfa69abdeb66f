// Package db embeds the SQL migration files so the binary is self-contained.
package db

import "embed"

//go:embed migrations/*.sql
var MigrationsFS embed.FS
