// Package migrations embeds the SQL schema applied by database.Migrator
package migrations

import "embed"

// FS holds the NNN_name.sql migration files
//
//go:embed *.sql
var FS embed.FS
