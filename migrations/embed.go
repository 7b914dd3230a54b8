// Package migrations embeds the SQLite schema applied at startup.
package migrations

import "embed"

// FS holds every NNN_name.sql migration file
//
//go:embed *.sql
var FS embed.FS
