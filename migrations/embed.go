// Package migrations embeds the SQL migrations of the local indicator store.
// Migrations are embedded so they work regardless of working directory.
package migrations

import "embed"

// FS is the embedded migrations filesystem.
// Files are applied in name order (001_indicators.sql, 002_...).
//
//go:embed *.sql
var FS embed.FS
