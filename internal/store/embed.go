package store

import "embed"

// MigrationFS holds the SQL migrations for the postgres document store.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
