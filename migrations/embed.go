// Package migrations contains the embedded PostgreSQL schema migrations.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
