package migrations

import "embed"

// FS holds the journal schema migrations.
//
//go:embed *.sql
var FS embed.FS
