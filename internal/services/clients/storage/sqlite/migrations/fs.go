// Package migrations embeds the clients store schema migrations.
package migrations

import "embed"

// FS holds the ordered SQL migration files for the clients store.
//
//go:embed *.sql
var FS embed.FS
