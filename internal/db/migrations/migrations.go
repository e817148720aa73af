// Package migrations embeds the goose SQL migrations so the binary and the
// tests need no working-directory resolution.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
