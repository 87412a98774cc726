// Package migrations embeds the postgres schema for the server and integration tests.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
