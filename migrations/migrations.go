// Package migrations embeds wsdkit's schema migrations.
package migrations

import "embed"

//go:embed postgres/*.sql
var Postgres embed.FS
