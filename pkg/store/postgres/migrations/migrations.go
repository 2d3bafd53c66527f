// Package migrations embeds the SQL schema migrations for the capture
// store. Files follow golang-migrate naming: NNNNNN_name.up.sql /
// NNNNNN_name.down.sql.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
