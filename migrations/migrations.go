// Package migrations embeds the SQL schema applied by the sample store.
// One statement per file; both the sqlite3 and the pgx driver accept the
// statements as written.
package migrations

import "embed"

//go:embed *.sql
var Files embed.FS
