// Package migrations carries the SQL schema files applied by goose at
// startup. Files are named <timestamp>_<description>.sql and run in
// timestamp order.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
