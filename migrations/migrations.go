// migrations содержит SQL-миграции схемы PostgreSQL, встроенные в бинарник.
package migrations

import "embed"

// FS — встроенные файлы миграций (формат golang-migrate: N_name.up/down.sql).
//
//go:embed *.sql
var FS embed.FS
