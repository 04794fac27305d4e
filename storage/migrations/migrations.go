// Package migrations registers the relational schema with bun's migrator.
package migrations

import (
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/migrate"
)

// Migrations is the ordered set of schema migrations.
var Migrations = migrate.NewMigrations()

// IsSQLite checks if the database is SQLite.
func IsSQLite(db bun.IDB) bool {
	return db.Dialect().Name() == dialect.SQLite
}
