// Package storage is the relational account store: users, credentials and
// OAuth links, persisted with bun on SQLite (default) or PostgreSQL.
//
// Unique constraint violations from either driver surface as
// account.ErrDuplicate and missing rows as account.ErrNotFound, so callers
// never inspect driver errors.
package storage
