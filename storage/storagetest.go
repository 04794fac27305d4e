package storage

import (
	"context"
	"fmt"
	"sync/atomic"
)

var memSeq atomic.Uint64

// OpenMemory opens a private, migrated in-memory SQLite database. It is meant
// for tests and local experiments.
func OpenMemory(ctx context.Context) (*Store, error) {
	dsn := fmt.Sprintf("file:linkauth-mem-%d?mode=memory&cache=shared", memSeq.Add(1))
	db, err := Open(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if _, err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return NewStore(db), nil
}
