package db

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// LockExecer is the minimal surface the advisory lock helper needs.
// pgx.Tx, *pgxpool.Conn and *pgxpool.Pool all satisfy it.
type LockExecer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// LockKey derives a 64-bit advisory lock key from a namespace and the
// identifiers that scope the lock. FNV-1a gives a stable mapping from the
// logical key to the int64 space pg_advisory_xact_lock expects.
func LockKey(namespace string, ids ...uuid.UUID) int64 {
	h := fnv.New64a()
	h.Write([]byte(namespace))
	for _, id := range ids {
		h.Write([]byte(":"))
		h.Write([]byte(id.String()))
	}
	return int64(h.Sum64())
}

// AcquireTxLock takes a transaction-scoped advisory lock on the given key.
// The lock is released automatically at commit or rollback. The executor
// must be a transaction; calling this outside a transaction would hold the
// lock for the life of the session.
func AcquireTxLock(ctx context.Context, q LockExecer, key int64) error {
	if _, err := q.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", key); err != nil {
		return fmt.Errorf("acquire advisory lock %d: %w", key, err)
	}
	return nil
}
