// Package sync drives per-repository synchronisation: fetch index, diff
// against the catalog, download new blobs, commit transactionally
// (spec.md §4.5).
package sync

import (
	"context"
	"hash/fnv"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/slauger/chantal"
)

// Release unlocks and, for a PGLocker, returns the borrowed connection to
// the pool.
type Release func()

// Locker serialises concurrent syncs of the same repository. PGLocker is
// the production implementation; tests and the CLI without -dsn substitute
// NoopLocker.
type Locker interface {
	TryLock(ctx context.Context, repositoryID string) (release Release, ok bool, err error)
}

// PGLocker implements Locker with a Postgres session-level advisory lock,
// the idiomatic pgx/v5 replacement for internal/distlock's guard+request-pool
// machinery: distlock exists to multiplex many logical locks over one
// long-lived connection it manages itself, a problem pgxpool.Pool already
// solves by handing out connections from its own pool, so TryLock here just
// borrows a pooled connection for the lock's lifetime instead of
// reimplementing connection management.
type PGLocker struct {
	pool *pgxpool.Pool
}

func NewLocker(pool *pgxpool.Pool) *PGLocker { return &PGLocker{pool: pool} }

// TryLock attempts to acquire the advisory lock for repositoryID without
// blocking. ok is false if another sync already holds it.
func (l *PGLocker) TryLock(ctx context.Context, repositoryID string) (release Release, ok bool, err error) {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, false, &chantal.Error{Op: "sync.TryLock", Kind: chantal.ErrIO, Inner: err}
	}
	key := lockKey(repositoryID)

	var locked bool
	if err := conn.QueryRow(ctx, "select pg_try_advisory_lock($1)", key).Scan(&locked); err != nil {
		conn.Release()
		return nil, false, &chantal.Error{Op: "sync.TryLock", Kind: chantal.ErrIO, Inner: err}
	}
	if !locked {
		conn.Release()
		return nil, false, nil
	}

	return func() {
		conn.Exec(context.Background(), "select pg_advisory_unlock($1)", key)
		conn.Release()
	}, true, nil
}

// NoopLocker never contends: every TryLock succeeds immediately. Used by
// the CLI when no -dsn is given (paired with memcatalog) and by unit tests that
// exercise the Engine without a Postgres instance.
type NoopLocker struct{}

func (NoopLocker) TryLock(ctx context.Context, repositoryID string) (Release, bool, error) {
	return func() {}, true, nil
}

// lockKey derives a stable int64 advisory lock key from a repository id.
// Postgres advisory lock keys are a signed bigint; a wrapped fnv hash is
// fine since uniqueness, not ordering, is all that's required.
func lockKey(repositoryID string) int64 {
	h := fnv.New64a()
	h.Write([]byte(repositoryID))
	return int64(h.Sum64())
}
