package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/remind101/migrate"

	"github.com/slauger/chantal/catalog"
	"github.com/slauger/chantal/catalog/postgres/migrations"
)

// conn is satisfied by both *pgxpool.Pool and pgx.Tx, letting every query
// method in this package run unchanged whether or not it's inside a
// Transaction.
type conn interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store is the production Catalog implementation. q is the connection every
// query method runs against: the pool itself, or an active transaction when
// Store was constructed by Transaction.
type Store struct {
	pool *pgxpool.Pool
	q    conn
}

// Open connects to connString, runs pending migrations, and returns a ready
// Store.
func Open(ctx context.Context, connString string) (*Store, error) {
	pool, err := Connect(ctx, connString, "chantal")
	if err != nil {
		return nil, err
	}
	if err := runMigrations(connString); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool, q: pool}, nil
}

// runMigrations applies the catalog's embedded migration stream using
// database/sql + pgx's stdlib driver, since remind101/migrate operates on
// *sql.DB rather than a pgx pool.
func runMigrations(connString string) error {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return fmt.Errorf("catalog/postgres: opening migration connection: %w", err)
	}
	defer db.Close()

	migrator := migrate.NewPostgresMigrator(db)
	migrator.SetTable(migrations.Table)
	if err := migrator.Exec(migrate.Up, migrations.Migrations...); err != nil {
		return fmt.Errorf("catalog/postgres: applying migrations: %w", err)
	}
	return nil
}

// Pool returns the underlying connection pool, for callers (sync.PGLocker)
// that need a pgxpool.Pool directly rather than the Catalog interface.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// Close releases the underlying connection pool. A Store handed to a
// Transaction callback shares its parent's pool and does nothing on Close;
// only the top-level Store returned by Open should be closed.
func (s *Store) Close() {
	if _, inTx := s.q.(pgx.Tx); inTx {
		return
	}
	if s.pool != nil {
		s.pool.Close()
	}
}

// Transaction runs fn with a Store whose queries run against a single pgx
// transaction, committing on success and rolling back on error or panic, per
// spec.md §4.2's requirement that multi-row mutations are atomic. Calling
// Transaction again on the Store handed to fn reuses the same transaction
// rather than opening a nested one.
func (s *Store) Transaction(ctx context.Context, fn func(ctx context.Context, tx catalog.Catalog) error) (err error) {
	if _, already := s.q.(pgx.Tx); already {
		return fn(ctx, s)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("catalog/postgres: beginning transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			tx.Rollback(ctx)
			return
		}
		err = tx.Commit(ctx)
	}()

	err = fn(ctx, &Store{pool: s.pool, q: tx})
	return err
}
