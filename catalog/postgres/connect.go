// Package postgres is the production Catalog implementation: pgx/v5 +
// pgxpool for connection pooling, goqu for query construction, and
// remind101/migrate for schema migration (SPEC_FULL.md §11).
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/slauger/chantal/internal/poolstats"
)

// Connect parses connString, opens a pgxpool.Pool sized for the catalog's
// expected concurrency, and registers pool metrics under applicationName.
func Connect(ctx context.Context, connString, applicationName string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("catalog/postgres: parsing connection string: %w", err)
	}
	cfg.MaxConns = 30
	const appnameKey = "application_name"
	if _, ok := cfg.ConnConfig.RuntimeParams[appnameKey]; !ok {
		cfg.ConnConfig.RuntimeParams[appnameKey] = applicationName
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("catalog/postgres: creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("catalog/postgres: pinging database: %w", err)
	}

	if err := prometheus.Register(poolstats.NewCollector(pool, applicationName)); err != nil {
		// Connect may be called more than once in tests; a duplicate
		// registration isn't fatal.
	}

	return pool, nil
}
