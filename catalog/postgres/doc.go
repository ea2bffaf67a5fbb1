// Package postgres implements catalog.Catalog against PostgreSQL, using
// pgx/v5 + pgxpool for the connection pool, goqu for query construction on
// the filtered list paths, and remind101/migrate for schema evolution.
package postgres
