package postgres

import (
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// postgresUniqueViolation is PostgreSQL's SQLSTATE for unique_violation.
const postgresUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == postgresUniqueViolation
}

// timePtr returns nil for a zero time.Time so it lands as SQL NULL, and a
// pointer to t otherwise. Catalog columns that aren't always set (LastSyncAt,
// PublishedAt, FinishedAt) use this at the INSERT/UPDATE boundary.
func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// derefTime is timePtr's inverse for the SELECT boundary.
func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
