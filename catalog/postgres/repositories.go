package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/slauger/chantal"
)

func (s *Store) UpsertRepository(ctx context.Context, r chantal.Repository) error {
	const q = `
INSERT INTO repository (id, name, family, url, auth_ref, enabled, last_sync_at, last_sync_status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO UPDATE SET
    name = EXCLUDED.name,
    family = EXCLUDED.family,
    url = EXCLUDED.url,
    auth_ref = EXCLUDED.auth_ref,
    enabled = EXCLUDED.enabled,
    last_sync_at = EXCLUDED.last_sync_at,
    last_sync_status = EXCLUDED.last_sync_status;
`
	_, err := s.q.Exec(ctx, q, r.ID, r.Name, string(r.Family), r.URL, r.AuthRef, r.Enabled, timePtr(r.LastSyncAt), r.LastSyncStatus)
	if err != nil {
		return &chantal.Error{Op: "postgres.UpsertRepository", Kind: chantal.ErrIO, Inner: err}
	}
	return nil
}

func (s *Store) GetRepository(ctx context.Context, id string) (chantal.Repository, error) {
	const q = `
SELECT id, name, family, url, auth_ref, enabled, last_sync_at, last_sync_status
FROM repository WHERE id = $1;
`
	r, err := scanRepository(s.q.QueryRow(ctx, q, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return chantal.Repository{}, &chantal.Error{Op: "postgres.GetRepository", Kind: chantal.ErrNotFound, Message: id}
		}
		return chantal.Repository{}, &chantal.Error{Op: "postgres.GetRepository", Kind: chantal.ErrIO, Inner: err}
	}
	return r, nil
}

func (s *Store) ListRepositories(ctx context.Context) ([]chantal.Repository, error) {
	const q = `
SELECT id, name, family, url, auth_ref, enabled, last_sync_at, last_sync_status
FROM repository ORDER BY id;
`
	rows, err := s.q.Query(ctx, q)
	if err != nil {
		return nil, &chantal.Error{Op: "postgres.ListRepositories", Kind: chantal.ErrIO, Inner: err}
	}
	defer rows.Close()

	var out []chantal.Repository
	for rows.Next() {
		r, err := scanRepository(rows)
		if err != nil {
			return nil, &chantal.Error{Op: "postgres.ListRepositories", Kind: chantal.ErrIO, Inner: err}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) SetIndexValidator(ctx context.Context, repositoryID, validator string) error {
	const q = `UPDATE repository SET index_validator = $2 WHERE id = $1;`
	if _, err := s.q.Exec(ctx, q, repositoryID, validator); err != nil {
		return &chantal.Error{Op: "postgres.SetIndexValidator", Kind: chantal.ErrIO, Inner: err}
	}
	return nil
}

func (s *Store) IndexValidator(ctx context.Context, repositoryID string) (string, error) {
	const q = `SELECT index_validator FROM repository WHERE id = $1;`
	var v string
	if err := s.q.QueryRow(ctx, q, repositoryID).Scan(&v); err != nil {
		if err == pgx.ErrNoRows {
			return "", &chantal.Error{Op: "postgres.IndexValidator", Kind: chantal.ErrNotFound, Message: repositoryID}
		}
		return "", &chantal.Error{Op: "postgres.IndexValidator", Kind: chantal.ErrIO, Inner: err}
	}
	return v, nil
}

// rowScanner is satisfied by both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRepository(row rowScanner) (chantal.Repository, error) {
	var (
		r        chantal.Repository
		family   string
		lastSync *time.Time
	)
	if err := row.Scan(&r.ID, &r.Name, &family, &r.URL, &r.AuthRef, &r.Enabled, &lastSync, &r.LastSyncStatus); err != nil {
		return chantal.Repository{}, err
	}
	r.Family = chantal.Family(family)
	r.LastSyncAt = derefTime(lastSync)
	return r, nil
}
