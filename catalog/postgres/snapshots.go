package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/slauger/chantal"
)

// CreateSnapshot is run through Transaction by the Snapshot Manager so the
// insert here lands atomically with whatever package bookkeeping the caller
// does in the same callback (spec.md §4.2, §4.6).
func (s *Store) CreateSnapshot(ctx context.Context, repositoryID, name string, packageIDs []chantal.Digest) (chantal.Snapshot, error) {
	ids := make([]string, len(packageIDs))
	for i, d := range packageIDs {
		ids[i] = d.String()
	}

	var totalSize int64
	if len(ids) > 0 {
		const sizeQ = `SELECT coalesce(sum(size), 0) FROM package WHERE sha256 = ANY($1);`
		if err := s.q.QueryRow(ctx, sizeQ, ids).Scan(&totalSize); err != nil {
			return chantal.Snapshot{}, &chantal.Error{Op: "postgres.CreateSnapshot", Kind: chantal.ErrIO, Inner: err}
		}
	}

	snap := chantal.Snapshot{
		RepositoryID:   repositoryID,
		Name:           name,
		CreatedAt:      time.Now(),
		PackageIDs:     packageIDs,
		PackageCount:   len(packageIDs),
		TotalSizeBytes: totalSize,
	}
	const q = `
INSERT INTO snapshot (id, repository_id, name, created_at, package_ids, package_count, total_size_bytes)
VALUES (gen_random_uuid()::text, $1, $2, $3, $4, $5, $6)
RETURNING id;
`
	if err := s.q.QueryRow(ctx, q, repositoryID, name, snap.CreatedAt, ids, snap.PackageCount, snap.TotalSizeBytes).Scan(&snap.ID); err != nil {
		if isUniqueViolation(err) {
			return chantal.Snapshot{}, &chantal.Error{Op: "postgres.CreateSnapshot", Kind: chantal.ErrConflict,
				Message: "snapshot name already used for this repository"}
		}
		return chantal.Snapshot{}, &chantal.Error{Op: "postgres.CreateSnapshot", Kind: chantal.ErrIO, Inner: err}
	}
	return snap, nil
}

func (s *Store) GetSnapshot(ctx context.Context, id string) (chantal.Snapshot, error) {
	const q = `
SELECT id, repository_id, name, created_at, package_ids, package_count, total_size_bytes, published_at, published_path
FROM snapshot WHERE id = $1;
`
	snap, err := scanSnapshot(s.q.QueryRow(ctx, q, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return chantal.Snapshot{}, &chantal.Error{Op: "postgres.GetSnapshot", Kind: chantal.ErrNotFound, Message: id}
		}
		return chantal.Snapshot{}, &chantal.Error{Op: "postgres.GetSnapshot", Kind: chantal.ErrIO, Inner: err}
	}
	return snap, nil
}

func (s *Store) ListSnapshots(ctx context.Context, repositoryID string) ([]chantal.Snapshot, error) {
	q := `
SELECT id, repository_id, name, created_at, package_ids, package_count, total_size_bytes, published_at, published_path
FROM snapshot`
	args := []any{}
	if repositoryID != "" {
		q += ` WHERE repository_id = $1`
		args = append(args, repositoryID)
	}
	q += ` ORDER BY created_at;`

	rows, err := s.q.Query(ctx, q, args...)
	if err != nil {
		return nil, &chantal.Error{Op: "postgres.ListSnapshots", Kind: chantal.ErrIO, Inner: err}
	}
	defer rows.Close()

	var out []chantal.Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, &chantal.Error{Op: "postgres.ListSnapshots", Kind: chantal.ErrIO, Inner: err}
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

func (s *Store) DeleteSnapshot(ctx context.Context, id string) error {
	snap, err := s.GetSnapshot(ctx, id)
	if err != nil {
		return err
	}
	if snap.IsPublished() {
		return &chantal.Error{Op: "postgres.DeleteSnapshot", Kind: chantal.ErrStillReferenced, Message: "snapshot is published"}
	}
	const q = `DELETE FROM snapshot WHERE id = $1;`
	if _, err := s.q.Exec(ctx, q, id); err != nil {
		return &chantal.Error{Op: "postgres.DeleteSnapshot", Kind: chantal.ErrIO, Inner: err}
	}
	return nil
}

func (s *Store) MarkSnapshotPublished(ctx context.Context, id, path string, at time.Time) error {
	const q = `UPDATE snapshot SET published_at = $2, published_path = $3 WHERE id = $1;`
	if _, err := s.q.Exec(ctx, q, id, at, path); err != nil {
		return &chantal.Error{Op: "postgres.MarkSnapshotPublished", Kind: chantal.ErrIO, Inner: err}
	}
	return nil
}

func scanSnapshot(row rowScanner) (chantal.Snapshot, error) {
	var (
		snap         chantal.Snapshot
		ids          []string
		publishedAt  *time.Time
	)
	if err := row.Scan(&snap.ID, &snap.RepositoryID, &snap.Name, &snap.CreatedAt, &ids, &snap.PackageCount, &snap.TotalSizeBytes, &publishedAt, &snap.PublishedPath); err != nil {
		return chantal.Snapshot{}, err
	}
	snap.PackageIDs = make([]chantal.Digest, 0, len(ids))
	for _, raw := range ids {
		d, err := chantal.ParseDigest(raw)
		if err != nil {
			return chantal.Snapshot{}, err
		}
		snap.PackageIDs = append(snap.PackageIDs, d)
	}
	snap.PublishedAt = derefTime(publishedAt)
	return snap, nil
}
