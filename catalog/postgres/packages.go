package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/doug-martin/goqu/v8"

	"github.com/slauger/chantal"
	"github.com/slauger/chantal/catalog"
)

func (s *Store) UpsertPackage(ctx context.Context, p chantal.Package) error {
	meta, err := json.Marshal(p.FamilyMetadata)
	if err != nil {
		return &chantal.Error{Op: "postgres.UpsertPackage", Kind: chantal.ErrParse, Inner: err}
	}
	const q = `
INSERT INTO package (sha256, size, filename, repository_id, family, identity, family_metadata, is_live, first_seen_at, last_seen_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, true, $8, $9)
ON CONFLICT (sha256) DO UPDATE SET
    is_live = true,
    last_seen_at = EXCLUDED.last_seen_at;
`
	firstSeen := p.FirstSeenAt
	if firstSeen.IsZero() {
		firstSeen = time.Now()
	}
	lastSeen := p.LastSeenAt
	if lastSeen.IsZero() {
		lastSeen = firstSeen
	}
	_, err = s.q.Exec(ctx, q, p.SHA256.String(), p.Size, p.Filename, p.RepositoryID, string(p.Family), p.Identity(), meta, firstSeen, lastSeen)
	if err != nil {
		return &chantal.Error{Op: "postgres.UpsertPackage", Kind: chantal.ErrIO, Inner: err}
	}
	return nil
}

func (s *Store) LiveSet(ctx context.Context, repositoryID string) (map[string]chantal.Package, error) {
	const q = `
SELECT sha256, size, filename, repository_id, family, family_metadata, first_seen_at, last_seen_at
FROM package WHERE repository_id = $1 AND is_live;
`
	rows, err := s.q.Query(ctx, q, repositoryID)
	if err != nil {
		return nil, &chantal.Error{Op: "postgres.LiveSet", Kind: chantal.ErrIO, Inner: err}
	}
	defer rows.Close()

	out := make(map[string]chantal.Package)
	for rows.Next() {
		p, err := scanPackage(rows)
		if err != nil {
			return nil, &chantal.Error{Op: "postgres.LiveSet", Kind: chantal.ErrIO, Inner: err}
		}
		out[p.Identity()] = p
	}
	return out, rows.Err()
}

func (s *Store) MarkSeen(ctx context.Context, repositoryID string, identities []string, at time.Time) error {
	if len(identities) == 0 {
		return nil
	}
	const q = `UPDATE package SET last_seen_at = $3 WHERE repository_id = $1 AND identity = ANY($2);`
	if _, err := s.q.Exec(ctx, q, repositoryID, identities, at); err != nil {
		return &chantal.Error{Op: "postgres.MarkSeen", Kind: chantal.ErrIO, Inner: err}
	}
	return nil
}

func (s *Store) MarkNotLive(ctx context.Context, repositoryID string, identities []string) error {
	if len(identities) == 0 {
		return nil
	}
	const q = `UPDATE package SET is_live = false WHERE repository_id = $1 AND identity = ANY($2);`
	if _, err := s.q.Exec(ctx, q, repositoryID, identities); err != nil {
		return &chantal.Error{Op: "postgres.MarkNotLive", Kind: chantal.ErrIO, Inner: err}
	}
	return nil
}

func (s *Store) ListPackages(ctx context.Context, filter catalog.PackageFilter) ([]chantal.Package, error) {
	cols := []any{"p.sha256", "p.size", "p.filename", "p.repository_id", "p.family", "p.family_metadata", "p.first_seen_at", "p.last_seen_at"}
	query := dialect.From(goqu.T("package").As("p")).Select(cols...)

	switch {
	case filter.SnapshotID != "":
		query = dialect.From(goqu.T("package").As("p")).
			Select(cols...).
			InnerJoin(goqu.T("snapshot").As("sn"), goqu.On(goqu.L("p.sha256 = ANY(sn.package_ids)"))).
			Where(goqu.Ex{"sn.id": filter.SnapshotID})
	case filter.RepositoryID != "":
		query = query.Where(goqu.Ex{"p.repository_id": filter.RepositoryID, "p.is_live": true})
	}

	sqlStr, args, err := query.ToSQL()
	if err != nil {
		return nil, &chantal.Error{Op: "postgres.ListPackages", Kind: chantal.ErrIO, Inner: err}
	}

	rows, err := s.q.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, &chantal.Error{Op: "postgres.ListPackages", Kind: chantal.ErrIO, Inner: err}
	}
	defer rows.Close()

	var out []chantal.Package
	for rows.Next() {
		p, err := scanPackage(rows)
		if err != nil {
			return nil, &chantal.Error{Op: "postgres.ListPackages", Kind: chantal.ErrIO, Inner: err}
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) ReferenceCount(ctx context.Context, sha256 chantal.Digest) (int, error) {
	const q = `SELECT count(*) FROM snapshot WHERE $1 = ANY(package_ids);`
	var n int
	if err := s.q.QueryRow(ctx, q, sha256.String()).Scan(&n); err != nil {
		return 0, &chantal.Error{Op: "postgres.ReferenceCount", Kind: chantal.ErrIO, Inner: err}
	}
	return n, nil
}

func (s *Store) ListOrphanBlobs(ctx context.Context) ([]chantal.Digest, error) {
	const q = `
SELECT sha256 FROM package
WHERE NOT is_live
AND NOT EXISTS (SELECT 1 FROM snapshot WHERE package.sha256 = ANY(snapshot.package_ids));
`
	rows, err := s.q.Query(ctx, q)
	if err != nil {
		return nil, &chantal.Error{Op: "postgres.ListOrphanBlobs", Kind: chantal.ErrIO, Inner: err}
	}
	defer rows.Close()

	var out []chantal.Digest
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, &chantal.Error{Op: "postgres.ListOrphanBlobs", Kind: chantal.ErrIO, Inner: err}
		}
		d, err := chantal.ParseDigest(raw)
		if err != nil {
			return nil, &chantal.Error{Op: "postgres.ListOrphanBlobs", Kind: chantal.ErrParse, Inner: err}
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) DeletePackage(ctx context.Context, sha256 chantal.Digest) error {
	n, err := s.ReferenceCount(ctx, sha256)
	if err != nil {
		return err
	}
	if n > 0 {
		return &chantal.Error{Op: "postgres.DeletePackage", Kind: chantal.ErrStillReferenced, Message: sha256.String()}
	}
	const q = `DELETE FROM package WHERE sha256 = $1;`
	if _, err := s.q.Exec(ctx, q, sha256.String()); err != nil {
		return &chantal.Error{Op: "postgres.DeletePackage", Kind: chantal.ErrIO, Inner: err}
	}
	return nil
}

func scanPackage(row rowScanner) (chantal.Package, error) {
	var (
		p          chantal.Package
		sha        string
		family     string
		rawMeta    []byte
		firstSeen  time.Time
		lastSeen   time.Time
	)
	if err := row.Scan(&sha, &p.Size, &p.Filename, &p.RepositoryID, &family, &rawMeta, &firstSeen, &lastSeen); err != nil {
		return chantal.Package{}, err
	}
	d, err := chantal.ParseDigest(sha)
	if err != nil {
		return chantal.Package{}, err
	}
	var meta chantal.FamilyMetadata
	if err := json.Unmarshal(rawMeta, &meta); err != nil {
		return chantal.Package{}, err
	}
	p.SHA256 = d
	p.Family = chantal.Family(family)
	p.FamilyMetadata = meta
	p.FirstSeenAt = firstSeen
	p.LastSeenAt = lastSeen
	return p, nil
}
