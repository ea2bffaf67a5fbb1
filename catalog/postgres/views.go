package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/slauger/chantal"
)

// UpsertView replaces a View's row and its entire ordered member list. The
// member list is small (repositories/snapshots per view, not packages), so
// a delete-then-reinsert inside the caller's transaction is simpler than a
// diff and still atomic.
func (s *Store) UpsertView(ctx context.Context, v chantal.View) error {
	const upsertView = `
INSERT INTO view (id, name, family, conflict_policy, created_at, updated_at, published_at, published_path)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO UPDATE SET
    name = EXCLUDED.name,
    conflict_policy = EXCLUDED.conflict_policy,
    updated_at = EXCLUDED.updated_at,
    published_at = EXCLUDED.published_at,
    published_path = EXCLUDED.published_path;
`
	if _, err := s.q.Exec(ctx, upsertView, v.ID, v.Name, string(v.Family), string(v.Conflict),
		v.CreatedAt, v.UpdatedAt, timePtr(timeIfPublished(v)), v.PublishedPath); err != nil {
		return &chantal.Error{Op: "postgres.UpsertView", Kind: chantal.ErrIO, Inner: err}
	}

	if _, err := s.q.Exec(ctx, `DELETE FROM view_member WHERE view_id = $1;`, v.ID); err != nil {
		return &chantal.Error{Op: "postgres.UpsertView", Kind: chantal.ErrIO, Inner: err}
	}
	for _, m := range v.Members {
		const insertMember = `INSERT INTO view_member (view_id, position, kind, ref_id) VALUES ($1, $2, $3, $4);`
		if _, err := s.q.Exec(ctx, insertMember, v.ID, m.Position, string(m.Kind), m.RefID); err != nil {
			return &chantal.Error{Op: "postgres.UpsertView", Kind: chantal.ErrIO, Inner: err}
		}
	}
	return nil
}

func timeIfPublished(v chantal.View) time.Time {
	if !v.IsPublished {
		return time.Time{}
	}
	return time.Now()
}

func (s *Store) GetView(ctx context.Context, id string) (chantal.View, error) {
	const q = `
SELECT id, name, family, conflict_policy, created_at, updated_at, published_at, published_path
FROM view WHERE id = $1;
`
	v, err := scanView(s.q.QueryRow(ctx, q, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return chantal.View{}, &chantal.Error{Op: "postgres.GetView", Kind: chantal.ErrNotFound, Message: id}
		}
		return chantal.View{}, &chantal.Error{Op: "postgres.GetView", Kind: chantal.ErrIO, Inner: err}
	}
	members, err := s.viewMembers(ctx, id)
	if err != nil {
		return chantal.View{}, err
	}
	v.Members = members
	return v, nil
}

func (s *Store) ListViews(ctx context.Context) ([]chantal.View, error) {
	const q = `
SELECT id, name, family, conflict_policy, created_at, updated_at, published_at, published_path
FROM view ORDER BY id;
`
	rows, err := s.q.Query(ctx, q)
	if err != nil {
		return nil, &chantal.Error{Op: "postgres.ListViews", Kind: chantal.ErrIO, Inner: err}
	}
	defer rows.Close()

	var out []chantal.View
	for rows.Next() {
		v, err := scanView(rows)
		if err != nil {
			return nil, &chantal.Error{Op: "postgres.ListViews", Kind: chantal.ErrIO, Inner: err}
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		members, err := s.viewMembers(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Members = members
	}
	return out, nil
}

func (s *Store) viewMembers(ctx context.Context, viewID string) ([]chantal.ViewMember, error) {
	const q = `SELECT position, kind, ref_id FROM view_member WHERE view_id = $1 ORDER BY position;`
	rows, err := s.q.Query(ctx, q, viewID)
	if err != nil {
		return nil, &chantal.Error{Op: "postgres.viewMembers", Kind: chantal.ErrIO, Inner: err}
	}
	defer rows.Close()

	var out []chantal.ViewMember
	for rows.Next() {
		var (
			m    chantal.ViewMember
			kind string
		)
		if err := rows.Scan(&m.Position, &kind, &m.RefID); err != nil {
			return nil, &chantal.Error{Op: "postgres.viewMembers", Kind: chantal.ErrIO, Inner: err}
		}
		m.Kind = chantal.ViewMemberKind(kind)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) CreateViewSnapshot(ctx context.Context, vs chantal.ViewSnapshot) error {
	pkgIDs := make([]string, len(vs.PackageIDs))
	for i, d := range vs.PackageIDs {
		pkgIDs[i] = d.String()
	}
	const q = `
INSERT INTO view_snapshot (id, view_id, created_at, snapshot_ids, package_ids)
VALUES ($1, $2, $3, $4, $5);
`
	if _, err := s.q.Exec(ctx, q, vs.ID, vs.ViewID, vs.CreatedAt, vs.SnapshotIDs, pkgIDs); err != nil {
		return &chantal.Error{Op: "postgres.CreateViewSnapshot", Kind: chantal.ErrIO, Inner: err}
	}
	return nil
}

func scanView(row rowScanner) (chantal.View, error) {
	var (
		v               chantal.View
		family, policy  string
		publishedAt     *time.Time
	)
	if err := row.Scan(&v.ID, &v.Name, &family, &policy, &v.CreatedAt, &v.UpdatedAt, &publishedAt, &v.PublishedPath); err != nil {
		return chantal.View{}, err
	}
	v.Family = chantal.Family(family)
	v.Conflict = chantal.ConflictPolicy(policy)
	v.IsPublished = publishedAt != nil
	return v, nil
}
