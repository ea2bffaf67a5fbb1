package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/slauger/chantal"
)

var (
	syncCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chantal",
		Subsystem: "catalog",
		Name:      "sync_history_total",
		Help:      "Sync attempts recorded in the catalog, by terminal status.",
	}, []string{"repository_id", "status"})
)

func (s *Store) RecordSync(ctx context.Context, h chantal.SyncHistory) error {
	errByCat, err := json.Marshal(h.ErrorByCategory)
	if err != nil {
		return &chantal.Error{Op: "postgres.RecordSync", Kind: chantal.ErrParse, Inner: err}
	}
	const q = `
INSERT INTO sync_history (id, repository_id, started_at, finished_at, status, packages_added, packages_removed,
                           packages_failed, bytes_downloaded, first_error, error_by_category, index_validator)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12);
`
	_, err = s.q.Exec(ctx, q, h.ID, h.RepositoryID, h.StartedAt, timePtr(h.FinishedAt), string(h.Status),
		h.PackagesAdded, h.PackagesRemoved, h.PackagesFailed, h.BytesDownloaded, h.FirstError, errByCat, h.IndexValidator)
	if err != nil {
		return &chantal.Error{Op: "postgres.RecordSync", Kind: chantal.ErrIO, Inner: err}
	}
	syncCounter.WithLabelValues(h.RepositoryID, string(h.Status)).Inc()
	return nil
}

func (s *Store) LastSync(ctx context.Context, repositoryID string) (chantal.SyncHistory, error) {
	const q = `
SELECT id, repository_id, started_at, finished_at, status, packages_added, packages_removed,
       packages_failed, bytes_downloaded, first_error, error_by_category, index_validator
FROM sync_history WHERE repository_id = $1 ORDER BY started_at DESC LIMIT 1;
`
	h, err := scanSyncHistory(s.q.QueryRow(ctx, q, repositoryID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return chantal.SyncHistory{}, &chantal.Error{Op: "postgres.LastSync", Kind: chantal.ErrNotFound, Message: repositoryID}
		}
		return chantal.SyncHistory{}, &chantal.Error{Op: "postgres.LastSync", Kind: chantal.ErrIO, Inner: err}
	}
	return h, nil
}

func (s *Store) ListSyncHistory(ctx context.Context, repositoryID string) ([]chantal.SyncHistory, error) {
	const q = `
SELECT id, repository_id, started_at, finished_at, status, packages_added, packages_removed,
       packages_failed, bytes_downloaded, first_error, error_by_category, index_validator
FROM sync_history WHERE repository_id = $1 ORDER BY started_at DESC;
`
	rows, err := s.q.Query(ctx, q, repositoryID)
	if err != nil {
		return nil, &chantal.Error{Op: "postgres.ListSyncHistory", Kind: chantal.ErrIO, Inner: err}
	}
	defer rows.Close()

	var out []chantal.SyncHistory
	for rows.Next() {
		h, err := scanSyncHistory(rows)
		if err != nil {
			return nil, &chantal.Error{Op: "postgres.ListSyncHistory", Kind: chantal.ErrIO, Inner: err}
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func scanSyncHistory(row rowScanner) (chantal.SyncHistory, error) {
	var (
		h           chantal.SyncHistory
		status      string
		finishedAt  *time.Time
		rawErrByCat []byte
	)
	if err := row.Scan(&h.ID, &h.RepositoryID, &h.StartedAt, &finishedAt, &status, &h.PackagesAdded, &h.PackagesRemoved,
		&h.PackagesFailed, &h.BytesDownloaded, &h.FirstError, &rawErrByCat, &h.IndexValidator); err != nil {
		return chantal.SyncHistory{}, err
	}
	h.Status = chantal.SyncStatus(status)
	h.FinishedAt = derefTime(finishedAt)
	if len(rawErrByCat) > 0 {
		if err := json.Unmarshal(rawErrByCat, &h.ErrorByCategory); err != nil {
			return chantal.SyncHistory{}, err
		}
	}
	return h, nil
}
