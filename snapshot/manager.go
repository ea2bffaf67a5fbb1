// Package snapshot implements the Snapshot Manager: create, list, delete,
// and prune immutable point-in-time captures of a repository's live set
// (spec.md §4.6).
package snapshot

import (
	"context"
	"sort"
	"time"

	"github.com/slauger/chantal"
	"github.com/slauger/chantal/catalog"
)

// Manager wraps a Catalog with the Snapshot operations spec.md §4.6 names.
type Manager struct {
	Catalog catalog.Catalog
}

// Create freezes repositoryID's current live set into a new, uniquely
// named Snapshot. Atomic: the Catalog performs the freeze in one
// transaction (spec.md §4.2).
func (m *Manager) Create(ctx context.Context, repositoryID, name string) (chantal.Snapshot, error) {
	var snap chantal.Snapshot
	err := m.Catalog.Transaction(ctx, func(ctx context.Context, tx catalog.Catalog) error {
		live, err := tx.LiveSet(ctx, repositoryID)
		if err != nil {
			return err
		}
		ids := make([]chantal.Digest, 0, len(live))
		for _, p := range live {
			ids = append(ids, p.SHA256)
		}
		snap, err = tx.CreateSnapshot(ctx, repositoryID, name, ids)
		return err
	})
	if err != nil {
		return chantal.Snapshot{}, err
	}
	return snap, nil
}

// List enumerates snapshots, optionally filtered to one repository.
func (m *Manager) List(ctx context.Context, repositoryID string) ([]chantal.Snapshot, error) {
	return m.Catalog.ListSnapshots(ctx, repositoryID)
}

// Delete removes a Snapshot row. Blobs are untouched; garbage collection
// reclaims them once no Snapshot or live Repository references them
// (spec.md §4.1, §4.6). Fails if the snapshot has a live published tree.
func (m *Manager) Delete(ctx context.Context, id string) error {
	snap, err := m.Catalog.GetSnapshot(ctx, id)
	if err != nil {
		return err
	}
	if snap.IsPublished() {
		return &chantal.Error{Op: "snapshot.Delete", Kind: chantal.ErrConflict, Message: "snapshot is published: " + id}
	}
	return m.Catalog.DeleteSnapshot(ctx, id)
}

// Policy is a retention policy for Prune: the union of keep_last_N most
// recent snapshots and snapshots newer than KeepNewerThan is retained
// (spec.md §4.6). Either field may be the zero value to disable that leg.
type Policy struct {
	KeepLastN     int
	KeepNewerThan time.Duration
}

// Prune deletes every unpublished snapshot of repositoryID not covered by
// policy, returning the ids it removed.
func (m *Manager) Prune(ctx context.Context, repositoryID string, policy Policy) ([]string, error) {
	snaps, err := m.Catalog.ListSnapshots(ctx, repositoryID)
	if err != nil {
		return nil, err
	}

	// ListSnapshots is expected to return in creation order; sort defensively
	// so "last N" means "most recently created N" regardless of backend order.
	sorted := append([]chantal.Snapshot(nil), snaps...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].CreatedAt.After(sorted[j].CreatedAt) })

	retain := make(map[string]struct{}, len(sorted))
	for i, s := range sorted {
		if policy.KeepLastN > 0 && i < policy.KeepLastN {
			retain[s.ID] = struct{}{}
		}
		if policy.KeepNewerThan > 0 && time.Since(s.CreatedAt) < policy.KeepNewerThan {
			retain[s.ID] = struct{}{}
		}
	}

	var removed []string
	for _, s := range sorted {
		if _, ok := retain[s.ID]; ok {
			continue
		}
		if s.IsPublished() {
			continue
		}
		if err := m.Catalog.DeleteSnapshot(ctx, s.ID); err != nil {
			return removed, err
		}
		removed = append(removed, s.ID)
	}
	return removed, nil
}

