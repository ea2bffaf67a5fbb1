// Package memcatalog is an in-memory Catalog used by unit tests and by the
// CLI when no -dsn is given, so the Sync Engine and friends can be exercised
// without a database (SPEC_FULL.md §10.4).
package memcatalog

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/slauger/chantal"
	"github.com/slauger/chantal/catalog"
)

// Catalog is a mutex-guarded in-memory implementation of catalog.Catalog.
// It's not durable and not safe to share across process restarts; nothing
// beyond the test suite and CLI runs without -dsn should depend on that.
type Catalog struct {
	mu sync.RWMutex

	repos     map[string]chantal.Repository
	validator map[string]string

	// packages is keyed by sha256 string; live indexes keyed by repository ID
	// map identity -> sha256 so MarkSeen/MarkNotLive can operate on identity.
	packages map[string]chantal.Package
	live     map[string]map[string]string // repositoryID -> identity -> sha256

	snapshots map[string]chantal.Snapshot
	views     map[string]chantal.View
	viewSnaps map[string]chantal.ViewSnapshot
	history   map[string][]chantal.SyncHistory
}

// New returns an empty Catalog.
func New() *Catalog {
	return &Catalog{
		repos:     make(map[string]chantal.Repository),
		validator: make(map[string]string),
		packages:  make(map[string]chantal.Package),
		live:      make(map[string]map[string]string),
		snapshots: make(map[string]chantal.Snapshot),
		views:     make(map[string]chantal.View),
		viewSnaps: make(map[string]chantal.ViewSnapshot),
		history:   make(map[string][]chantal.SyncHistory),
	}
}

func (c *Catalog) Close() {}

func (c *Catalog) UpsertRepository(ctx context.Context, r chantal.Repository) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.repos[r.ID] = r
	return nil
}

func (c *Catalog) GetRepository(ctx context.Context, id string) (chantal.Repository, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.repos[id]
	if !ok {
		return chantal.Repository{}, &chantal.Error{Op: "memcatalog.GetRepository", Kind: chantal.ErrNotFound, Message: id}
	}
	return r, nil
}

func (c *Catalog) ListRepositories(ctx context.Context) ([]chantal.Repository, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]chantal.Repository, 0, len(c.repos))
	for _, r := range c.repos {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (c *Catalog) SetIndexValidator(ctx context.Context, repositoryID, validator string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.validator[repositoryID] = validator
	return nil
}

func (c *Catalog) IndexValidator(ctx context.Context, repositoryID string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.validator[repositoryID], nil
}

func (c *Catalog) UpsertPackage(ctx context.Context, p chantal.Package) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := p.SHA256.String()
	if existing, ok := c.packages[key]; ok {
		p.FirstSeenAt = existing.FirstSeenAt
	}
	c.packages[key] = p
	if c.live[p.RepositoryID] == nil {
		c.live[p.RepositoryID] = make(map[string]string)
	}
	c.live[p.RepositoryID][p.Identity()] = key
	return nil
}

func (c *Catalog) LiveSet(ctx context.Context, repositoryID string) (map[string]chantal.Package, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]chantal.Package)
	for identity, sha := range c.live[repositoryID] {
		out[identity] = c.packages[sha]
	}
	return out, nil
}

func (c *Catalog) MarkSeen(ctx context.Context, repositoryID string, identities []string, at time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, identity := range identities {
		sha, ok := c.live[repositoryID][identity]
		if !ok {
			continue
		}
		p := c.packages[sha]
		p.LastSeenAt = at
		c.packages[sha] = p
	}
	return nil
}

func (c *Catalog) MarkNotLive(ctx context.Context, repositoryID string, identities []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, identity := range identities {
		delete(c.live[repositoryID], identity)
	}
	return nil
}

func (c *Catalog) ListPackages(ctx context.Context, filter catalog.PackageFilter) ([]chantal.Package, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if filter.SnapshotID != "" {
		snap, ok := c.snapshots[filter.SnapshotID]
		if !ok {
			return nil, &chantal.Error{Op: "memcatalog.ListPackages", Kind: chantal.ErrNotFound, Message: filter.SnapshotID}
		}
		out := make([]chantal.Package, 0, len(snap.PackageIDs))
		for _, d := range snap.PackageIDs {
			if p, ok := c.packages[d.String()]; ok {
				out = append(out, p)
			}
		}
		return out, nil
	}

	if filter.RepositoryID != "" {
		out := make([]chantal.Package, 0, len(c.live[filter.RepositoryID]))
		for _, sha := range c.live[filter.RepositoryID] {
			out = append(out, c.packages[sha])
		}
		return out, nil
	}

	out := make([]chantal.Package, 0, len(c.packages))
	for _, p := range c.packages {
		out = append(out, p)
	}
	return out, nil
}

func (c *Catalog) ReferenceCount(ctx context.Context, sha256 chantal.Digest) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	count := 0
	for _, snap := range c.snapshots {
		for _, d := range snap.PackageIDs {
			if d.String() == sha256.String() {
				count++
				break
			}
		}
	}
	return count, nil
}

func (c *Catalog) ListOrphanBlobs(ctx context.Context) ([]chantal.Digest, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	referenced := make(map[string]struct{})
	for _, repoLive := range c.live {
		for _, sha := range repoLive {
			referenced[sha] = struct{}{}
		}
	}
	for _, snap := range c.snapshots {
		for _, d := range snap.PackageIDs {
			referenced[d.String()] = struct{}{}
		}
	}

	var orphans []chantal.Digest
	for sha, p := range c.packages {
		if _, ok := referenced[sha]; !ok {
			orphans = append(orphans, p.SHA256)
		}
	}
	return orphans, nil
}

func (c *Catalog) DeletePackage(ctx context.Context, sha256 chantal.Digest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	count := 0
	for _, snap := range c.snapshots {
		for _, d := range snap.PackageIDs {
			if d.String() == sha256.String() {
				count++
			}
		}
	}
	if count > 0 {
		return &chantal.Error{Op: "memcatalog.DeletePackage", Kind: chantal.ErrStillReferenced, Message: sha256.String()}
	}
	delete(c.packages, sha256.String())
	return nil
}

func (c *Catalog) CreateSnapshot(ctx context.Context, repositoryID, name string, packageIDs []chantal.Digest) (chantal.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, s := range c.snapshots {
		if s.RepositoryID == repositoryID && s.Name == name {
			return chantal.Snapshot{}, &chantal.Error{Op: "memcatalog.CreateSnapshot", Kind: chantal.ErrConflict,
				Message: "snapshot name already used for this repository"}
		}
	}

	var totalSize int64
	for _, d := range packageIDs {
		if p, ok := c.packages[d.String()]; ok {
			totalSize += p.Size
		}
	}

	snap := chantal.Snapshot{
		ID:             uuid.NewString(),
		RepositoryID:   repositoryID,
		Name:           name,
		CreatedAt:      time.Now(),
		PackageIDs:     append([]chantal.Digest(nil), packageIDs...),
		PackageCount:   len(packageIDs),
		TotalSizeBytes: totalSize,
	}
	c.snapshots[snap.ID] = snap
	return snap, nil
}

func (c *Catalog) GetSnapshot(ctx context.Context, id string) (chantal.Snapshot, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.snapshots[id]
	if !ok {
		return chantal.Snapshot{}, &chantal.Error{Op: "memcatalog.GetSnapshot", Kind: chantal.ErrNotFound, Message: id}
	}
	return s, nil
}

func (c *Catalog) ListSnapshots(ctx context.Context, repositoryID string) ([]chantal.Snapshot, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]chantal.Snapshot, 0)
	for _, s := range c.snapshots {
		if repositoryID == "" || s.RepositoryID == repositoryID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (c *Catalog) DeleteSnapshot(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.snapshots[id]
	if !ok {
		return &chantal.Error{Op: "memcatalog.DeleteSnapshot", Kind: chantal.ErrNotFound, Message: id}
	}
	if s.IsPublished() {
		return &chantal.Error{Op: "memcatalog.DeleteSnapshot", Kind: chantal.ErrStillReferenced, Message: "snapshot is published"}
	}
	delete(c.snapshots, id)
	return nil
}

func (c *Catalog) MarkSnapshotPublished(ctx context.Context, id, path string, at time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.snapshots[id]
	if !ok {
		return &chantal.Error{Op: "memcatalog.MarkSnapshotPublished", Kind: chantal.ErrNotFound, Message: id}
	}
	s.PublishedAt = at
	s.PublishedPath = path
	c.snapshots[id] = s
	return nil
}

func (c *Catalog) UpsertView(ctx context.Context, v chantal.View) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.views[v.ID] = v
	return nil
}

func (c *Catalog) GetView(ctx context.Context, id string) (chantal.View, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.views[id]
	if !ok {
		return chantal.View{}, &chantal.Error{Op: "memcatalog.GetView", Kind: chantal.ErrNotFound, Message: id}
	}
	return v, nil
}

func (c *Catalog) ListViews(ctx context.Context) ([]chantal.View, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]chantal.View, 0, len(c.views))
	for _, v := range c.views {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (c *Catalog) CreateViewSnapshot(ctx context.Context, vs chantal.ViewSnapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.viewSnaps[vs.ID] = vs
	return nil
}

func (c *Catalog) RecordSync(ctx context.Context, h chantal.SyncHistory) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history[h.RepositoryID] = append(c.history[h.RepositoryID], h)
	return nil
}

func (c *Catalog) LastSync(ctx context.Context, repositoryID string) (chantal.SyncHistory, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	hs := c.history[repositoryID]
	if len(hs) == 0 {
		return chantal.SyncHistory{}, &chantal.Error{Op: "memcatalog.LastSync", Kind: chantal.ErrNotFound, Message: repositoryID}
	}
	return hs[len(hs)-1], nil
}

func (c *Catalog) ListSyncHistory(ctx context.Context, repositoryID string) ([]chantal.SyncHistory, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]chantal.SyncHistory(nil), c.history[repositoryID]...), nil
}

// Transaction runs fn against the same Catalog: memcatalog has no real
// transaction isolation. Each method fn calls holds the mutex only for its
// own duration, so other callers can interleave between fn's calls, and the
// calls fn already made are not rolled back when fn returns an error.
func (c *Catalog) Transaction(ctx context.Context, fn func(ctx context.Context, tx catalog.Catalog) error) error {
	return fn(ctx, c)
}
