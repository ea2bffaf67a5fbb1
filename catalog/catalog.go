// Package catalog defines the relational store interface consumed by the
// rest of the core (spec.md §4.2): typed operations over packages,
// repositories, snapshots, views, and sync history, backed by a single
// versioned migration stream. memcatalog provides an in-memory reference
// implementation; postgres provides the production one.
package catalog

import (
	"context"
	"time"

	"github.com/slauger/chantal"
)

// PackageFilter narrows ListPackages to one live set.
type PackageFilter struct {
	RepositoryID string
	SnapshotID   string
}

// Catalog is the typed store interface the Sync Engine, Snapshot Manager,
// View Composer, and Publisher all depend on.
type Catalog interface {
	// Repositories

	UpsertRepository(ctx context.Context, r chantal.Repository) error
	GetRepository(ctx context.Context, id string) (chantal.Repository, error)
	ListRepositories(ctx context.Context) ([]chantal.Repository, error)
	SetIndexValidator(ctx context.Context, repositoryID, validator string) error
	IndexValidator(ctx context.Context, repositoryID string) (string, error)

	// Packages

	UpsertPackage(ctx context.Context, p chantal.Package) error
	// LiveSet returns every package currently live for a repository, keyed by
	// the family-native identity the Sync Engine diffs on.
	LiveSet(ctx context.Context, repositoryID string) (map[string]chantal.Package, error)
	// MarkSeen updates last_seen_at for packages that were present in a sync
	// but unchanged.
	MarkSeen(ctx context.Context, repositoryID string, identities []string, at time.Time) error
	// MarkNotLive flips to_remove packages out of the repository's live set
	// without deleting their rows.
	MarkNotLive(ctx context.Context, repositoryID string, identities []string) error
	ListPackages(ctx context.Context, filter PackageFilter) ([]chantal.Package, error)
	// ReferenceCount reports how many snapshots reference a blob's sha256.
	ReferenceCount(ctx context.Context, sha256 chantal.Digest) (int, error)
	// ListOrphanBlobs returns digests referenced by no live package and no
	// snapshot, candidates for the Content Store's GarbageCollect.
	ListOrphanBlobs(ctx context.Context) ([]chantal.Digest, error)
	DeletePackage(ctx context.Context, sha256 chantal.Digest) error

	// Snapshots

	CreateSnapshot(ctx context.Context, repositoryID, name string, packageIDs []chantal.Digest) (chantal.Snapshot, error)
	GetSnapshot(ctx context.Context, id string) (chantal.Snapshot, error)
	ListSnapshots(ctx context.Context, repositoryID string) ([]chantal.Snapshot, error)
	DeleteSnapshot(ctx context.Context, id string) error
	MarkSnapshotPublished(ctx context.Context, id, path string, at time.Time) error

	// Views

	UpsertView(ctx context.Context, v chantal.View) error
	GetView(ctx context.Context, id string) (chantal.View, error)
	ListViews(ctx context.Context) ([]chantal.View, error)
	CreateViewSnapshot(ctx context.Context, vs chantal.ViewSnapshot) error

	// Sync history

	RecordSync(ctx context.Context, h chantal.SyncHistory) error
	LastSync(ctx context.Context, repositoryID string) (chantal.SyncHistory, error)
	ListSyncHistory(ctx context.Context, repositoryID string) ([]chantal.SyncHistory, error)

	// Transaction runs fn inside a single catalog transaction, per §4.2's
	// commit-atomicity requirement for multi-row mutations.
	Transaction(ctx context.Context, fn func(ctx context.Context, tx Catalog) error) error

	Close()
}
