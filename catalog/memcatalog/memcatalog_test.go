package memcatalog_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slauger/chantal"
	"github.com/slauger/chantal/catalog"
	"github.com/slauger/chantal/catalog/memcatalog"
)

func mustDigest(t *testing.T, s string) chantal.Digest {
	t.Helper()
	d, err := chantal.NewDigest([]byte(s + "0123456789012345678901234567890")[:32])
	require.NoError(t, err)
	return d
}

func TestUpsertAndLiveSet(t *testing.T) {
	ctx := context.Background()
	c := memcatalog.New()

	p := chantal.Package{
		SHA256:       mustDigest(t, "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"),
		Size:         1024,
		Filename:     "bash-5.2-1.x86_64.rpm",
		RepositoryID: "repo1",
		Family:       chantal.RPM,
		FamilyMetadata: chantal.FamilyMetadata{
			RPM: &chantal.RPMMetadata{Name: "bash", Version: "5.2", Release: "1", Arch: "x86_64"},
		},
	}
	require.NoError(t, c.UpsertPackage(ctx, p))

	live, err := c.LiveSet(ctx, "repo1")
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, p.SHA256.String(), live[p.Identity()].SHA256.String())
}

func TestSnapshotLifecycle(t *testing.T) {
	ctx := context.Background()
	c := memcatalog.New()

	p := chantal.Package{SHA256: mustDigest(t, "b"), Size: 10, RepositoryID: "repo1", Family: chantal.RPM,
		FamilyMetadata: chantal.FamilyMetadata{RPM: &chantal.RPMMetadata{Name: "n", Version: "1", Release: "1", Arch: "x86_64"}}}
	require.NoError(t, c.UpsertPackage(ctx, p))

	snap, err := c.CreateSnapshot(ctx, "repo1", "stable", []chantal.Digest{p.SHA256})
	require.NoError(t, err)
	assert.Equal(t, 1, snap.PackageCount)
	assert.EqualValues(t, 10, snap.TotalSizeBytes)

	_, err = c.CreateSnapshot(ctx, "repo1", "stable", []chantal.Digest{p.SHA256})
	require.Error(t, err)

	require.NoError(t, c.MarkSnapshotPublished(ctx, snap.ID, "/pub/repo1/stable", time.Now()))

	err = c.DeleteSnapshot(ctx, snap.ID)
	require.Error(t, err, "published snapshot must refuse deletion")

	err = c.DeletePackage(ctx, p.SHA256)
	require.Error(t, err, "package referenced by a snapshot must refuse deletion")
}

func TestListOrphanBlobs(t *testing.T) {
	ctx := context.Background()
	c := memcatalog.New()

	live := chantal.Package{SHA256: mustDigest(t, "c"), RepositoryID: "repo1", Family: chantal.RPM,
		FamilyMetadata: chantal.FamilyMetadata{RPM: &chantal.RPMMetadata{Name: "live", Version: "1", Release: "1", Arch: "noarch"}}}
	orphan := chantal.Package{SHA256: mustDigest(t, "d"), RepositoryID: "repo1", Family: chantal.RPM,
		FamilyMetadata: chantal.FamilyMetadata{RPM: &chantal.RPMMetadata{Name: "orphan", Version: "1", Release: "1", Arch: "noarch"}}}
	require.NoError(t, c.UpsertPackage(ctx, live))
	require.NoError(t, c.UpsertPackage(ctx, orphan))
	require.NoError(t, c.MarkNotLive(ctx, "repo1", []string{orphan.Identity()}))

	orphans, err := c.ListOrphanBlobs(ctx)
	require.NoError(t, err)
	require.Len(t, orphans, 1)
	assert.Equal(t, orphan.SHA256.String(), orphans[0].String())
}

func TestTransaction(t *testing.T) {
	ctx := context.Background()
	c := memcatalog.New()

	err := c.Transaction(ctx, func(ctx context.Context, tx catalog.Catalog) error {
		return tx.UpsertRepository(ctx, chantal.Repository{ID: "repo1", Name: "base", Family: chantal.RPM})
	})
	require.NoError(t, err)

	r, err := c.GetRepository(ctx, "repo1")
	require.NoError(t, err)
	assert.Equal(t, "base", r.Name)
}
