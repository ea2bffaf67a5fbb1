package snapshot_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/slauger/chantal"
	"github.com/slauger/chantal/catalog/memcatalog"
	"github.com/slauger/chantal/snapshot"
)

func seedLivePackage(t *testing.T, cat *memcatalog.Catalog, repoID, name string) {
	t.Helper()
	ctx := context.Background()
	sum := sha256.Sum256([]byte(repoID + name))
	require.NoError(t, cat.UpsertPackage(ctx, chantal.Package{
		SHA256:         chantal.MustParseDigest(hex.EncodeToString(sum[:])),
		RepositoryID:   repoID,
		Family:         chantal.RPM,
		FamilyMetadata: chantal.FamilyMetadata{RPM: &chantal.RPMMetadata{Name: name, Version: "1.0", Release: "1", Arch: "x86_64"}},
	}))
}

func TestCreateAndList(t *testing.T) {
	ctx := context.Background()
	cat := memcatalog.New()
	seedLivePackage(t, cat, "repo-1", "widget")

	mgr := &snapshot.Manager{Catalog: cat}
	snap, err := mgr.Create(ctx, "repo-1", "v1")
	require.NoError(t, err)
	require.Equal(t, 1, snap.PackageCount)

	list, err := mgr.List(ctx, "repo-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestPruneKeepsLastN(t *testing.T) {
	ctx := context.Background()
	cat := memcatalog.New()
	seedLivePackage(t, cat, "repo-1", "widget")
	mgr := &snapshot.Manager{Catalog: cat}

	for i := 0; i < 3; i++ {
		_, err := mgr.Create(ctx, "repo-1", time.Now().Format(time.RFC3339Nano))
		require.NoError(t, err)
	}

	removed, err := mgr.Prune(ctx, "repo-1", snapshot.Policy{KeepLastN: 1})
	require.NoError(t, err)
	require.Len(t, removed, 2)

	remaining, err := mgr.List(ctx, "repo-1")
	require.NoError(t, err)
	require.Len(t, remaining, 1)
}
