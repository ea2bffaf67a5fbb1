package view_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/slauger/chantal"
	"github.com/slauger/chantal/catalog/memcatalog"
	"github.com/slauger/chantal/view"
)

func pkg(repoID, name, version string) chantal.Package {
	sum := sha256.Sum256([]byte(repoID + name + version))
	return chantal.Package{
		SHA256:         chantal.MustParseDigest(hex.EncodeToString(sum[:])),
		RepositoryID:   repoID,
		Family:         chantal.RPM,
		FamilyMetadata: chantal.FamilyMetadata{RPM: &chantal.RPMMetadata{Name: name, Version: version, Release: "1", Arch: "x86_64"}},
	}
}

func TestResolveFirstWins(t *testing.T) {
	ctx := context.Background()
	cat := memcatalog.New()
	require.NoError(t, cat.UpsertPackage(ctx, pkg("repoA", "nginx", "1.20")))
	require.NoError(t, cat.UpsertPackage(ctx, pkg("repoB", "nginx", "1.21")))

	v := chantal.View{
		ID:       "view-1",
		Name:     "combined",
		Family:   chantal.RPM,
		Conflict: chantal.FirstWins,
		Members: []chantal.ViewMember{
			{Position: 0, Kind: chantal.ViewMemberRepository, RefID: "repoA"},
			{Position: 1, Kind: chantal.ViewMemberRepository, RefID: "repoB"},
		},
	}

	c := &view.Composer{Catalog: cat}
	resolved, err := c.Resolve(ctx, v)
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	for _, p := range resolved {
		require.Equal(t, "1.20", p.FamilyMetadata.RPM.Version)
	}
}

func TestResolveFailsOnConflictPolicy(t *testing.T) {
	ctx := context.Background()
	cat := memcatalog.New()
	require.NoError(t, cat.UpsertPackage(ctx, pkg("repoA", "nginx", "1.20")))
	require.NoError(t, cat.UpsertPackage(ctx, pkg("repoB", "nginx", "1.21")))

	v := chantal.View{
		ID: "view-2", Name: "combined", Family: chantal.RPM, Conflict: chantal.FailOnConflict,
		Members: []chantal.ViewMember{
			{Position: 0, Kind: chantal.ViewMemberRepository, RefID: "repoA"},
			{Position: 1, Kind: chantal.ViewMemberRepository, RefID: "repoB"},
		},
	}

	c := &view.Composer{Catalog: cat}
	_, err := c.Resolve(ctx, v)
	require.Error(t, err)
}
