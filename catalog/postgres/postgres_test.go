//go:build integration

package postgres_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/slauger/chantal"
	"github.com/slauger/chantal/catalog"
	"github.com/slauger/chantal/catalog/postgres"
)

// openTestStore connects to CHANTAL_TEST_CONNSTRING, skipping the test if
// unset, matching the opt-in convention quay/claircore's
// test/integration package uses for database-backed tests.
func openTestStore(t *testing.T) *postgres.Store {
	t.Helper()
	cs := os.Getenv("CHANTAL_TEST_CONNSTRING")
	if cs == "" {
		t.Skip("CHANTAL_TEST_CONNSTRING not set")
	}
	s, err := postgres.Open(context.Background(), cs)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestRepositoryRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	repo := chantal.Repository{
		ID:     "repo-integration-1",
		Name:   "base",
		Family: chantal.RPM,
		URL:    "https://example.invalid/rpm/base",
	}
	require.NoError(t, s.UpsertRepository(ctx, repo))

	got, err := s.GetRepository(ctx, repo.ID)
	require.NoError(t, err)
	require.Equal(t, repo.Name, got.Name)
	require.Equal(t, repo.Family, got.Family)
}

func TestSnapshotTransaction(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertRepository(ctx, chantal.Repository{ID: "repo-integration-2", Name: "x", Family: chantal.RPM}))

	digest := chantal.MustParseDigest(sample32)
	pkg := chantal.Package{
		SHA256: digest, Size: 42, Filename: "a.rpm", RepositoryID: "repo-integration-2", Family: chantal.RPM,
		FamilyMetadata: chantal.FamilyMetadata{RPM: &chantal.RPMMetadata{Name: "a", Version: "1", Release: "1", Arch: "x86_64"}},
		FirstSeenAt:    time.Now(), LastSeenAt: time.Now(),
	}

	var snap chantal.Snapshot
	err := s.Transaction(ctx, func(ctx context.Context, tx catalog.Catalog) error {
		if err := tx.UpsertPackage(ctx, pkg); err != nil {
			return err
		}
		var err error
		snap, err = tx.CreateSnapshot(ctx, "repo-integration-2", "initial", []chantal.Digest{digest})
		return err
	})
	require.NoError(t, err)
	require.Equal(t, 1, snap.PackageCount)
}

const sample32 = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
