package sync_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/slauger/chantal"
	"github.com/slauger/chantal/blob"
	"github.com/slauger/chantal/catalog/memcatalog"
	"github.com/slauger/chantal/family"
	syncengine "github.com/slauger/chantal/sync"
)

// fakeFamily serves one package from an in-memory index, to exercise the
// engine's fetch/parse/diff/download/commit pipeline without a real
// upstream repository family.
type fakeFamily struct{}

func (fakeFamily) Name() string { return "fake" }

func (fakeFamily) Parse(ctx context.Context, raw []byte, fetchAux family.FetchAuxFunc) ([]family.Record, family.IndexDigest, error) {
	sum := sha256.Sum256([]byte("hello-world"))
	digest, _ := chantal.NewDigest(sum[:])
	return []family.Record{{
		Filename:    "widget-1.0.rpm",
		RelativeURL: "widget-1.0.rpm",
		SHA256Hint:  digest,
		SizeHint:    int64(len("hello-world")),
		Metadata:    chantal.FamilyMetadata{RPM: &chantal.RPMMetadata{Name: "widget", Version: "1.0", Release: "1", Arch: "x86_64"}},
	}}, "idx-1", nil
}

func (fakeFamily) FetchIndex(ctx context.Context, prev family.Validator) ([]byte, family.Validator, error) {
	if prev == "v1" {
		return nil, "v1", nil
	}
	return []byte("index-v1"), "v1", nil
}

func (fakeFamily) VerifySignature(ctx context.Context, raw []byte, keys []string) error { return nil }

func (fakeFamily) Publish(ctx context.Context, w family.PublishWriter, set family.PackageSet, opts family.PublishOptions) error {
	return nil
}

func TestEngineSyncAddsPackages(t *testing.T) {
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hello-world"))
	}))
	defer srv.Close()

	store, err := blob.New(t.TempDir())
	require.NoError(t, err)
	cat := memcatalog.New()

	repo := chantal.Repository{ID: "repo-1", Name: "widgets", Family: "fake", URL: srv.URL, Enabled: true}
	require.NoError(t, cat.UpsertRepository(ctx, repo))

	engine := &syncengine.Engine{
		Catalog:  cat,
		Store:    store,
		Registry: family.Registry{"fake": fakeFamily{}},
		Locker:   syncengine.NoopLocker{},
	}

	hist, err := engine.Sync(ctx, repo, syncengine.Options{})
	require.NoError(t, err)
	require.Equal(t, chantal.SyncSuccess, hist.Status)
	require.Equal(t, 1, hist.PackagesAdded)

	live, err := cat.LiveSet(ctx, repo.ID)
	require.NoError(t, err)
	require.Len(t, live, 1)

	h := sha256.Sum256([]byte("hello-world"))
	require.True(t, store.Exists(chantal.MustParseDigest(hex.EncodeToString(h[:]))))

	hist2, err := engine.Sync(ctx, repo, syncengine.Options{})
	require.NoError(t, err)
	require.Equal(t, chantal.SyncUnchanged, hist2.Status)
}

