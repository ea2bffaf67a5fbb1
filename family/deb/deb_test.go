package deb_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/slauger/chantal"
	"github.com/slauger/chantal/family"
	"github.com/slauger/chantal/family/deb"
)

type fakeWriter struct {
	files     map[string][]byte
	hardlinks map[string]chantal.Digest
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{files: map[string][]byte{}, hardlinks: map[string]chantal.Digest{}}
}

func (w *fakeWriter) WriteFile(relPath string, r io.Reader) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	w.files[relPath] = b
	return nil
}

func (w *fakeWriter) Hardlink(sha256 chantal.Digest, relPath string) error {
	w.hardlinks[relPath] = sha256
	return nil
}

func (w *fakeWriter) Root() string { return "" }

func samplePackage(t *testing.T, name, arch string) chantal.Package {
	t.Helper()
	sum := sha256.Sum256([]byte(name + arch))
	return chantal.Package{
		SHA256:   chantal.MustParseDigest(hex.EncodeToString(sum[:])),
		Size:     2048,
		Filename: name + "_1.0_" + arch + ".deb",
		Family:   chantal.DEB,
		FamilyMetadata: chantal.FamilyMetadata{DEB: &chantal.DEBMetadata{
			Package: name, Version: "1.0", Architecture: arch,
			Depends: []string{"libc6"},
		}},
	}
}

func TestPublishThenParseRoundTrip(t *testing.T) {
	ctx := context.Background()
	w := newFakeWriter()
	f := deb.New()

	set := family.PackageSet{Packages: []chantal.Package{
		samplePackage(t, "acme-cli", "amd64"),
		samplePackage(t, "acme-cli", "arm64"),
	}}
	require.NoError(t, f.Publish(ctx, w, set, family.PublishOptions{}))
	require.Contains(t, w.files, "dists/stable/Release")
	require.Len(t, w.hardlinks, 2)

	fetchAux := func(ctx context.Context, relativeURL string) ([]byte, error) {
		b, ok := w.files["dists/stable/"+relativeURL]
		if !ok {
			return nil, chantal.ErrNotFound
		}
		return b, nil
	}

	records, digest, err := f.Parse(ctx, w.files["dists/stable/Release"], fetchAux)
	require.NoError(t, err)
	require.NotEmpty(t, digest)
	require.Len(t, records, 2)
	for _, r := range records {
		require.NotNil(t, r.Metadata.DEB)
		require.Equal(t, "acme-cli", r.Metadata.DEB.Package)
		require.Equal(t, []string{"libc6"}, r.Metadata.DEB.Depends)
	}
}

func TestParseRejectsEmptyRelease(t *testing.T) {
	ctx := context.Background()
	f := deb.New()
	_, _, err := f.Parse(ctx, []byte("Origin: acme\n"), func(context.Context, string) ([]byte, error) {
		return nil, nil
	})
	require.Error(t, err)
}
