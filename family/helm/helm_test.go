package helm_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/slauger/chantal"
	"github.com/slauger/chantal/family"
	"github.com/slauger/chantal/family/helm"
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

func samplePackage(t *testing.T, name, version string) chantal.Package {
	t.Helper()
	sum := sha256.Sum256([]byte(name + version))
	return chantal.Package{
		SHA256:   chantal.MustParseDigest(hex.EncodeToString(sum[:])),
		Size:     2048,
		Filename: name + "-" + version + ".tgz",
		Family:   chantal.Helm,
		FamilyMetadata: chantal.FamilyMetadata{Helm: &chantal.HelmMetadata{
			Name: name, Version: version, AppVersion: "1.0.0", Description: "a chart",
		}},
	}
}

func TestPublishThenParseRoundTrip(t *testing.T) {
	ctx := context.Background()
	w := newFakeWriter()
	f := helm.New()

	set := family.PackageSet{Packages: []chantal.Package{
		samplePackage(t, "acme-web", "1.0.0"),
		samplePackage(t, "acme-web", "1.1.0"),
	}}
	require.NoError(t, f.Publish(ctx, w, set, family.PublishOptions{}))
	require.Contains(t, w.files, "index.yaml")
	require.Len(t, w.hardlinks, 2)

	records, digest, err := f.Parse(ctx, w.files["index.yaml"], nil)
	require.NoError(t, err)
	require.NotEmpty(t, digest)
	require.Len(t, records, 2)
	for _, r := range records {
		require.NotNil(t, r.Metadata.Helm)
		require.Equal(t, "acme-web", r.Metadata.Helm.Name)
		require.True(t, r.HasSHA256Hint())
	}
}

func TestParseRejectsMissingAPIVersion(t *testing.T) {
	ctx := context.Background()
	f := helm.New()
	_, _, err := f.Parse(ctx, []byte("entries: {}\n"), nil)
	require.Error(t, err)
}
