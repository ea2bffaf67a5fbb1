package rpm_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/slauger/chantal"
	"github.com/slauger/chantal/family"
	"github.com/slauger/chantal/family/rpm"
)

// fakeWriter is an in-memory family.PublishWriter for exercising Publish
// without touching a filesystem.
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

func samplePackage(t *testing.T, name string) chantal.Package {
	t.Helper()
	sum := sha256.Sum256([]byte(name))
	return chantal.Package{
		SHA256:   chantal.MustParseDigest(hex.EncodeToString(sum[:])),
		Size:     1024,
		Filename: name + "-1.0-1.x86_64.rpm",
		Family:   chantal.RPM,
		FamilyMetadata: chantal.FamilyMetadata{RPM: &chantal.RPMMetadata{
			Name: name, Version: "1.0", Release: "1", Arch: "x86_64",
			Requires: []string{"glibc"}, Provides: []string{name},
		}},
	}
}

func TestPublishThenParseRoundTrip(t *testing.T) {
	ctx := context.Background()
	w := newFakeWriter()
	f := rpm.New()

	set := family.PackageSet{Packages: []chantal.Package{
		samplePackage(t, "acme-tools"),
		samplePackage(t, "acme-libs"),
	}}
	require.NoError(t, f.Publish(ctx, w, set, family.PublishOptions{}))

	require.Contains(t, w.files, "repodata/repomd.xml")
	require.Len(t, w.hardlinks, 2)

	fetchAux := func(ctx context.Context, relativeURL string) ([]byte, error) {
		b, ok := w.files[relativeURL]
		if !ok {
			return nil, chantal.ErrNotFound
		}
		return b, nil
	}

	records, digest, err := f.Parse(ctx, w.files["repodata/repomd.xml"], fetchAux)
	require.NoError(t, err)
	require.NotEmpty(t, digest)
	require.Len(t, records, 2)

	names := map[string]bool{}
	for _, r := range records {
		require.NotNil(t, r.Metadata.RPM)
		names[r.Metadata.RPM.Name] = true
		require.Equal(t, []string{"glibc"}, r.Metadata.RPM.Requires)
	}
	require.True(t, names["acme-tools"])
	require.True(t, names["acme-libs"])
}

func TestParseRejectsMissingPrimary(t *testing.T) {
	ctx := context.Background()
	f := rpm.New()
	_, _, err := f.Parse(ctx, []byte(`<repomd xmlns="http://linux.duke.edu/metadata/repo"></repomd>`), func(context.Context, string) ([]byte, error) {
		return nil, nil
	})
	require.Error(t, err)
}

