package apk_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/slauger/chantal"
	"github.com/slauger/chantal/family"
	"github.com/slauger/chantal/family/apk"
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

func samplePackage(t *testing.T, name string) chantal.Package {
	t.Helper()
	sum := sha256.Sum256([]byte(name))
	return chantal.Package{
		SHA256:   chantal.MustParseDigest(hex.EncodeToString(sum[:])),
		Size:     512,
		Filename: name + "-1.2.3-r0.apk",
		Family:   chantal.APK,
		FamilyMetadata: chantal.FamilyMetadata{APK: &chantal.APKMetadata{
			Checksum: "Q1deadbeef==", Name: name, Version: "1.2.3-r0", Architecture: "x86_64",
			Size: 512, Depends: []string{"musl"},
		}},
	}
}

func TestPublishThenParseRoundTrip(t *testing.T) {
	ctx := context.Background()
	w := newFakeWriter()
	f := apk.New()

	set := family.PackageSet{Packages: []chantal.Package{
		samplePackage(t, "acme-busybox"),
		samplePackage(t, "acme-musl"),
	}}
	require.NoError(t, f.Publish(ctx, w, set, family.PublishOptions{}))
	require.Contains(t, w.files, "x86_64/APKINDEX.tar.gz")
	require.Len(t, w.hardlinks, 2)

	records, digest, err := f.Parse(ctx, w.files["x86_64/APKINDEX.tar.gz"], nil)
	require.NoError(t, err)
	require.NotEmpty(t, digest)
	require.Len(t, records, 2)
	for _, r := range records {
		require.NotNil(t, r.Metadata.APK)
		require.Equal(t, []string{"musl"}, r.Metadata.APK.Depends)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	ctx := context.Background()
	f := apk.New()
	_, _, err := f.Parse(ctx, []byte("not a tar.gz"), nil)
	require.Error(t, err)
}
