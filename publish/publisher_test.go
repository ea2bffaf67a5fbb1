package publish_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/slauger/chantal"
	"github.com/slauger/chantal/blob"
	"github.com/slauger/chantal/family"
	"github.com/slauger/chantal/family/rpm"
	"github.com/slauger/chantal/publish"
)

func samplePackage(t *testing.T, store *blob.Store, name string) chantal.Package {
	t.Helper()
	ctx := context.Background()
	digest, size, err := store.Ingest(ctx, strings.NewReader(name+"-payload"))
	require.NoError(t, err)
	return chantal.Package{
		SHA256:   digest,
		Size:     size,
		Filename: name + "-1.0-1.x86_64.rpm",
		Family:   chantal.RPM,
		FamilyMetadata: chantal.FamilyMetadata{RPM: &chantal.RPMMetadata{
			Name: name, Version: "1.0", Release: "1", Arch: "x86_64",
		}},
	}
}

func TestPublishCreatesTargetAtomically(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := blob.New(filepath.Join(dir, "pool"))
	require.NoError(t, err)

	p := &publish.Publisher{
		Store:    store,
		Registry: family.Registry{"rpm": rpm.New()},
	}

	set := family.PackageSet{Packages: []chantal.Package{
		samplePackage(t, store, "acme-tools"),
	}}

	target := filepath.Join(dir, "repo")
	require.NoError(t, p.Publish(ctx, chantal.RPM, target, set, family.PublishOptions{}))

	require.FileExists(t, filepath.Join(target, "repodata", "repomd.xml"))
	require.FileExists(t, filepath.Join(target, "Packages", "acme-tools-1.0-1.x86_64.rpm"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		require.NotContains(t, e.Name(), ".tmp-")
		require.NotContains(t, e.Name(), ".prev-")
	}
}

func TestPublishReplacesPreviousTarget(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := blob.New(filepath.Join(dir, "pool"))
	require.NoError(t, err)

	p := &publish.Publisher{
		Store:    store,
		Registry: family.Registry{"rpm": rpm.New()},
	}
	target := filepath.Join(dir, "repo")

	firstSet := family.PackageSet{Packages: []chantal.Package{samplePackage(t, store, "acme-tools")}}
	require.NoError(t, p.Publish(ctx, chantal.RPM, target, firstSet, family.PublishOptions{}))
	require.FileExists(t, filepath.Join(target, "Packages", "acme-tools-1.0-1.x86_64.rpm"))

	secondSet := family.PackageSet{Packages: []chantal.Package{samplePackage(t, store, "acme-libs")}}
	require.NoError(t, p.Publish(ctx, chantal.RPM, target, secondSet, family.PublishOptions{}))

	require.NoFileExists(t, filepath.Join(target, "Packages", "acme-tools-1.0-1.x86_64.rpm"))
	require.FileExists(t, filepath.Join(target, "Packages", "acme-libs-1.0-1.x86_64.rpm"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		require.NotContains(t, e.Name(), ".prev-")
	}
}
