// Package publish implements the Publisher (spec.md §4.8): stages a
// repository, snapshot, or view into a directory tree with hardlinks and
// family-regenerated metadata, then atomically swaps it into place.
package publish

import (
	"io"
	"os"
	"path/filepath"

	"github.com/slauger/chantal"
	"github.com/slauger/chantal/blob"
)

// Stage implements family.PublishWriter over a directory that isn't yet
// live: every write lands under root, and nothing here is visible at the
// publication target until Publisher.Publish renames the whole tree into
// place.
type Stage struct {
	root  string
	store *blob.Store
}

// NewStage creates (or reuses) dir as a staging root.
func NewStage(dir string, store *blob.Store) (*Stage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &chantal.Error{Op: "publish.NewStage", Kind: chantal.ErrIO, Inner: err}
	}
	return &Stage{root: dir, store: store}, nil
}

// Root returns the staging directory.
func (s *Stage) Root() string { return s.root }

// WriteFile writes r to relPath under the staging root, creating parent
// directories as needed. Used for generated metadata (repomd.xml, Release,
// APKINDEX.tar.gz, index.yaml) rather than package payloads.
func (s *Stage) WriteFile(relPath string, r io.Reader) error {
	target := filepath.Join(s.root, relPath)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return &chantal.Error{Op: "publish.Stage.WriteFile", Kind: chantal.ErrIO, Inner: err}
	}
	f, err := os.Create(target)
	if err != nil {
		return &chantal.Error{Op: "publish.Stage.WriteFile", Kind: chantal.ErrIO, Inner: err}
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return &chantal.Error{Op: "publish.Stage.WriteFile", Kind: chantal.ErrIO, Inner: err}
	}
	return nil
}

// Hardlink links a pool blob into the staging tree at relPath. Each staging
// run starts from a fresh <target>.tmp-N directory (see Publisher.Publish),
// so a colliding target never legitimately exists; Overwrite is left false
// so a collision surfaces as ErrConflict instead of silently replacing
// content.
func (s *Stage) Hardlink(sha256 chantal.Digest, relPath string) error {
	target := filepath.Join(s.root, relPath)
	return s.store.Hardlink(sha256, target, blob.HardlinkOptions{})
}
