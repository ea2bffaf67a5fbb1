// Package blob implements the content-addressed Content Store (spec.md §4.1).
//
// Blobs live under a pool directory at pool/<aa>/<bb>/<sha256>, fanned out by
// the first two hex byte-pairs of the digest. Ingest streams to a temp file
// under pool/.tmp (on the same filesystem as the final path), hashing
// incrementally, and finishes with an atomic rename — the same technique
// internal/indexer/fetcher uses to land downloaded layers, and that
// toolkit/spool uses for its Arena allocations. Because SHA-256 is
// collision-resistant and POSIX rename is atomic, concurrent ingests of
// identical content race harmlessly to the same final path.
package blob

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/trace"
	"strings"
	"syscall"
	"time"

	"github.com/slauger/chantal"
)

// Store is a filesystem-backed content-addressed blob store rooted at a
// caller-supplied pool directory. The zero value is not usable; construct
// with [New].
type Store struct {
	root string
}

// New returns a Store rooted at dir. dir is created if it doesn't exist.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &chantal.Error{Op: "blob.New", Kind: chantal.ErrIO, Inner: err}
	}
	return &Store{root: dir}, nil
}

// Root returns the pool directory.
func (s *Store) Root() string { return s.root }

// path returns the final on-disk path for a digest. It does not create the
// fan-out directories.
func (s *Store) path(d chantal.Digest) string {
	aa, bb := d.FanOut()
	return filepath.Join(s.root, aa, bb, d.String())
}

// Ingest streams r to the pool, computing its SHA-256 digest incrementally,
// and atomically publishes it. If a blob with the resulting digest already
// exists, the temp file is discarded and Ingest still reports (digest, size)
// for the content just read.
func (s *Store) Ingest(ctx context.Context, r io.Reader) (chantal.Digest, int64, error) {
	defer trace.StartRegion(ctx, "Store.Ingest").End()
	slog.DebugContext(ctx, "ingest start")

	tmpDir := filepath.Join(s.root, ".tmp")
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return chantal.Digest{}, 0, &chantal.Error{Op: "blob.Ingest", Kind: chantal.ErrIO, Inner: err}
	}
	tmp, err := os.CreateTemp(tmpDir, "ingest-*")
	if err != nil {
		return chantal.Digest{}, 0, &chantal.Error{Op: "blob.Ingest", Kind: chantal.ErrIO, Inner: err}
	}
	tmpName := tmp.Name()
	cleanup := true
	defer func() {
		if cleanup {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(tmp, h), r)
	if err != nil {
		return chantal.Digest{}, 0, &chantal.Error{Op: "blob.Ingest", Kind: chantal.ErrIO, Inner: err}
	}
	if err := tmp.Sync(); err != nil {
		return chantal.Digest{}, 0, &chantal.Error{Op: "blob.Ingest", Kind: chantal.ErrIO, Inner: err}
	}
	if err := tmp.Close(); err != nil {
		return chantal.Digest{}, 0, &chantal.Error{Op: "blob.Ingest", Kind: chantal.ErrIO, Inner: err}
	}

	// h.Sum(nil) is always exactly sha256.Size bytes, so this cannot fail.
	digest, _ := chantal.NewDigest(h.Sum(nil))

	final := s.path(digest)
	if _, err := os.Stat(final); err == nil {
		// Already stored: the deferred cleanup discards the temp file.
		slog.DebugContext(ctx, "ingest done, blob already present", "sha256", digest.String(), "size", n)
		return digest, n, nil
	}
	if err := os.MkdirAll(filepath.Dir(final), 0o755); err != nil {
		return chantal.Digest{}, 0, &chantal.Error{Op: "blob.Ingest", Kind: chantal.ErrIO, Inner: err}
	}
	if err := os.Rename(tmpName, final); err != nil {
		return chantal.Digest{}, 0, &chantal.Error{Op: "blob.Ingest", Kind: chantal.ErrIO, Inner: err}
	}
	cleanup = false

	slog.DebugContext(ctx, "ingest done", "sha256", digest.String(), "size", n)
	return digest, n, nil
}

// Exists reports whether a blob with the given digest is present.
func (s *Store) Exists(digest chantal.Digest) bool {
	_, err := os.Stat(s.path(digest))
	return err == nil
}

// Open returns a ReadCloser for the blob. Fails with ErrNotFound if absent.
func (s *Store) Open(digest chantal.Digest) (io.ReadCloser, error) {
	f, err := os.Open(s.path(digest))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &chantal.Error{Op: "blob.Open", Kind: chantal.ErrNotFound, Inner: err}
		}
		return nil, &chantal.Error{Op: "blob.Open", Kind: chantal.ErrIO, Inner: err}
	}
	return f, nil
}

// Delete removes a single blob by digest. Unlike GarbageCollect's mtime-
// gated sweep, Delete trusts the caller's digest list outright, for when
// the Catalog has already computed exactly which blobs are orphaned
// (ListOrphanBlobs) and a full pool walk would be wasted work. A missing
// blob is not an error: deleting an already-gone blob is the caller's
// no-op.
func (s *Store) Delete(digest chantal.Digest) error {
	if err := os.Remove(s.path(digest)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &chantal.Error{Op: "blob.Delete", Kind: chantal.ErrIO, Inner: err}
	}
	return nil
}

// HardlinkOptions controls Hardlink's overwrite behavior.
type HardlinkOptions struct {
	Overwrite bool
}

// Hardlink creates an atomic hardlink from the pool to target. If target
// already exists and is the same inode, it's a no-op success. If it exists
// and points elsewhere, Hardlink fails with ErrConflict unless
// opts.Overwrite is set, in which case the existing target is replaced via
// rename-over (still atomic from an observer's perspective).
//
// Cross-filesystem targets fail with ErrCrossDevice: placing the publish
// root on the same filesystem as the pool is the caller's responsibility
// (spec.md §4.1, §9).
func (s *Store) Hardlink(digest chantal.Digest, target string, opts HardlinkOptions) error {
	src := s.path(digest)
	srcInfo, err := os.Stat(src)
	if err != nil {
		return &chantal.Error{Op: "blob.Hardlink", Kind: chantal.ErrNotFound, Inner: err}
	}

	if dstInfo, err := os.Lstat(target); err == nil {
		if os.SameFile(srcInfo, dstInfo) {
			return nil
		}
		if !opts.Overwrite {
			return &chantal.Error{Op: "blob.Hardlink", Kind: chantal.ErrConflict,
				Message: fmt.Sprintf("%s exists and is not a link to %s", target, digest)}
		}
		tmp := target + ".tmp-overwrite"
		if err := os.Remove(tmp); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return &chantal.Error{Op: "blob.Hardlink", Kind: chantal.ErrIO, Inner: err}
		}
		if err := os.Link(src, tmp); err != nil {
			return linkErr(err)
		}
		if err := os.Rename(tmp, target); err != nil {
			return &chantal.Error{Op: "blob.Hardlink", Kind: chantal.ErrIO, Inner: err}
		}
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return &chantal.Error{Op: "blob.Hardlink", Kind: chantal.ErrIO, Inner: err}
	}
	if err := os.Link(src, target); err != nil {
		return linkErr(err)
	}
	return nil
}

func linkErr(err error) error {
	var le *os.LinkError
	if errors.As(err, &le) && errors.Is(le.Err, syscall.EXDEV) {
		return &chantal.Error{Op: "blob.Hardlink", Kind: chantal.ErrCrossDevice, Inner: err}
	}
	return &chantal.Error{Op: "blob.Hardlink", Kind: chantal.ErrIO, Inner: err}
}

// VerifyResult is the outcome of re-hashing a stored blob.
type VerifyResult int

const (
	VerifyOK VerifyResult = iota
	VerifyCorrupt
	VerifyMissing
)

// Verify rehashes the blob on disk and compares it to digest.
func (s *Store) Verify(ctx context.Context, digest chantal.Digest) (VerifyResult, error) {
	f, err := os.Open(s.path(digest))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return VerifyMissing, nil
		}
		return VerifyMissing, &chantal.Error{Op: "blob.Verify", Kind: chantal.ErrIO, Inner: err}
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return VerifyCorrupt, &chantal.Error{Op: "blob.Verify", Kind: chantal.ErrIO, Inner: err}
	}
	got, _ := chantal.NewDigest(h.Sum(nil))
	if got.String() != digest.String() {
		return VerifyCorrupt, nil
	}
	return VerifyOK, nil
}

// GarbageCollect removes every blob whose digest is not in live and whose
// mtime predates the start of this call, so concurrent ingests of new blobs
// are never collected (spec.md §4.1).
func (s *Store) GarbageCollect(ctx context.Context, live map[string]struct{}) (removed int, freed int64, err error) {
	start := time.Now()
	type victim struct {
		path string
		size int64
	}
	var victims []victim

	err = filepath.WalkDir(s.root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		if rel, err := filepath.Rel(s.root, p); err == nil && strings.HasPrefix(rel, ".tmp"+string(filepath.Separator)) {
			return nil
		}
		name := d.Name()
		if _, ok := live[name]; ok {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().After(start) {
			return nil
		}
		victims = append(victims, victim{path: p, size: info.Size()})
		return nil
	})
	if err != nil {
		return 0, 0, &chantal.Error{Op: "blob.GarbageCollect", Kind: chantal.ErrIO, Inner: err}
	}

	for _, v := range victims {
		if ctx.Err() != nil {
			return removed, freed, &chantal.Error{Op: "blob.GarbageCollect", Kind: chantal.ErrCancelled}
		}
		if err := os.Remove(v.path); err != nil {
			continue
		}
		removed++
		freed += v.size
	}
	return removed, freed, nil
}
