package publish

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"runtime/trace"

	"github.com/slauger/chantal"
	"github.com/slauger/chantal/blob"
	"github.com/slauger/chantal/family"
)

// Publisher renders a package set into a family-native repository layout
// at target, transactionally: it stages into "<target>.tmp-<random>" and
// atomically renames the staging directory to target on completion. A
// previous target is moved aside and removed only after the rename
// succeeds, so a failed publish never leaves target partially written
// (spec.md §4.8, §7).
type Publisher struct {
	Store    *blob.Store
	Registry family.Registry
}

// Publish materialises set under target using fam's Publish implementation.
func (p *Publisher) Publish(ctx context.Context, fam chantal.Family, target string, set family.PackageSet, opts family.PublishOptions) error {
	defer trace.StartRegion(ctx, "publish.Publisher.Publish").End()

	f, err := p.Registry.Get(string(fam))
	if err != nil {
		return err
	}

	stagingDir := fmt.Sprintf("%s.tmp-%d", target, rand.Int63())
	if err := os.MkdirAll(filepath.Dir(stagingDir), 0o755); err != nil {
		return &chantal.Error{Op: "publish.Publisher.Publish", Kind: chantal.ErrIO, Inner: err}
	}
	defer os.RemoveAll(stagingDir)

	stage, err := NewStage(stagingDir, p.Store)
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "publish staging", "target", target, "family", fam, "packages", len(set.Packages))
	if err := f.Publish(ctx, stage, set, opts); err != nil {
		return &chantal.Error{Op: "publish.Publisher.Publish", Kind: chantal.ErrInternal, Inner: err}
	}

	return swapIn(stagingDir, target)
}

// swapIn renames staging over target. A pre-existing target is moved aside
// first so the final rename is a single atomic directory replace rather
// than an overwrite-in-place; the aside copy is removed once the swap has
// committed, and left behind (for inspection) if removal fails.
func swapIn(staging, target string) error {
	if _, err := os.Stat(target); err == nil {
		aside := fmt.Sprintf("%s.prev-%d", target, rand.Int63())
		if err := os.Rename(target, aside); err != nil {
			return &chantal.Error{Op: "publish.swapIn", Kind: chantal.ErrIO, Inner: err}
		}
		if err := os.Rename(staging, target); err != nil {
			// Best-effort restore of the previous tree; the caller's target
			// is left intact either way.
			os.Rename(aside, target)
			return &chantal.Error{Op: "publish.swapIn", Kind: chantal.ErrIO, Inner: err}
		}
		os.RemoveAll(aside)
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return &chantal.Error{Op: "publish.swapIn", Kind: chantal.ErrIO, Inner: err}
	}
	if err := os.Rename(staging, target); err != nil {
		return &chantal.Error{Op: "publish.swapIn", Kind: chantal.ErrIO, Inner: err}
	}
	return nil
}
