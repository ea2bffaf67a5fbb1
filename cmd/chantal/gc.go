package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/slauger/chantal/blob"
	"github.com/slauger/chantal/catalog"
)

// runGC reclaims pool blobs referenced by no live package and no snapshot.
// It deletes exactly the digests the Catalog reports orphaned rather than
// re-deriving the live set with a full pool walk. With -verify, it instead
// rehashes every live blob and exits 4 (verification failure, spec.md §6)
// on any mismatch; no orphans are collected and the pool is not touched.
func runGC(ctx context.Context, cfg *commonConfig, args []string) int {
	var verify bool
	fs := flag.NewFlagSet("chantal gc", flag.ContinueOnError)
	fs.BoolVar(&verify, "verify", false, "rehash every live blob instead of collecting orphans")
	if err := fs.Parse(args); err != nil {
		return exitUsageOrConfig
	}

	cat, pg, err := openCatalog(ctx, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitUsageOrConfig
	}
	if pg != nil {
		defer pg.Close()
	}

	store, err := blob.New(cfg.PoolDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitUsageOrConfig
	}

	if verify {
		return verifyLiveBlobs(ctx, cat, store)
	}

	digests, err := cat.ListOrphanBlobs(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitSyncFailure
	}

	removed := 0
	for _, d := range digests {
		if err := store.Delete(d); err != nil {
			slog.ErrorContext(ctx, "gc: failed to delete blob", "sha256", d.String(), "error", err)
			continue
		}
		if err := cat.DeletePackage(ctx, d); err != nil {
			slog.ErrorContext(ctx, "gc: failed to delete package row", "sha256", d.String(), "error", err)
			continue
		}
		removed++
	}
	fmt.Printf("removed %d/%d orphaned blobs\n", removed, len(digests))
	return exitOK
}

// verifyLiveBlobs rehashes every blob referenced by a repository's live set
// across all repositories, reporting corruption or missing blobs without
// modifying the pool.
func verifyLiveBlobs(ctx context.Context, cat catalog.Catalog, store *blob.Store) int {
	repos, err := cat.ListRepositories(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitSyncFailure
	}

	checked, bad := 0, 0
	for _, repo := range repos {
		live, err := cat.LiveSet(ctx, repo.ID)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitSyncFailure
		}
		for _, pkg := range live {
			checked++
			result, err := store.Verify(ctx, pkg.SHA256)
			if err != nil {
				slog.ErrorContext(ctx, "verify error", "repository", repo.Name, "sha256", pkg.SHA256.String(), "error", err)
				bad++
				continue
			}
			if result != blob.VerifyOK {
				slog.ErrorContext(ctx, "verify mismatch", "repository", repo.Name, "sha256", pkg.SHA256.String(), "result", result)
				bad++
			}
		}
	}
	fmt.Printf("verified %d blobs, %d bad\n", checked, bad)
	if bad > 0 {
		return exitVerifyFailure
	}
	return exitOK
}
