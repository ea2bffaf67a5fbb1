package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/slauger/chantal"
	"github.com/slauger/chantal/blob"
	"github.com/slauger/chantal/config"
	syncengine "github.com/slauger/chantal/sync"
)

// runSync syncs the named enabled repositories, or every enabled repository
// in the config when no names are given. Exit code 2 on any sync failure, partial
// or total, per spec.md §6.
func runSync(ctx context.Context, cfg *commonConfig, args []string) int {
	fs := flag.NewFlagSet("chantal sync", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return exitUsageOrConfig
	}

	fileCfg, code := loadConfig(cfg.ConfigPath)
	if code != exitOK {
		return code
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

	engine := &syncengine.Engine{
		Catalog:  cat,
		Store:    store,
		Registry: newRegistry(),
		Locker:   newLocker(pg),
	}

	wanted := make(map[string]bool, len(fs.Args()))
	for _, n := range fs.Args() {
		wanted[n] = true
	}

	failed := false
	for _, rc := range fileCfg.Repositories {
		if !rc.IsEnabled() {
			continue
		}
		if len(wanted) > 0 && !wanted[rc.Name] {
			continue
		}

		repo := chantal.Repository{
			ID:      rc.Name,
			Name:    rc.Name,
			Family:  chantal.Family(rc.Family),
			URL:     rc.URL,
			Enabled: true,
		}
		if err := cat.UpsertRepository(ctx, repo); err != nil {
			slog.ErrorContext(ctx, "upsert repository failed", "repository", rc.Name, "error", err)
			failed = true
			continue
		}

		opts := syncengine.Options{
			GPGKeys:     rc.GPGKeys,
			Concurrency: rc.Sync.Concurrency,
			Client:      httpClientFor(rc),
		}
		hist, err := engine.Sync(ctx, repo, opts)
		if err != nil {
			slog.ErrorContext(ctx, "sync failed", "repository", rc.Name, "error", err)
			failed = true
			continue
		}
		slog.InfoContext(ctx, "sync done", "repository", rc.Name, "status", hist.Status,
			"added", hist.PackagesAdded, "removed", hist.PackagesRemoved, "failed", hist.PackagesFailed)
		if hist.Status == chantal.SyncPartial || hist.Status == chantal.SyncFailed {
			failed = true
		}
	}

	if failed {
		return exitSyncFailure
	}
	return exitOK
}

func httpClientFor(rc config.RepositoryConfig) *http.Client {
	timeout := 300 * time.Second
	if rc.Sync.TimeoutSeconds > 0 {
		timeout = time.Duration(rc.Sync.TimeoutSeconds) * time.Second
	}
	return &http.Client{Timeout: timeout}
}
