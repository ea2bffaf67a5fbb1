package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/slauger/chantal/snapshot"
)

// runSnapshot dispatches "chantal snapshot create|list|prune ...".
func runSnapshot(ctx context.Context, cfg *commonConfig, args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: chantal snapshot create|list|prune <repository-name> [args...]")
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
	mgr := &snapshot.Manager{Catalog: cat}

	switch args[0] {
	case "create":
		fs := flag.NewFlagSet("chantal snapshot create", flag.ContinueOnError)
		if err := fs.Parse(args[1:]); err != nil {
			return exitUsageOrConfig
		}
		if fs.NArg() != 2 {
			fmt.Fprintln(os.Stderr, "usage: chantal snapshot create <repository-name> <snapshot-name>")
			return exitUsageOrConfig
		}
		snap, err := mgr.Create(ctx, fs.Arg(0), fs.Arg(1))
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitSyncFailure
		}
		fmt.Printf("%s: %d packages\n", snap.Name, snap.PackageCount)
		return exitOK

	case "list":
		fs := flag.NewFlagSet("chantal snapshot list", flag.ContinueOnError)
		if err := fs.Parse(args[1:]); err != nil {
			return exitUsageOrConfig
		}
		if fs.NArg() != 1 {
			fmt.Fprintln(os.Stderr, "usage: chantal snapshot list <repository-name>")
			return exitUsageOrConfig
		}
		snaps, err := mgr.List(ctx, fs.Arg(0))
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitSyncFailure
		}
		for _, s := range snaps {
			fmt.Printf("%s\t%s\t%d packages\tpublished=%v\n", s.ID, s.Name, s.PackageCount, s.IsPublished())
		}
		return exitOK

	case "prune":
		var keepLastN int
		var keepNewerThan time.Duration
		fs := flag.NewFlagSet("chantal snapshot prune", flag.ContinueOnError)
		fs.IntVar(&keepLastN, "keep-last", 0, "retain the N most recent snapshots")
		fs.DurationVar(&keepNewerThan, "keep-newer-than", 0, "retain snapshots newer than this duration")
		if err := fs.Parse(args[1:]); err != nil {
			return exitUsageOrConfig
		}
		if fs.NArg() != 1 {
			fmt.Fprintln(os.Stderr, "usage: chantal snapshot prune [-keep-last N] [-keep-newer-than D] <repository-name>")
			return exitUsageOrConfig
		}
		removed, err := mgr.Prune(ctx, fs.Arg(0), snapshot.Policy{KeepLastN: keepLastN, KeepNewerThan: keepNewerThan})
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitSyncFailure
		}
		fmt.Printf("removed %d snapshots\n", len(removed))
		return exitOK

	default:
		fmt.Fprintf(os.Stderr, "unknown snapshot subcommand %q\n", args[0])
		return exitUsageOrConfig
	}
}
