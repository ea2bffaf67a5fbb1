package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/slauger/chantal"
	"github.com/slauger/chantal/blob"
	"github.com/slauger/chantal/family"
	"github.com/slauger/chantal/publish"
)

// runPublish publishes a repository's live set into a family-native
// repository tree at target. Exit code 3 on publish failure per spec.md §6.
func runPublish(ctx context.Context, cfg *commonConfig, args []string) int {
	var signingKeyPath string
	fs := flag.NewFlagSet("chantal publish", flag.ContinueOnError)
	fs.StringVar(&signingKeyPath, "signing-key", "", "path to a PGP private key to sign the published metadata")
	if err := fs.Parse(args); err != nil {
		return exitUsageOrConfig
	}
	if fs.NArg() != 2 {
		fmt.Fprintln(os.Stderr, "usage: chantal publish [-signing-key file] <repository-name> <target>")
		return exitUsageOrConfig
	}
	repoName, target := fs.Arg(0), fs.Arg(1)

	cat, pg, err := openCatalog(ctx, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitUsageOrConfig
	}
	if pg != nil {
		defer pg.Close()
	}

	repo, err := cat.GetRepository(ctx, repoName)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitPublishFailure
	}

	live, err := cat.LiveSet(ctx, repo.ID)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitPublishFailure
	}
	packages := make([]chantal.Package, 0, len(live))
	for _, p := range live {
		packages = append(packages, p)
	}

	store, err := blob.New(cfg.PoolDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitPublishFailure
	}

	signingKey, err := publish.LoadSigningKey(signingKeyPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitUsageOrConfig
	}

	p := &publish.Publisher{Store: store, Registry: newRegistry()}
	set := family.PackageSet{Packages: packages}
	opts := family.PublishOptions{SigningKey: signingKey}

	if err := p.Publish(ctx, repo.Family, target, set, opts); err != nil {
		slog.ErrorContext(ctx, "publish failed", "repository", repoName, "error", err)
		return exitPublishFailure
	}
	slog.InfoContext(ctx, "publish done", "repository", repoName, "target", target, "packages", len(packages))
	return exitOK
}
