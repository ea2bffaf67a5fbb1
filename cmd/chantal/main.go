// Command chantal mirrors RPM, DEB, APK, and Helm package repositories into
// a content-addressed store, and republishes them as family-native
// repository trees.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/slauger/chantal/catalog"
	"github.com/slauger/chantal/catalog/memcatalog"
	"github.com/slauger/chantal/catalog/postgres"
	"github.com/slauger/chantal/config"
	"github.com/slauger/chantal/family"
	"github.com/slauger/chantal/family/apk"
	"github.com/slauger/chantal/family/deb"
	"github.com/slauger/chantal/family/helm"
	"github.com/slauger/chantal/family/rpm"
	syncengine "github.com/slauger/chantal/sync"
)

// Exit codes per spec.md §6.
const (
	exitOK             = 0
	exitUsageOrConfig  = 1
	exitSyncFailure    = 2
	exitPublishFailure = 3
	exitVerifyFailure  = 4
)

type commonConfig struct {
	ConfigPath string
	DSN        string
	PoolDir    string
}

type subcmd func(ctx context.Context, cfg *commonConfig, args []string) int

func main() {
	ctx, done := context.WithCancel(context.Background())
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGTERM, syscall.SIGINT)
		<-ch
		done()
	}()

	var cfg commonConfig
	fs := flag.NewFlagSet("chantal", flag.ContinueOnError)
	fs.StringVar(&cfg.ConfigPath, "config", "chantal.yaml", "path to the repository configuration file")
	fs.StringVar(&cfg.DSN, "dsn", os.Getenv("CHANTAL_DSN"), "Postgres connection string (empty: use an in-memory catalog)")
	fs.StringVar(&cfg.PoolDir, "pool", "./pool", "content store pool directory")
	fs.Usage = func() {
		out := fs.Output()
		fmt.Fprintf(out, "Usage of %s:\n", os.Args[0])
		fs.PrintDefaults()
		fmt.Fprintf(out, "\nSubcommands\n\n")
		fmt.Fprintln(out, "sync [repository-name...]\n\tsync one or all configured repositories")
		fmt.Fprintln(out, "publish <repository-name> <target>\n\tpublish a repository's live set to target")
		fmt.Fprintln(out, "snapshot create|list|prune <repository-name> [args...]\n\tmanage repository snapshots")
		fmt.Fprintln(out, "gc\n\treclaim blobs referenced by no live package and no snapshot")
	}
	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(exitUsageOrConfig)
	}

	var cmd subcmd
	switch n := fs.Arg(0); n {
	case "sync":
		cmd = runSync
	case "publish":
		cmd = runPublish
	case "snapshot":
		cmd = runSnapshot
	case "gc":
		cmd = runGC
	case "":
		fs.Usage()
		os.Exit(exitUsageOrConfig)
	default:
		fs.Usage()
		fmt.Fprintf(os.Stderr, "\nunknown subcommand %q\n", n)
		os.Exit(exitUsageOrConfig)
	}

	os.Exit(cmd(ctx, &cfg, fs.Args()[1:]))
}

// openCatalog opens the production Postgres catalog, or falls back to the
// in-memory one when cfg.DSN is empty (local/CI runs without a database).
func openCatalog(ctx context.Context, cfg *commonConfig) (catalog.Catalog, *postgres.Store, error) {
	if cfg.DSN == "" {
		slog.WarnContext(ctx, "no -dsn given, using an in-memory catalog (state is lost on exit)")
		return memcatalog.New(), nil, nil
	}
	store, err := postgres.Open(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, err
	}
	return store, store, nil
}

// newRegistry builds the compiled-in family Registry: one stateless
// prototype per family name, bound to a per-repository source by the Sync
// Engine's sourceConfigurer type assertion.
func newRegistry() family.Registry {
	rpmFamily := rpm.New()
	debFamily := deb.New()
	apkFamily := apk.New()
	helmFamily := helm.New()
	return family.Registry{
		rpmFamily.Name():  rpmFamily,
		debFamily.Name():  debFamily,
		apkFamily.Name():  apkFamily,
		helmFamily.Name(): helmFamily,
	}
}

func loadConfig(path string) (config.Config, int) {
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return config.Config{}, exitUsageOrConfig
	}
	return cfg, exitOK
}

func newLocker(pg *postgres.Store) syncengine.Locker {
	if pg == nil {
		return syncengine.NoopLocker{}
	}
	return syncengine.NewLocker(pg.Pool())
}
