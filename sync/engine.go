package sync

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/slauger/chantal"
	"github.com/slauger/chantal/blob"
	"github.com/slauger/chantal/catalog"
	"github.com/slauger/chantal/family"
)

// sourceConfigurer is the optional interface every Family implementation in
// family/{rpm,deb,apk,helm} satisfies: the Registry holds one compiled-in,
// stateless prototype per family name, but FetchIndex/VerifySignature need
// a per-repository baseURL and http.Client. The Engine type-asserts against
// it here rather than widening family.Family, since only the Sync Engine
// ever needs to bind that state.
type sourceConfigurer interface {
	withSource(baseURL string, client *http.Client) family.Family
}

// Options configures one repository's sync beyond what chantal.Repository
// itself carries.
type Options struct {
	GPGKeys     []string
	Client      *http.Client
	Concurrency int
}

// Engine drives the per-repository algorithm of spec.md §4.5: fetch index,
// parse, diff against the catalog, download new blobs, commit.
type Engine struct {
	Catalog  catalog.Catalog
	Store    *blob.Store
	Registry family.Registry
	Locker   Locker
}

// Sync runs one synchronisation attempt against repo. Two concurrent Syncs
// of the same repository ID are serialised by Locker; a lock that's already
// held returns immediately with ErrConflict rather than blocking, since the
// caller (cmd/chantal) is expected to skip and retry on its own schedule.
func (e *Engine) Sync(ctx context.Context, repo chantal.Repository, opts Options) (chantal.SyncHistory, error) {
	started := time.Now()
	hist := chantal.SyncHistory{
		ID:           uuid.NewString(),
		RepositoryID: repo.ID,
		StartedAt:    started,
	}

	release, ok, err := e.Locker.TryLock(ctx, repo.ID)
	if err != nil {
		return hist, err
	}
	if !ok {
		return hist, &chantal.Error{Op: "sync.Engine.Sync", Kind: chantal.ErrConflict, Message: "repository sync already in progress: " + repo.ID}
	}
	defer release()

	f, err := e.Registry.Get(string(repo.Family))
	if err != nil {
		return e.fail(ctx, hist, err)
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 300 * time.Second}
	}
	if cfg, ok := f.(sourceConfigurer); ok {
		f = cfg.withSource(repo.URL, client)
	}

	prev, err := e.Catalog.IndexValidator(ctx, repo.ID)
	if err != nil {
		return e.fail(ctx, hist, err)
	}

	raw, next, err := f.FetchIndex(ctx, family.Validator(prev))
	if err != nil {
		return e.fail(ctx, hist, err)
	}
	if raw == nil {
		hist.Status = chantal.SyncUnchanged
		hist.FinishedAt = time.Now()
		hist.IndexValidator = string(next)
		if err := e.Catalog.RecordSync(ctx, hist); err != nil {
			return hist, err
		}
		return hist, nil
	}

	if err := f.VerifySignature(ctx, raw, opts.GPGKeys); err != nil {
		return e.fail(ctx, hist, &chantal.Error{Op: "sync.Engine.Sync", Kind: chantal.ErrSignature, Inner: err})
	}

	fetchAux := func(ctx context.Context, relativeURL string) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, repo.URL+"/"+relativeURL, nil)
		if err != nil {
			return nil, &chantal.Error{Op: "sync.fetchAux", Kind: chantal.ErrConfig, Inner: err}
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, &chantal.Error{Op: "sync.fetchAux", Kind: chantal.ErrNetwork, Inner: err}
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, &chantal.Error{Op: "sync.fetchAux", Kind: chantal.ErrNetwork, Message: resp.Status}
		}
		return io.ReadAll(resp.Body)
	}

	records, indexDigest, err := f.Parse(ctx, raw, fetchAux)
	if err != nil {
		return e.fail(ctx, hist, err)
	}

	live, err := e.Catalog.LiveSet(ctx, repo.ID)
	if err != nil {
		return e.fail(ctx, hist, err)
	}
	d := computeDiff(records, live)

	dl := &Downloader{Store: e.Store, Client: client, Concurrency: opts.Concurrency}
	outcomes, bytesDownloaded, err := dl.Download(ctx, repo.URL, d.ToAdd)
	if err != nil {
		return e.fail(ctx, hist, err)
	}

	var toUpsert []chantal.Package
	errByCategory := map[string]int{}
	var firstErr string
	now := time.Now()
	for _, o := range outcomes {
		if o.Err != nil {
			hist.PackagesFailed++
			kind := "unknown"
			if cerr, ok := o.Err.(*chantal.Error); ok {
				kind = string(cerr.Kind)
			}
			errByCategory[kind]++
			if firstErr == "" {
				firstErr = o.Err.Error()
			}
			continue
		}
		toUpsert = append(toUpsert, chantal.Package{
			SHA256:         o.Digest,
			Size:           o.Size,
			Filename:       o.Record.Filename,
			RepositoryID:   repo.ID,
			Family:         repo.Family,
			FamilyMetadata: o.Record.Metadata,
			FirstSeenAt:    now,
			LastSeenAt:     now,
		})
	}

	err = e.Catalog.Transaction(ctx, func(ctx context.Context, tx catalog.Catalog) error {
		for _, p := range toUpsert {
			if err := tx.UpsertPackage(ctx, p); err != nil {
				return err
			}
		}
		if len(d.Unchanged) > 0 {
			if err := tx.MarkSeen(ctx, repo.ID, d.Unchanged, now); err != nil {
				return err
			}
		}
		if len(d.ToRemove) > 0 {
			if err := tx.MarkNotLive(ctx, repo.ID, d.ToRemove); err != nil {
				return err
			}
		}
		if err := tx.SetIndexValidator(ctx, repo.ID, string(next)); err != nil {
			return err
		}

		hist.FinishedAt = time.Now()
		hist.PackagesAdded = len(toUpsert)
		hist.PackagesRemoved = len(d.ToRemove)
		hist.BytesDownloaded = bytesDownloaded
		hist.IndexValidator = string(next) + "/" + string(indexDigest)
		hist.FirstError = firstErr
		if len(errByCategory) > 0 {
			hist.ErrorByCategory = errByCategory
		}
		switch {
		case hist.PackagesFailed > 0:
			hist.Status = chantal.SyncPartial
		default:
			hist.Status = chantal.SyncSuccess
		}
		return tx.RecordSync(ctx, hist)
	})
	if err != nil {
		return e.fail(ctx, hist, err)
	}

	return hist, nil
}

// fail finalises hist as a failed sync, records it best-effort, and returns
// the original error to the caller.
func (e *Engine) fail(ctx context.Context, hist chantal.SyncHistory, err error) (chantal.SyncHistory, error) {
	hist.Status = chantal.SyncFailed
	hist.FinishedAt = time.Now()
	hist.FirstError = err.Error()
	e.Catalog.RecordSync(context.WithoutCancel(ctx), hist)
	return hist, err
}
