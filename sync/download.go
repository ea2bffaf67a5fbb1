package sync

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/slauger/chantal"
	"github.com/slauger/chantal/blob"
	"github.com/slauger/chantal/family"
)

const (
	defaultConcurrency = 4
	backoffBase        = time.Second
	backoffCap         = 30 * time.Second
	maxAttempts        = 5
)

// Downloader fetches every to_add record into the Content Store, bounded by
// a worker pool (default concurrency 4) and retried with exponential
// backoff on retryable errors (spec.md §4.5 step 4). Grounded on
// internal/indexer/fetcher's per-item goroutine fan-out, bounded here with
// golang.org/x/sync/semaphore instead of an unbounded errgroup since a
// failed download must not abort its siblings — partial success is
// acceptable, so errors are collected per item rather than propagated.
type Downloader struct {
	Store       *blob.Store
	Client      *http.Client
	Concurrency int
}

// Outcome is one record's download result.
type Outcome struct {
	Record family.Record
	Digest chantal.Digest
	Size   int64
	Err    error
}

// Download fetches every record relative to baseURL, skipping any whose
// hinted sha256 the store already holds.
func (d *Downloader) Download(ctx context.Context, baseURL string, records []family.Record) ([]Outcome, int64, error) {
	concurrency := d.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}

	sem := semaphore.NewWeighted(int64(concurrency))
	outcomes := make([]Outcome, len(records))
	var bytesTotal int64
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i, r := range records {
		if err := sem.Acquire(ctx, 1); err != nil {
			outcomes[i] = Outcome{Record: r, Err: &chantal.Error{Op: "sync.Download", Kind: chantal.ErrCancelled, Inner: err}}
			continue
		}
		wg.Add(1)
		go func(i int, r family.Record) {
			defer wg.Done()
			defer sem.Release(1)
			digest, size, err := d.downloadOne(ctx, client, baseURL, r)
			outcomes[i] = Outcome{Record: r, Digest: digest, Size: size, Err: err}
			if err == nil {
				mu.Lock()
				bytesTotal += size
				mu.Unlock()
			}
		}(i, r)
	}
	wg.Wait()
	return outcomes, bytesTotal, nil
}

func (d *Downloader) downloadOne(ctx context.Context, client *http.Client, baseURL string, r family.Record) (chantal.Digest, int64, error) {
	if r.HasSHA256Hint() && d.Store.Exists(r.SHA256Hint) {
		return r.SHA256Hint, r.SizeHint, nil
	}

	var lastErr error
	backoff := backoffBase
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		digest, size, err := d.fetchAndIngest(ctx, client, baseURL, r)
		if err == nil {
			return digest, size, nil
		}
		lastErr = err
		var cerr *chantal.Error
		if ok := asChantalError(err, &cerr); !ok || !cerr.Kind.Retryable() {
			return chantal.Digest{}, 0, err
		}
		if attempt == maxAttempts {
			break
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return chantal.Digest{}, 0, &chantal.Error{Op: "sync.downloadOne", Kind: chantal.ErrCancelled, Inner: ctx.Err()}
		}
		backoff *= 2
		if backoff > backoffCap {
			backoff = backoffCap
		}
	}
	return chantal.Digest{}, 0, lastErr
}

func asChantalError(err error, target **chantal.Error) bool {
	cerr, ok := err.(*chantal.Error)
	if !ok {
		return false
	}
	*target = cerr
	return true
}

func (d *Downloader) fetchAndIngest(ctx context.Context, client *http.Client, baseURL string, r family.Record) (chantal.Digest, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/"+r.RelativeURL, nil)
	if err != nil {
		return chantal.Digest{}, 0, &chantal.Error{Op: "sync.fetchAndIngest", Kind: chantal.ErrConfig, Inner: err}
	}
	resp, err := client.Do(req)
	if err != nil {
		return chantal.Digest{}, 0, &chantal.Error{Op: "sync.fetchAndIngest", Kind: chantal.ErrNetwork, Inner: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return chantal.Digest{}, 0, &chantal.Error{Op: "sync.fetchAndIngest", Kind: chantal.ErrNetwork, Message: resp.Status}
	}

	digest, size, err := d.Store.Ingest(ctx, resp.Body)
	if err != nil {
		return chantal.Digest{}, 0, err
	}
	if r.HasSHA256Hint() && digest.String() != r.SHA256Hint.String() {
		return chantal.Digest{}, 0, &chantal.Error{Op: "sync.fetchAndIngest", Kind: chantal.ErrIntegrity,
			Message: fmt.Sprintf("%s: hinted sha256 %s, got %s", r.Filename, r.SHA256Hint, digest)}
	}
	return digest, size, nil
}
