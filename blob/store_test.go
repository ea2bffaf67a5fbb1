package blob_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slauger/chantal/blob"
)

func TestIngestDedup(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := blob.New(dir)
	require.NoError(t, err)

	content := bytes.Repeat([]byte("chantal"), 1024)

	var wg sync.WaitGroup
	digests := make([]string, 8)
	for i := range digests {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d, n, err := s.Ingest(ctx, bytes.NewReader(content))
			require.NoError(t, err)
			assert.EqualValues(t, len(content), n)
			digests[i] = d.String()
		}(i)
	}
	wg.Wait()

	for _, d := range digests[1:] {
		assert.Equal(t, digests[0], d)
	}

	var count int
	err = filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			count++
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, count, "exactly one blob should exist in the pool")
}

func TestHardlinkConflict(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := blob.New(dir)
	require.NoError(t, err)

	digest, _, err := s.Ingest(ctx, bytes.NewReader([]byte("a")))
	require.NoError(t, err)

	target := filepath.Join(t.TempDir(), "Packages", "a.rpm")
	require.NoError(t, s.Hardlink(digest, target, blob.HardlinkOptions{}))

	// Idempotent: linking again to the same target is a no-op success.
	require.NoError(t, s.Hardlink(digest, target, blob.HardlinkOptions{}))

	other, _, err := s.Ingest(ctx, bytes.NewReader([]byte("b")))
	require.NoError(t, err)

	err = s.Hardlink(other, target, blob.HardlinkOptions{})
	require.Error(t, err)

	require.NoError(t, s.Hardlink(other, target, blob.HardlinkOptions{Overwrite: true}))
}

func TestVerify(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := blob.New(dir)
	require.NoError(t, err)

	digest, _, err := s.Ingest(ctx, bytes.NewReader([]byte("hello")))
	require.NoError(t, err)

	res, err := s.Verify(ctx, digest)
	require.NoError(t, err)
	assert.Equal(t, blob.VerifyOK, res)
}

func TestGarbageCollect(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := blob.New(dir)
	require.NoError(t, err)

	keep, _, err := s.Ingest(ctx, bytes.NewReader([]byte("keep")))
	require.NoError(t, err)
	gone, _, err := s.Ingest(ctx, bytes.NewReader([]byte("gone")))
	require.NoError(t, err)

	removed, freed, err := s.GarbageCollect(ctx, map[string]struct{}{keep.String(): {}})
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.EqualValues(t, 4, freed)

	assert.True(t, s.Exists(keep))
	assert.False(t, s.Exists(gone))
}
