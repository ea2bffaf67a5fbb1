package codec_test

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slauger/chantal/codec"
)

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	payload := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog\n"), 200)

	for _, f := range []codec.Format{codec.None, codec.Gzip, codec.Bzip2, codec.XZ, codec.Zstd} {
		t.Run(string(f), func(t *testing.T) {
			var buf bytes.Buffer
			w, err := codec.NewWriter(ctx, f, &buf, 0)
			require.NoError(t, err)
			_, err = w.Write(payload)
			require.NoError(t, err)
			require.NoError(t, w.Close())

			r, err := codec.NewReader(ctx, f, &buf)
			require.NoError(t, err)
			defer r.Close()

			got, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, payload, got)
		})
	}
}

func TestNewReaderUnknownFormat(t *testing.T) {
	_, err := codec.NewReader(context.Background(), codec.Format("lz4"), bytes.NewReader(nil))
	require.Error(t, err)
}

func TestDetectByExtension(t *testing.T) {
	cases := map[string]codec.Format{
		"primary.xml.gz":   codec.Gzip,
		"Packages.bz2":     codec.Bzip2,
		"Packages.xz":      codec.XZ,
		"APKINDEX.zst":     codec.Zstd,
		"index.yaml":       "",
	}
	for name, want := range cases {
		got, ok := codec.DetectByExtension(name)
		if want == "" {
			assert.False(t, ok, name)
			continue
		}
		assert.True(t, ok, name)
		assert.Equal(t, want, got, name)
	}
}

func TestDetectByMagic(t *testing.T) {
	cases := []struct {
		name string
		head []byte
		want codec.Format
	}{
		{"gzip", []byte{0x1f, 0x8b, 0x08, 0x00}, codec.Gzip},
		{"bzip2", []byte{0x42, 0x5a, 0x68, 0x39}, codec.Bzip2},
		{"xz", []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00, 0x00}, codec.XZ},
		{"zstd", []byte{0x28, 0xb5, 0x2f, 0xfd, 0x01}, codec.Zstd},
	}
	for _, c := range cases {
		got, ok := codec.DetectByMagic(c.head)
		require.True(t, ok, c.name)
		assert.Equal(t, c.want, got, c.name)
	}

	_, ok := codec.DetectByMagic([]byte{0x00, 0x01, 0x02})
	assert.False(t, ok)
}

func TestDetectPrefersExtension(t *testing.T) {
	// magic bytes say gzip, but the extension hint should win per spec precedence
	gz := []byte{0x1f, 0x8b, 0x08, 0x00}
	got, err := codec.Detect("Packages.xz", gz)
	require.NoError(t, err)
	assert.Equal(t, codec.XZ, got)
}

func TestDefaultLevels(t *testing.T) {
	assert.Equal(t, 6, codec.Gzip.DefaultLevel())
	assert.Equal(t, 9, codec.Bzip2.DefaultLevel())
	assert.Equal(t, 3, codec.Zstd.DefaultLevel())
	assert.Equal(t, 0, codec.None.DefaultLevel())
}
