// Package codec implements the Compression/Codec Layer (spec.md §4.3): a
// uniform compress/decompress API over the formats upstream package
// repositories use for their indexes, plus format detection by filename
// extension and magic bytes.
package codec

import (
	"context"
	"io"
	"runtime/trace"

	"github.com/slauger/chantal"
)

// Format identifies a supported compression format.
type Format string

const (
	None  Format = "none"
	Gzip  Format = "gzip"
	Bzip2 Format = "bzip2"
	XZ    Format = "xz"
	Zstd  Format = "zstd"
)

// DefaultLevel returns the format's default compression level, mirroring the
// original's per-format level table (src/chantal/plugins/rpm/compression.py).
// None has no meaningful level and returns 0.
func (f Format) DefaultLevel() int {
	switch f {
	case Gzip:
		return 6
	case Bzip2:
		return 9
	case Zstd:
		return 3
	default:
		return 0
	}
}

// Extension returns the file extension conventionally used for this format,
// including the leading dot. None has no extension.
func (f Format) Extension() string {
	switch f {
	case Gzip:
		return ".gz"
	case Bzip2:
		return ".bz2"
	case XZ:
		return ".xz"
	case Zstd:
		return ".zst"
	default:
		return ""
	}
}

// NewReader returns a decompressing reader for the given format. The caller
// must Close the returned reader if it implements io.Closer.
func NewReader(ctx context.Context, f Format, r io.Reader) (io.ReadCloser, error) {
	defer trace.StartRegion(ctx, "codec.NewReader").End()
	switch f {
	case None:
		return io.NopCloser(r), nil
	case Gzip:
		return newGzipReader(r)
	case Bzip2:
		return newBzip2Reader(r)
	case XZ:
		return newXZReader(r)
	case Zstd:
		return newZstdReader(r)
	default:
		return nil, &chantal.Error{Op: "codec.NewReader", Kind: chantal.ErrUnknownCompression,
			Message: string(f)}
	}
}

// NewWriter returns a compressing writer for the given format at level. A
// level of 0 selects the format's DefaultLevel. The caller must Close the
// returned writer to flush trailing data. None's writer is a plain passthrough
// that ignores Close semantics beyond what the wrapped writer requires.
func NewWriter(ctx context.Context, f Format, w io.Writer, level int) (io.WriteCloser, error) {
	defer trace.StartRegion(ctx, "codec.NewWriter").End()
	if level == 0 {
		level = f.DefaultLevel()
	}
	switch f {
	case None:
		return nopWriteCloser{w}, nil
	case Gzip:
		return newGzipWriter(w, level)
	case Bzip2:
		return newBzip2Writer(w, level)
	case XZ:
		return newXZWriter(w)
	case Zstd:
		return newZstdWriter(w, level)
	default:
		return nil, &chantal.Error{Op: "codec.NewWriter", Kind: chantal.ErrUnknownCompression,
			Message: string(f)}
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
