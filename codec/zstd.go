package codec

import (
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/slauger/chantal"
)

func newZstdReader(r io.Reader) (io.ReadCloser, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, &chantal.Error{Op: "codec.zstd", Kind: chantal.ErrParse, Inner: err}
	}
	return zr.IOReadCloser(), nil
}

// zstdLevel maps the codec package's gzip-style 1-9 level scale onto
// klauspost/compress/zstd's four encoder speed/ratio presets.
func zstdLevel(level int) zstd.EncoderLevel {
	switch {
	case level <= 1:
		return zstd.SpeedFastest
	case level <= 3:
		return zstd.SpeedDefault
	case level <= 7:
		return zstd.SpeedBetterCompression
	default:
		return zstd.SpeedBestCompression
	}
}

func newZstdWriter(w io.Writer, level int) (io.WriteCloser, error) {
	zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstdLevel(level)))
	if err != nil {
		return nil, &chantal.Error{Op: "codec.zstd", Kind: chantal.ErrConfig, Inner: err}
	}
	return zw, nil
}
