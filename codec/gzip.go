package codec

import (
	"io"

	"github.com/klauspost/compress/gzip"

	"github.com/slauger/chantal"
)

func newGzipReader(r io.Reader) (io.ReadCloser, error) {
	gr, err := gzip.NewReader(r)
	if err != nil {
		return nil, &chantal.Error{Op: "codec.gzip", Kind: chantal.ErrParse, Inner: err}
	}
	return gr, nil
}

func newGzipWriter(w io.Writer, level int) (io.WriteCloser, error) {
	gw, err := gzip.NewWriterLevel(w, level)
	if err != nil {
		return nil, &chantal.Error{Op: "codec.gzip", Kind: chantal.ErrConfig, Inner: err}
	}
	return gw, nil
}
