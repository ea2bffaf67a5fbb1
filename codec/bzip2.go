package codec

import (
	"io"

	"github.com/dsnet/compress/bzip2"

	"github.com/slauger/chantal"
)

// dsnet/compress/bzip2 is used over the standard library's compress/bzip2
// because the stdlib package is decode-only; the Codec Layer needs a
// symmetric compress/decompress API (spec.md §4.3).

func newBzip2Reader(r io.Reader) (io.ReadCloser, error) {
	br, err := bzip2.NewReader(r, nil)
	if err != nil {
		return nil, &chantal.Error{Op: "codec.bzip2", Kind: chantal.ErrParse, Inner: err}
	}
	return br, nil
}

func newBzip2Writer(w io.Writer, level int) (io.WriteCloser, error) {
	bw, err := bzip2.NewWriter(w, &bzip2.WriterConfig{Level: level})
	if err != nil {
		return nil, &chantal.Error{Op: "codec.bzip2", Kind: chantal.ErrConfig, Inner: err}
	}
	return bw, nil
}
