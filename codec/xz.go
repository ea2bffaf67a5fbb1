package codec

import (
	"io"

	"github.com/ulikunitz/xz"

	"github.com/slauger/chantal"
)

func newXZReader(r io.Reader) (io.ReadCloser, error) {
	xr, err := xz.NewReader(r)
	if err != nil {
		return nil, &chantal.Error{Op: "codec.xz", Kind: chantal.ErrParse, Inner: err}
	}
	return io.NopCloser(xr), nil
}

// xz doesn't expose a numeric compression level comparable to gzip/zstd; its
// preset knobs trade dictionary size for ratio. NewWriter uses the package
// default preset, which is what upstream RPM/DEB mirrors that emit .xz
// indexes typically target.
func newXZWriter(w io.Writer) (io.WriteCloser, error) {
	xw, err := xz.NewWriter(w)
	if err != nil {
		return nil, &chantal.Error{Op: "codec.xz", Kind: chantal.ErrConfig, Inner: err}
	}
	return xw, nil
}
