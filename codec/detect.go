package codec

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/slauger/chantal"
)

var magic = []struct {
	format Format
	bytes  []byte
}{
	{Gzip, []byte{0x1f, 0x8b}},
	{Bzip2, []byte{0x42, 0x5a, 0x68}},
	{XZ, []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00}},
	{Zstd, []byte{0x28, 0xb5, 0x2f, 0xfd}},
}

// DetectByExtension maps a filename's extension to a Format. Returns ("", false)
// if the extension isn't recognized.
func DetectByExtension(name string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".gz", ".gzip":
		return Gzip, true
	case ".bz2":
		return Bzip2, true
	case ".xz":
		return XZ, true
	case ".zst", ".zstd":
		return Zstd, true
	default:
		return "", false
	}
}

// DetectByMagic sniffs the format from the leading bytes of content.
// Returns ("", false) if none of the known magic sequences match.
func DetectByMagic(head []byte) (Format, bool) {
	for _, m := range magic {
		if bytes.HasPrefix(head, m.bytes) {
			return m.format, true
		}
	}
	return "", false
}

// Detect resolves a Format for name/head, trying the filename extension
// first and falling back to magic-byte sniffing (spec.md §4.3). name may be
// empty if no filename hint is available.
func Detect(name string, head []byte) (Format, error) {
	if name != "" {
		if f, ok := DetectByExtension(name); ok {
			return f, nil
		}
	}
	if f, ok := DetectByMagic(head); ok {
		return f, nil
	}
	return "", &chantal.Error{Op: "codec.Detect", Kind: chantal.ErrUnknownCompression, Message: name}
}
