// Package apk implements the APK Family: parsing APKINDEX.tar.gz, verifying
// its embedded signature, and publishing an Alpine-compatible repository
// tree (spec.md §4.4, §4.5, §4.8).
package apk

import (
	"archive/tar"
	"bytes"
	"io"

	"github.com/klauspost/compress/gzip"

	"github.com/slauger/chantal"
)

// indexMember is the tar entry name holding the stanza database inside
// APKINDEX.tar.gz.
const indexMember = "APKINDEX"

// extractIndex pulls the APKINDEX member out of a tar.gz archive.
//
// A real Alpine APKINDEX.tar.gz is two concatenated gzip members: the first
// holds a detached RSA signature (".SIGN.RSA.<keyname>.pub"), the second a
// plain tar with APKINDEX and DESCRIPTION. chantal's own republished
// archives (publisher.go) only ever write the single data member — the
// signature, when present, is handled out of band by VerifySignature
// against a separate signature file it fetches itself — so a single
// gzip.Reader over one tar stream is sufficient here.
func extractIndex(raw []byte) ([]byte, error) {
	gz, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, &chantal.Error{Op: "apk.extractIndex", Kind: chantal.ErrParse, Inner: err}
	}
	defer gz.Close()
	tr := tar.NewReader(gz)
	for {
		h, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &chantal.Error{Op: "apk.extractIndex", Kind: chantal.ErrParse, Inner: err}
		}
		if h.Name == indexMember {
			return io.ReadAll(tr)
		}
	}
	return nil, &chantal.Error{Op: "apk.extractIndex", Kind: chantal.ErrParse, Message: "no APKINDEX member in archive"}
}

// buildIndexArchive wraps indexText as the sole member of a tar.gz archive,
// the layout extractIndex expects.
func buildIndexArchive(indexText []byte) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	hdr := &tar.Header{Name: indexMember, Mode: 0o644, Size: int64(len(indexText))}
	if err := tw.WriteHeader(hdr); err != nil {
		return nil, &chantal.Error{Op: "apk.buildIndexArchive", Kind: chantal.ErrIO, Inner: err}
	}
	if _, err := tw.Write(indexText); err != nil {
		return nil, &chantal.Error{Op: "apk.buildIndexArchive", Kind: chantal.ErrIO, Inner: err}
	}
	if err := tw.Close(); err != nil {
		return nil, &chantal.Error{Op: "apk.buildIndexArchive", Kind: chantal.ErrIO, Inner: err}
	}
	if err := gz.Close(); err != nil {
		return nil, &chantal.Error{Op: "apk.buildIndexArchive", Kind: chantal.ErrIO, Inner: err}
	}
	return buf.Bytes(), nil
}
