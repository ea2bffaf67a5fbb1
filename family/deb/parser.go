// Package deb implements the DEB Family: parsing Release/Packages,
// verifying Release.gpg/InRelease, and publishing an APT-compatible
// dists/ + pool/ tree (spec.md §4.4, §4.5, §4.8).
package deb

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/textproto"
	"runtime/trace"

	"github.com/slauger/chantal"
	"github.com/slauger/chantal/codec"
	"github.com/slauger/chantal/family"
)

// Family implements family.Family for APT/DEB repositories. baseURL and
// client are bound per-repository by the Sync Engine (see syncer.go),
// mirroring rpm.Family's sourceConfigurer pattern.
type Family struct {
	baseURL string
	client  *http.Client
}

func New() *Family { return &Family{} }

func (*Family) Name() string { return string(chantal.DEB) }

// Parse expects raw to be a Release (or already-unwrapped InRelease) file.
// It walks every declared component x architecture pair, fetches that
// binary directory's Packages file through fetchAux, and converts every
// stanza into a family.Record.
func (f *Family) Parse(ctx context.Context, raw []byte, fetchAux family.FetchAuxFunc) ([]family.Record, family.IndexDigest, error) {
	defer trace.StartRegion(ctx, "deb.Parse").End()
	slog.DebugContext(ctx, "parse start", "component", "deb.Parse")
	defer slog.DebugContext(ctx, "parse done", "component", "deb.Parse")

	rel, err := parseRelease(raw)
	if err != nil {
		return nil, "", &chantal.Error{Op: "deb.Parse", Kind: chantal.ErrParse, Inner: err}
	}
	if len(rel.Components) == 0 || len(rel.Architectures) == 0 {
		return nil, "", &chantal.Error{Op: "deb.Parse", Kind: chantal.ErrParse, Message: "Release has no Components/Architectures"}
	}

	var records []family.Record
	for _, comp := range rel.Components {
		for _, arch := range rel.Architectures {
			recs, err := parseOneBinary(ctx, fetchAux, rel, comp, arch)
			if err != nil {
				return nil, "", err
			}
			records = append(records, recs...)
		}
	}

	h := sha256.Sum256(raw)
	return records, family.IndexDigest(hex.EncodeToString(h[:])), nil
}

// preferredExtensions orders the compression forms a Packages file may be
// published as, preferring the smallest transfer.
var preferredExtensions = []string{"xz", "gz", ""}

func parseOneBinary(ctx context.Context, fetchAux family.FetchAuxFunc, rel release, component, arch string) ([]family.Record, error) {
	var raw []byte
	var path string
	var lastErr error
	for _, ext := range preferredExtensions {
		p := binaryPath(component, arch, ext)
		b, err := fetchAux(ctx, p)
		if err != nil {
			lastErr = err
			continue
		}
		raw, path = b, p
		break
	}
	if raw == nil {
		return nil, &chantal.Error{Op: "deb.Parse", Kind: chantal.ErrNetwork, Message: component + "/binary-" + arch, Inner: lastErr}
	}

	plain, err := decompress(ctx, path, raw)
	if err != nil {
		return nil, err
	}

	if entry, ok := rel.SHA256[path]; ok {
		sum := sha256.Sum256(raw)
		if hex.EncodeToString(sum[:]) != entry.Hash {
			return nil, &chantal.Error{Op: "deb.Parse", Kind: chantal.ErrIntegrity, Message: path}
		}
	}

	return parsePackages(plain)
}

func decompress(ctx context.Context, name string, raw []byte) ([]byte, error) {
	head := raw
	if len(head) > 16 {
		head = head[:16]
	}
	format, err := codec.Detect(name, head)
	if err != nil {
		format = codec.None
	}
	r, err := codec.NewReader(ctx, format, bytes.NewReader(raw))
	if err != nil {
		return nil, &chantal.Error{Op: "deb.decompress", Kind: chantal.ErrUnknownCompression, Inner: err}
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, &chantal.Error{Op: "deb.decompress", Kind: chantal.ErrParse, Inner: err}
	}
	return out, nil
}

// parsePackages splits a Packages file into per-package RFC 822 stanzas
// using net/textproto.Reader.ReadMIMEHeader, grounded on the teacher's
// dpkg/scanner.go use of the same package to read dpkg's "status" database
// (also RFC 822 stanzas separated by blank lines).
func parsePackages(raw []byte) ([]family.Record, error) {
	tp := textproto.NewReader(bufio.NewReader(bytes.NewReader(raw)))
	var records []family.Record
	for {
		hdr, err := tp.ReadMIMEHeader()
		if len(hdr) > 0 {
			records = append(records, toRecord(hdr))
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &chantal.Error{Op: "deb.parsePackages", Kind: chantal.ErrParse, Inner: err}
		}
	}
	return records, nil
}

func toRecord(hdr textproto.MIMEHeader) family.Record {
	m := toMetadata(hdr)
	rec := family.Record{
		Filename:    baseName(m.Filename),
		RelativeURL: m.Filename,
		SizeHint:    m.Size,
		Metadata:    chantal.FamilyMetadata{DEB: m},
	}
	if d, err := chantal.ParseDigest(m.SHA256); err == nil {
		rec.SHA256Hint = d
	}
	return rec
}

func baseName(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}
