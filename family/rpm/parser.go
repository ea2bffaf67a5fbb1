// Package rpm implements the RPM Family: parsing repomd.xml/primary.xml,
// verifying repomd.xml.asc, and publishing a yum-compatible repository tree
// (spec.md §4.4, §4.5, §4.8).
package rpm

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"net/http"
	"runtime/trace"

	"golang.org/x/text/encoding/unicode"

	"github.com/slauger/chantal"
	"github.com/slauger/chantal/codec"
	"github.com/slauger/chantal/family"
)

// Family implements family.Family for RPM repositories. baseURL and client
// are unset on the compiled-in Registry prototype and bound per-repository
// by the Sync Engine through the sourceConfigurer optional interface (see
// syncer.go).
type Family struct {
	baseURL string
	client  *http.Client
}

func New() *Family { return &Family{} }

func (*Family) Name() string { return string(chantal.RPM) }

// Parse expects raw to be repomd.xml. It locates primary.xml via fetchAux,
// decompresses it if named with a known codec extension, and converts each
// <package> entry into a family.Record.
func (f *Family) Parse(ctx context.Context, raw []byte, fetchAux family.FetchAuxFunc) ([]family.Record, family.IndexDigest, error) {
	defer trace.StartRegion(ctx, "rpm.Parse").End()
	slog.DebugContext(ctx, "parse start", "component", "rpm.Parse")
	defer slog.DebugContext(ctx, "parse done", "component", "rpm.Parse")

	raw = stripBOM(raw)
	md, err := parseRepomd(raw)
	if err != nil {
		return nil, "", &chantal.Error{Op: "rpm.Parse", Kind: chantal.ErrParse, Inner: err}
	}
	href, ok := md.primaryLocation()
	if !ok {
		return nil, "", &chantal.Error{Op: "rpm.Parse", Kind: chantal.ErrParse, Message: "repomd.xml has no primary data entry"}
	}

	compressed, err := fetchAux(ctx, href)
	if err != nil {
		return nil, "", &chantal.Error{Op: "rpm.Parse", Kind: chantal.ErrNetwork, Inner: err}
	}

	primaryRaw, err := decompress(ctx, href, compressed)
	if err != nil {
		return nil, "", err
	}
	primaryRaw = stripBOM(primaryRaw)

	parsed, err := parsePrimary(primaryRaw)
	if err != nil {
		return nil, "", &chantal.Error{Op: "rpm.Parse", Kind: chantal.ErrParse, Inner: err}
	}

	records := make([]family.Record, 0, len(parsed.Packages))
	for _, p := range parsed.Packages {
		rec := family.Record{
			Filename:    baseName(p.Location.Href),
			RelativeURL: p.Location.Href,
			SizeHint:    p.Size.Package,
			Metadata:    chantal.FamilyMetadata{RPM: toMetadata(p)},
		}
		if p.Checksum.Type == "sha256" && len(p.Checksum.Value) == hex.EncodedLen(sha256HashSize) {
			if d, err := chantal.ParseDigest(p.Checksum.Value); err == nil {
				rec.SHA256Hint = d
			}
		}
		records = append(records, rec)
	}

	h := sha256.Sum256(raw)
	return records, family.IndexDigest(hex.EncodeToString(h[:])), nil
}

const sha256HashSize = sha256.Size

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
		return nil, &chantal.Error{Op: "rpm.decompress", Kind: chantal.ErrUnknownCompression, Inner: err}
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, &chantal.Error{Op: "rpm.decompress", Kind: chantal.ErrParse, Inner: err}
	}
	return out, nil
}

// stripBOM removes a UTF-8/UTF-16 byte-order mark if present, per spec.md
// §4.4's resilience requirement. golang.org/x/text/encoding/unicode's BOM
// override is the teacher's dependency for this; here it's used directly on
// raw bytes rather than wrapped around an io.Reader, since the index is
// already fully buffered by the Sync Engine.
func stripBOM(b []byte) []byte {
	bom := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	out, _, err := bom.Transform(make([]byte, len(b)), b, true)
	if err != nil || len(out) == 0 {
		return b
	}
	return out[:len(out)]
}

func baseName(href string) string {
	for i := len(href) - 1; i >= 0; i-- {
		if href[i] == '/' {
			return href[i+1:]
		}
	}
	return href
}
