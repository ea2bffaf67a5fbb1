package apk

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"log/slog"
	"net/http"
	"runtime/trace"

	"github.com/slauger/chantal"
	"github.com/slauger/chantal/family"
)

var b64 = base64.StdEncoding

// Family implements family.Family for Alpine APK repositories. baseURL and
// client are bound per-repository by the Sync Engine (see syncer.go).
type Family struct {
	baseURL string
	client  *http.Client
}

func New() *Family { return &Family{} }

func (*Family) Name() string { return string(chantal.APK) }

// Parse expects raw to be APKINDEX.tar.gz. fetchAux is unused: APK's index
// is self-contained, unlike RPM's repomd.xml/primary.xml split or DEB's
// Release/Packages split.
func (f *Family) Parse(ctx context.Context, raw []byte, fetchAux family.FetchAuxFunc) ([]family.Record, family.IndexDigest, error) {
	defer trace.StartRegion(ctx, "apk.Parse").End()
	slog.DebugContext(ctx, "parse start", "component", "apk.Parse")
	defer slog.DebugContext(ctx, "parse done", "component", "apk.Parse")

	indexText, err := extractIndex(raw)
	if err != nil {
		return nil, "", err
	}

	stanzas := splitStanzas(indexText)
	records := make([]family.Record, 0, len(stanzas))
	for _, s := range stanzas {
		m := toMetadata(s)
		filename := m.Name + "-" + m.Version + ".apk"
		rec := family.Record{
			Filename:    filename,
			RelativeURL: m.Architecture + "/" + filename,
			SizeHint:    m.Size,
			Metadata:    chantal.FamilyMetadata{APK: m},
		}
		if d, ok := decodeQ1(m.Checksum); ok {
			rec.SHA256Hint = d
		}
		records = append(records, rec)
	}

	h := sha256.Sum256(raw)
	return records, family.IndexDigest(hex.EncodeToString(h[:])), nil
}

// decodeQ1 reports whether checksum is a sha256 hint. APKINDEX's "C:" field
// is "Q1"+base64(sha1), and chantal's own republished indexes carry that
// upstream value unchanged; since Record.SHA256Hint is sha256-only, a
// checksum that doesn't decode to exactly sha256.Size bytes (a sha1 one
// included) is treated as absent rather than guessed at.
func decodeQ1(checksum string) (chantal.Digest, bool) {
	const prefix = "Q1"
	if len(checksum) <= len(prefix) || checksum[:len(prefix)] != prefix {
		return chantal.Digest{}, false
	}
	raw, err := b64.DecodeString(checksum[len(prefix):])
	if err != nil || len(raw) != sha256.Size {
		return chantal.Digest{}, false
	}
	d, err := chantal.NewDigest(raw)
	if err != nil {
		return chantal.Digest{}, false
	}
	return d, true
}
