// Package helm implements the Helm Family: parsing index.yaml, optional
// chart provenance (.prov) verification, and publishing a Helm chart
// repository (spec.md §4.4, §4.5 step 6, §4.8).
package helm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/http"
	"runtime/trace"
	"strings"

	"sigs.k8s.io/yaml"

	"helm.sh/helm/v3/pkg/repo"

	"github.com/slauger/chantal"
	"github.com/slauger/chantal/family"
)

// Family implements family.Family for Helm chart repositories. baseURL and
// client are bound per-repository by the Sync Engine (see syncer.go),
// matching the convention established by rpm.Family and deb.Family.
type Family struct {
	baseURL string
	client  *http.Client
}

func New() *Family { return &Family{} }

func (*Family) Name() string { return string(chantal.Helm) }

// Parse expects raw to be index.yaml. index.yaml uses JSON field tags
// throughout (repo.IndexFile, chart.Metadata), so it is decoded with
// sigs.k8s.io/yaml rather than gopkg.in/yaml.v3: the latter falls back to
// lower-cased Go field names when no `yaml:` tag is present, which would
// miss camelCase keys like apiVersion entirely. fetchAux is unused: Helm's
// index is self-contained, like APK's.
func (f *Family) Parse(ctx context.Context, raw []byte, fetchAux family.FetchAuxFunc) ([]family.Record, family.IndexDigest, error) {
	defer trace.StartRegion(ctx, "helm.Parse").End()
	slog.DebugContext(ctx, "parse start", "component", "helm.Parse")
	defer slog.DebugContext(ctx, "parse done", "component", "helm.Parse")

	var idx repo.IndexFile
	if err := yaml.Unmarshal(raw, &idx); err != nil {
		return nil, "", &chantal.Error{Op: "helm.Parse", Kind: chantal.ErrParse, Inner: err}
	}
	if idx.APIVersion == "" {
		return nil, "", &chantal.Error{Op: "helm.Parse", Kind: chantal.ErrParse, Message: "index.yaml missing apiVersion"}
	}

	var records []family.Record
	for name, versions := range idx.Entries {
		for _, cv := range versions {
			if cv.Removed {
				continue
			}
			m := toMetadata(cv)
			filename := name + "-" + cv.Version + ".tgz"
			rec := family.Record{
				Filename: filename,
				SizeHint: 0,
				Metadata: chantal.FamilyMetadata{Helm: m},
			}
			if len(cv.URLs) > 0 {
				rec.RelativeURL = relativize(cv.URLs[0])
			} else {
				rec.RelativeURL = filename
			}
			if d, ok := decodeDigest(cv.Digest); ok {
				rec.SHA256Hint = d
			}
			records = append(records, rec)
		}
	}

	h := sha256.Sum256(raw)
	return records, family.IndexDigest(hex.EncodeToString(h[:])), nil
}

// relativize strips a scheme+host prefix from an index.yaml chart URL,
// since fetchAux/download operate relative to the repository root; chart
// repositories are free to list either absolute or root-relative URLs.
func relativize(u string) string {
	if i := strings.Index(u, "://"); i >= 0 {
		rest := u[i+3:]
		if j := strings.IndexByte(rest, '/'); j >= 0 {
			return rest[j+1:]
		}
		return rest
	}
	return strings.TrimPrefix(u, "/")
}

// decodeDigest reports whether digest is a bare-hex sha256, the format
// repo.ChartVersion.Digest uses (unlike APK's Q1-prefixed base64 checksum).
func decodeDigest(digest string) (chantal.Digest, bool) {
	if len(digest) != hex.EncodedLen(sha256.Size) {
		return chantal.Digest{}, false
	}
	d, err := chantal.ParseDigest(digest)
	if err != nil {
		return chantal.Digest{}, false
	}
	return d, true
}
