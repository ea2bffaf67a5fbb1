package helm

import (
	"bytes"
	"context"
	"log/slog"
	"runtime/trace"
	"sort"
	"time"

	"golang.org/x/crypto/openpgp"
	"golang.org/x/crypto/openpgp/armor"
	"golang.org/x/crypto/openpgp/clearsign"

	"helm.sh/helm/v3/pkg/repo"
	"sigs.k8s.io/yaml"

	"github.com/slauger/chantal"
	"github.com/slauger/chantal/family"
)

// Publish writes every chart .tgz at the publication root and emits a
// single index.yaml covering all of them (spec.md §4.8; Helm charts, unlike
// RPM/DEB/APK, have no per-architecture split). If opts.SigningKey is set,
// a .prov file is written alongside each chart.
func (f *Family) Publish(ctx context.Context, w family.PublishWriter, set family.PackageSet, opts family.PublishOptions) error {
	defer trace.StartRegion(ctx, "helm.Publish").End()
	slog.InfoContext(ctx, "publish start", "component", "helm.Publish", "packages", len(set.Packages))

	idx := repo.NewIndexFile()
	now := time.Now()

	pkgs := append([]chantal.Package(nil), set.Packages...)
	sort.Slice(pkgs, func(i, j int) bool { return pkgs[i].Filename < pkgs[j].Filename })

	for _, pkg := range pkgs {
		m := pkg.FamilyMetadata.Helm
		if m == nil {
			return &chantal.Error{Op: "helm.Publish", Kind: chantal.ErrConfig, Message: "package missing Helm metadata: " + pkg.Filename}
		}
		if err := w.Hardlink(pkg.SHA256, pkg.Filename); err != nil {
			return &chantal.Error{Op: "helm.Publish", Kind: chantal.ErrIO, Inner: err}
		}

		digest := m.Digest
		if digest == "" {
			digest = pkg.SHA256.String()
		}
		cv := fromMetadata(m, []string{pkg.Filename}, now)
		cv.Digest = digest
		idx.Entries[m.Name] = append(idx.Entries[m.Name], cv)

		if len(opts.SigningKey) > 0 {
			prov, err := buildProvenance(m, pkg, opts.SigningKey)
			if err != nil {
				return &chantal.Error{Op: "helm.Publish", Kind: chantal.ErrSignature, Inner: err}
			}
			if err := w.WriteFile(pkg.Filename+".prov", bytes.NewReader(prov)); err != nil {
				return &chantal.Error{Op: "helm.Publish", Kind: chantal.ErrIO, Inner: err}
			}
		}
	}

	idx.SortEntries()
	idx.Generated = now

	out, err := yaml.Marshal(idx)
	if err != nil {
		return &chantal.Error{Op: "helm.Publish", Kind: chantal.ErrInternal, Inner: err}
	}
	if err := w.WriteFile("index.yaml", bytes.NewReader(out)); err != nil {
		return &chantal.Error{Op: "helm.Publish", Kind: chantal.ErrIO, Inner: err}
	}

	slog.InfoContext(ctx, "publish done", "component", "helm.Publish")
	return nil
}

// buildProvenance renders a minimal PGP-clearsigned provenance document:
// the chart's identity plus its sha256, in the spirit of Helm's own
// provenance format (a Chart.yaml dump followed by a "files:" checksum
// section), signed with the same clearsign envelope VerifyProvenance reads
// back in syncer.go.
func buildProvenance(m *chantal.HelmMetadata, pkg chantal.Package, signingKey []byte) ([]byte, error) {
	entity, err := readSigningEntity(signingKey)
	if err != nil {
		return nil, err
	}

	var plain bytes.Buffer
	plain.WriteString("name: " + m.Name + "\n")
	plain.WriteString("version: " + m.Version + "\n")
	plain.WriteString("...\n")
	plain.WriteString("files:\n")
	plain.WriteString("  " + pkg.Filename + ": sha256:" + pkg.SHA256.String() + "\n")

	var out bytes.Buffer
	wc, err := clearsign.Encode(&out, entity.PrivateKey, nil)
	if err != nil {
		return nil, err
	}
	if _, err := wc.Write(plain.Bytes()); err != nil {
		return nil, err
	}
	if err := wc.Close(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func readSigningEntity(key []byte) (*openpgp.Entity, error) {
	entities, err := openpgp.ReadKeyRing(bytes.NewReader(key))
	if err == nil && len(entities) > 0 {
		return entities[0], nil
	}
	block, err := armor.Decode(bytes.NewReader(key))
	if err != nil {
		return nil, err
	}
	entities, err = openpgp.ReadKeyRing(block.Body)
	if err != nil {
		return nil, err
	}
	return entities[0], nil
}
