package rpm

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"log/slog"
	"runtime/trace"

	"golang.org/x/crypto/openpgp"
	"golang.org/x/crypto/openpgp/armor"

	"github.com/slauger/chantal"
	"github.com/slauger/chantal/codec"
	"github.com/slauger/chantal/family"
)

// Publish creates <root>/Packages/ and hardlinks every package there using
// its upstream filename, then emits primary.xml, filelists.xml, and
// other.xml under <root>/repodata/, compressed with opts.CompressionFormat
// (gzip by default), and a repomd.xml indexing all three (spec.md §4.8).
func (f *Family) Publish(ctx context.Context, w family.PublishWriter, set family.PackageSet, opts family.PublishOptions) error {
	defer trace.StartRegion(ctx, "rpm.Publish").End()
	slog.InfoContext(ctx, "publish start", "component", "rpm.Publish", "packages", len(set.Packages))

	format := codec.Gzip
	if opts.CompressionFormat != "" {
		format = codec.Format(opts.CompressionFormat)
	}

	entries := make([]primaryPackage, 0, len(set.Packages))
	for _, pkg := range set.Packages {
		if pkg.FamilyMetadata.RPM == nil {
			return &chantal.Error{Op: "rpm.Publish", Kind: chantal.ErrConfig, Message: "package missing RPM metadata: " + pkg.Filename}
		}
		relPath := "Packages/" + pkg.Filename
		if err := w.Hardlink(pkg.SHA256, relPath); err != nil {
			return &chantal.Error{Op: "rpm.Publish", Kind: chantal.ErrIO, Inner: err}
		}
		entries = append(entries, toPrimaryPackage(pkg, relPath))
	}

	primaryXML, err := xml.MarshalIndent(primaryMetadata{Packages: entries}, "", "  ")
	if err != nil {
		return &chantal.Error{Op: "rpm.Publish", Kind: chantal.ErrInternal, Inner: err}
	}
	filelistsXML, err := xml.MarshalIndent(filelists{Packages: filelistEntries(entries)}, "", "  ")
	if err != nil {
		return &chantal.Error{Op: "rpm.Publish", Kind: chantal.ErrInternal, Inner: err}
	}
	otherXML, err := xml.MarshalIndent(otherdata{Packages: otherEntries(entries)}, "", "  ")
	if err != nil {
		return &chantal.Error{Op: "rpm.Publish", Kind: chantal.ErrInternal, Inner: err}
	}

	repomdData := make([]repomdEntry, 0, 3)
	for _, doc := range []struct {
		typ, name string
		raw       []byte
	}{
		{"primary", "primary.xml", primaryXML},
		{"filelists", "filelists.xml", filelistsXML},
		{"other", "other.xml", otherXML},
	} {
		entry, err := writeRepodataFile(ctx, w, format, doc.typ, doc.name, doc.raw)
		if err != nil {
			return err
		}
		repomdData = append(repomdData, entry)
	}

	repomdXML, err := xml.MarshalIndent(repomd{Data: repomdData}, "", "  ")
	if err != nil {
		return &chantal.Error{Op: "rpm.Publish", Kind: chantal.ErrInternal, Inner: err}
	}
	repomdXML = append([]byte(xml.Header), repomdXML...)
	if err := w.WriteFile("repodata/repomd.xml", bytes.NewReader(repomdXML)); err != nil {
		return &chantal.Error{Op: "rpm.Publish", Kind: chantal.ErrIO, Inner: err}
	}

	if len(opts.SigningKey) > 0 {
		sig, err := signRepomd(repomdXML, opts.SigningKey)
		if err != nil {
			return &chantal.Error{Op: "rpm.Publish", Kind: chantal.ErrSignature, Inner: err}
		}
		if err := w.WriteFile("repodata/repomd.xml.asc", bytes.NewReader(sig)); err != nil {
			return &chantal.Error{Op: "rpm.Publish", Kind: chantal.ErrIO, Inner: err}
		}
	}

	slog.InfoContext(ctx, "publish done", "component", "rpm.Publish")
	return nil
}

func writeRepodataFile(ctx context.Context, w family.PublishWriter, format codec.Format, typ, name string, raw []byte) (repomdEntry, error) {
	openSum := sha256.Sum256(raw)

	var compressed bytes.Buffer
	cw, err := codec.NewWriter(ctx, format, &compressed, 0)
	if err != nil {
		return repomdEntry{}, &chantal.Error{Op: "rpm.Publish", Kind: chantal.ErrUnknownCompression, Inner: err}
	}
	if _, err := cw.Write(raw); err != nil {
		return repomdEntry{}, &chantal.Error{Op: "rpm.Publish", Kind: chantal.ErrIO, Inner: err}
	}
	if err := cw.Close(); err != nil {
		return repomdEntry{}, &chantal.Error{Op: "rpm.Publish", Kind: chantal.ErrIO, Inner: err}
	}

	fileName := name + format.Extension()
	relPath := "repodata/" + fileName
	if err := w.WriteFile(relPath, bytes.NewReader(compressed.Bytes())); err != nil {
		return repomdEntry{}, &chantal.Error{Op: "rpm.Publish", Kind: chantal.ErrIO, Inner: err}
	}

	sum := sha256.Sum256(compressed.Bytes())
	entry := repomdEntry{Type: typ}
	entry.Location.Href = relPath
	entry.Checksum.Type = "sha256"
	entry.Checksum.Value = hex.EncodeToString(sum[:])
	entry.OpenChecksum.Type = "sha256"
	entry.OpenChecksum.Value = hex.EncodeToString(openSum[:])
	return entry, nil
}

func signRepomd(raw, signingKey []byte) ([]byte, error) {
	entities, err := openpgp.ReadKeyRing(bytes.NewReader(signingKey))
	if err != nil {
		entities, err = readArmoredPrivateKey(signingKey)
		if err != nil {
			return nil, err
		}
	}
	if len(entities) == 0 {
		return nil, fmt.Errorf("rpm: signing key contains no entities")
	}
	var sig bytes.Buffer
	if err := openpgp.ArmoredDetachSign(&sig, entities[0], bytes.NewReader(raw), nil); err != nil {
		return nil, err
	}
	return sig.Bytes(), nil
}

func readArmoredPrivateKey(raw []byte) (openpgp.EntityList, error) {
	block, err := armor.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	return openpgp.ReadKeyRing(block.Body)
}

func toPrimaryPackage(pkg chantal.Package, relPath string) primaryPackage {
	m := pkg.FamilyMetadata.RPM
	p := primaryPackage{
		Type:     "rpm",
		Name:     m.Name,
		Packager: m.Overflow["packager"],
		URL:      m.Overflow["url"],
		Summary:  m.Summary,
	}
	p.Description = m.Description
	p.Arch = m.Arch
	p.Version.Epoch = m.Epoch
	p.Version.Ver = m.Version
	p.Version.Rel = m.Release
	p.Checksum.Type = "sha256"
	p.Checksum.Value = pkg.SHA256.String()
	p.Location.Href = relPath
	p.Size.Package = pkg.Size
	for _, r := range m.Requires {
		p.Format.Requires.Entries = append(p.Format.Requires.Entries, depEntry{Name: r})
	}
	for _, r := range m.Provides {
		p.Format.Provides.Entries = append(p.Format.Provides.Entries, depEntry{Name: r})
	}
	for _, r := range m.Conflicts {
		p.Format.Conflicts.Entries = append(p.Format.Conflicts.Entries, depEntry{Name: r})
	}
	for _, r := range m.Obsoletes {
		p.Format.Obsoletes.Entries = append(p.Format.Obsoletes.Entries, depEntry{Name: r})
	}
	return p
}

// filelists and other are intentionally minimal: chantal does not track
// per-file contents or changelog entries, so both carry identifying
// attributes only, which is a valid (if sparse) yum metadata set.
type filelists struct {
	XMLName  xml.Name         `xml:"filelists"`
	Packages []filelistsEntry `xml:"package"`
}

type filelistsEntry struct {
	PkgID   string `xml:"pkgid,attr"`
	Name    string `xml:"name,attr"`
	Arch    string `xml:"arch,attr"`
	Version struct {
		Epoch string `xml:"epoch,attr"`
		Ver   string `xml:"ver,attr"`
		Rel   string `xml:"rel,attr"`
	} `xml:"version"`
}

func filelistEntries(pkgs []primaryPackage) []filelistsEntry {
	out := make([]filelistsEntry, 0, len(pkgs))
	for _, p := range pkgs {
		e := filelistsEntry{PkgID: p.Checksum.Value, Name: p.Name, Arch: p.Arch}
		e.Version = p.Version
		out = append(out, e)
	}
	return out
}

type otherdata struct {
	XMLName  xml.Name     `xml:"otherdata"`
	Packages []otherEntry `xml:"package"`
}

type otherEntry struct {
	PkgID   string `xml:"pkgid,attr"`
	Name    string `xml:"name,attr"`
	Arch    string `xml:"arch,attr"`
	Version struct {
		Epoch string `xml:"epoch,attr"`
		Ver   string `xml:"ver,attr"`
		Rel   string `xml:"rel,attr"`
	} `xml:"version"`
}

func otherEntries(pkgs []primaryPackage) []otherEntry {
	out := make([]otherEntry, 0, len(pkgs))
	for _, p := range pkgs {
		e := otherEntry{PkgID: p.Checksum.Value, Name: p.Name, Arch: p.Arch}
		e.Version = p.Version
		out = append(out, e)
	}
	return out
}
