package deb

import (
	"bytes"
	"context"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"runtime/trace"
	"sort"
	"strings"

	"golang.org/x/crypto/openpgp"
	"golang.org/x/crypto/openpgp/armor"
	"golang.org/x/crypto/openpgp/clearsign"

	"github.com/slauger/chantal"
	"github.com/slauger/chantal/codec"
	"github.com/slauger/chantal/family"
)

// defaultSuite and defaultComponent are used when a Package's
// DEBMetadata doesn't let chantal recover its original suite layout (the
// catalog stores only the family-native identity, not the dists/ path it
// arrived from); chantal republishes every mirrored repository as a single
// suite/component pair, which is sufficient for the pull-through mirroring
// use case spec.md §1 describes.
const (
	defaultSuite     = "stable"
	defaultComponent = "main"
)

// Publish lays out dists/<suite>/<component>/binary-<arch>/{Packages,
// Packages.gz, Packages.xz} per declared architecture, hardlinks every
// package under pool/<component>/, and writes a suite Release file
// aggregating MD5Sum/SHA1/SHA256 sections over the binary directory
// contents (spec.md §4.8).
func (f *Family) Publish(ctx context.Context, w family.PublishWriter, set family.PackageSet, opts family.PublishOptions) error {
	defer trace.StartRegion(ctx, "deb.Publish").End()
	slog.InfoContext(ctx, "publish start", "component", "deb.Publish", "packages", len(set.Packages))

	byArch := map[string][]chantal.Package{}
	for _, pkg := range set.Packages {
		if pkg.FamilyMetadata.DEB == nil {
			return &chantal.Error{Op: "deb.Publish", Kind: chantal.ErrConfig, Message: "package missing DEB metadata: " + pkg.Filename}
		}
		arch := pkg.FamilyMetadata.DEB.Architecture
		byArch[arch] = append(byArch[arch], pkg)

		poolPath := "pool/" + defaultComponent + "/" + pkg.Filename
		if err := w.Hardlink(pkg.SHA256, poolPath); err != nil {
			return &chantal.Error{Op: "deb.Publish", Kind: chantal.ErrIO, Inner: err}
		}
	}

	archs := sortedKeys(byArch)
	var entries []hashedFile

	for _, arch := range archs {
		pkgs := byArch[arch]
		sort.Slice(pkgs, func(i, j int) bool { return pkgs[i].Filename < pkgs[j].Filename })

		var plain bytes.Buffer
		for _, pkg := range pkgs {
			plain.WriteString(renderStanza(pkg, "pool/"+defaultComponent+"/"+pkg.Filename))
			plain.WriteString("\n")
		}

		base := defaultComponent + "/binary-" + arch + "/Packages"
		if err := w.WriteFile("dists/"+defaultSuite+"/"+base, bytes.NewReader(plain.Bytes())); err != nil {
			return &chantal.Error{Op: "deb.Publish", Kind: chantal.ErrIO, Inner: err}
		}
		entries = append(entries, hashEntry(base, plain.Bytes()))

		for _, format := range []codec.Format{codec.Gzip, codec.XZ} {
			var compressed bytes.Buffer
			cw, err := codec.NewWriter(ctx, format, &compressed, 0)
			if err != nil {
				return &chantal.Error{Op: "deb.Publish", Kind: chantal.ErrUnknownCompression, Inner: err}
			}
			if _, err := cw.Write(plain.Bytes()); err != nil {
				return &chantal.Error{Op: "deb.Publish", Kind: chantal.ErrIO, Inner: err}
			}
			if err := cw.Close(); err != nil {
				return &chantal.Error{Op: "deb.Publish", Kind: chantal.ErrIO, Inner: err}
			}
			path := base + format.Extension()
			if err := w.WriteFile("dists/"+defaultSuite+"/"+path, bytes.NewReader(compressed.Bytes())); err != nil {
				return &chantal.Error{Op: "deb.Publish", Kind: chantal.ErrIO, Inner: err}
			}
			entries = append(entries, hashEntry(path, compressed.Bytes()))
		}
	}

	releaseText := renderRelease(defaultSuite, []string{defaultComponent}, archs, entries)
	if err := w.WriteFile("dists/"+defaultSuite+"/Release", strings.NewReader(releaseText)); err != nil {
		return &chantal.Error{Op: "deb.Publish", Kind: chantal.ErrIO, Inner: err}
	}

	if len(opts.SigningKey) > 0 {
		entity, err := readSigningEntity(opts.SigningKey)
		if err != nil {
			return &chantal.Error{Op: "deb.Publish", Kind: chantal.ErrSignature, Inner: err}
		}
		var detached bytes.Buffer
		if err := openpgp.ArmoredDetachSign(&detached, entity, strings.NewReader(releaseText), nil); err != nil {
			return &chantal.Error{Op: "deb.Publish", Kind: chantal.ErrSignature, Inner: err}
		}
		if err := w.WriteFile("dists/"+defaultSuite+"/Release.gpg", bytes.NewReader(detached.Bytes())); err != nil {
			return &chantal.Error{Op: "deb.Publish", Kind: chantal.ErrIO, Inner: err}
		}

		var inline bytes.Buffer
		cw, err := clearsign.Encode(&inline, entity.PrivateKey, nil)
		if err != nil {
			return &chantal.Error{Op: "deb.Publish", Kind: chantal.ErrSignature, Inner: err}
		}
		if _, err := cw.Write([]byte(releaseText)); err != nil {
			return &chantal.Error{Op: "deb.Publish", Kind: chantal.ErrSignature, Inner: err}
		}
		if err := cw.Close(); err != nil {
			return &chantal.Error{Op: "deb.Publish", Kind: chantal.ErrSignature, Inner: err}
		}
		if err := w.WriteFile("dists/"+defaultSuite+"/InRelease", bytes.NewReader(inline.Bytes())); err != nil {
			return &chantal.Error{Op: "deb.Publish", Kind: chantal.ErrIO, Inner: err}
		}
	}

	slog.InfoContext(ctx, "publish done", "component", "deb.Publish")
	return nil
}

func renderStanza(pkg chantal.Package, filename string) string {
	m := pkg.FamilyMetadata.DEB
	var b strings.Builder
	fmt.Fprintf(&b, "Package: %s\n", m.Package)
	fmt.Fprintf(&b, "Version: %s\n", m.Version)
	fmt.Fprintf(&b, "Architecture: %s\n", m.Architecture)
	if maintainer := m.Overflow["maintainer"]; maintainer != "" {
		fmt.Fprintf(&b, "Maintainer: %s\n", maintainer)
	}
	if section := m.Overflow["section"]; section != "" {
		fmt.Fprintf(&b, "Section: %s\n", section)
	}
	if len(m.Depends) > 0 {
		fmt.Fprintf(&b, "Depends: %s\n", strings.Join(m.Depends, ", "))
	}
	if len(m.PreDepends) > 0 {
		fmt.Fprintf(&b, "Pre-Depends: %s\n", strings.Join(m.PreDepends, ", "))
	}
	if len(m.Recommends) > 0 {
		fmt.Fprintf(&b, "Recommends: %s\n", strings.Join(m.Recommends, ", "))
	}
	if len(m.Provides) > 0 {
		fmt.Fprintf(&b, "Provides: %s\n", strings.Join(m.Provides, ", "))
	}
	if len(m.Conflicts) > 0 {
		fmt.Fprintf(&b, "Conflicts: %s\n", strings.Join(m.Conflicts, ", "))
	}
	fmt.Fprintf(&b, "Filename: %s\n", filename)
	fmt.Fprintf(&b, "Size: %d\n", pkg.Size)
	if m.MD5Sum != "" {
		fmt.Fprintf(&b, "MD5sum: %s\n", m.MD5Sum)
	}
	fmt.Fprintf(&b, "SHA256: %s\n", pkg.SHA256.String())
	return b.String()
}

type hashedFile struct {
	path                string
	size                int64
	md5, sha1h, sha256h string
}

func hashEntry(path string, raw []byte) hashedFile {
	m5 := md5.Sum(raw)
	s1 := sha1.Sum(raw)
	s256 := sha256.Sum256(raw)
	return hashedFile{
		path: path, size: int64(len(raw)),
		md5: hex.EncodeToString(m5[:]), sha1h: hex.EncodeToString(s1[:]), sha256h: hex.EncodeToString(s256[:]),
	}
}

func renderRelease(suite string, components, archs []string, entries []hashedFile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Suite: %s\n", suite)
	fmt.Fprintf(&b, "Codename: %s\n", suite)
	fmt.Fprintf(&b, "Components: %s\n", strings.Join(components, " "))
	fmt.Fprintf(&b, "Architectures: %s\n", strings.Join(archs, " "))
	b.WriteString("MD5Sum:\n")
	for _, e := range entries {
		fmt.Fprintf(&b, " %s %d %s\n", e.md5, e.size, e.path)
	}
	b.WriteString("SHA1:\n")
	for _, e := range entries {
		fmt.Fprintf(&b, " %s %d %s\n", e.sha1h, e.size, e.path)
	}
	b.WriteString("SHA256:\n")
	for _, e := range entries {
		fmt.Fprintf(&b, " %s %d %s\n", e.sha256h, e.size, e.path)
	}
	return b.String()
}

func sortedKeys(m map[string][]chantal.Package) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func readSigningEntity(key []byte) (*openpgp.Entity, error) {
	entities, err := openpgp.ReadKeyRing(bytes.NewReader(key))
	if err == nil && len(entities) > 0 {
		return entities[0], nil
	}
	block, armorErr := armor.Decode(bytes.NewReader(key))
	if armorErr != nil {
		if err != nil {
			return nil, err
		}
		return nil, armorErr
	}
	entities, err = openpgp.ReadKeyRing(block.Body)
	if err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return nil, fmt.Errorf("deb: signing key contains no entities")
	}
	return entities[0], nil
}
