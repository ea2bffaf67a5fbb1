package apk

import (
	"bytes"
	"context"
	"encoding/base64"
	"log/slog"
	"runtime/trace"
	"sort"
	"strings"

	"golang.org/x/crypto/openpgp"
	"golang.org/x/crypto/openpgp/armor"

	"github.com/slauger/chantal"
	"github.com/slauger/chantal/family"
)

// Publish writes every package under <root>/<arch>/ and emits an
// APKINDEX.tar.gz per architecture. If opts.SigningKey is set, a detached
// signature of the index text is written as a separate file
// <arch>/.SIGN.RSA.chantal.pub beside APKINDEX.tar.gz; it is not embedded
// as a member inside the archive, which always holds APKINDEX alone
// (spec.md §4.8).
func (f *Family) Publish(ctx context.Context, w family.PublishWriter, set family.PackageSet, opts family.PublishOptions) error {
	defer trace.StartRegion(ctx, "apk.Publish").End()
	slog.InfoContext(ctx, "publish start", "component", "apk.Publish", "packages", len(set.Packages))

	byArch := map[string][]chantal.Package{}
	for _, pkg := range set.Packages {
		if pkg.FamilyMetadata.APK == nil {
			return &chantal.Error{Op: "apk.Publish", Kind: chantal.ErrConfig, Message: "package missing APK metadata: " + pkg.Filename}
		}
		arch := pkg.FamilyMetadata.APK.Architecture
		byArch[arch] = append(byArch[arch], pkg)

		relPath := arch + "/" + pkg.Filename
		if err := w.Hardlink(pkg.SHA256, relPath); err != nil {
			return &chantal.Error{Op: "apk.Publish", Kind: chantal.ErrIO, Inner: err}
		}
	}

	archs := make([]string, 0, len(byArch))
	for a := range byArch {
		archs = append(archs, a)
	}
	sort.Strings(archs)

	for _, arch := range archs {
		pkgs := byArch[arch]
		sort.Slice(pkgs, func(i, j int) bool { return pkgs[i].Filename < pkgs[j].Filename })

		var b strings.Builder
		for _, pkg := range pkgs {
			fromMetadata(pkg.FamilyMetadata.APK).render(&b)
			b.WriteByte('\n')
		}

		archive, err := buildIndexArchive([]byte(b.String()))
		if err != nil {
			return err
		}

		if len(opts.SigningKey) > 0 {
			sig, err := signIndex([]byte(b.String()), opts.SigningKey)
			if err != nil {
				return &chantal.Error{Op: "apk.Publish", Kind: chantal.ErrSignature, Inner: err}
			}
			if err := w.WriteFile(arch+"/"+sigMemberName, bytes.NewReader(sig)); err != nil {
				return &chantal.Error{Op: "apk.Publish", Kind: chantal.ErrIO, Inner: err}
			}
		}

		if err := w.WriteFile(arch+"/APKINDEX.tar.gz", bytes.NewReader(archive)); err != nil {
			return &chantal.Error{Op: "apk.Publish", Kind: chantal.ErrIO, Inner: err}
		}
	}

	slog.InfoContext(ctx, "publish done", "component", "apk.Publish")
	return nil
}

const sigMemberName = ".SIGN.RSA.chantal.pub"

func signIndex(indexText, signingKey []byte) ([]byte, error) {
	entities, err := openpgp.ReadKeyRing(bytes.NewReader(signingKey))
	if err != nil || len(entities) == 0 {
		block, armorErr := armor.Decode(bytes.NewReader(signingKey))
		if armorErr != nil {
			return nil, armorErr
		}
		entities, err = openpgp.ReadKeyRing(block.Body)
		if err != nil {
			return nil, err
		}
	}
	var sig bytes.Buffer
	if err := openpgp.DetachSign(&sig, entities[0], bytes.NewReader(indexText), nil); err != nil {
		return nil, err
	}
	return []byte(base64.StdEncoding.EncodeToString(sig.Bytes())), nil
}
