package deb

import (
	"net/textproto"
	"strconv"
	"strings"

	"github.com/slauger/chantal"
)

// toMetadata converts one Packages stanza into chantal's DEBMetadata,
// preserving unrecognised fields (Maintainer, Section) in Overflow (spec.md
// §4.4's resilience requirement).
func toMetadata(hdr textproto.MIMEHeader) *chantal.DEBMetadata {
	size, _ := strconv.ParseInt(hdr.Get("Size"), 10, 64)
	m := &chantal.DEBMetadata{
		Package:      hdr.Get("Package"),
		Version:      hdr.Get("Version"),
		Architecture: hdr.Get("Architecture"),
		Filename:     hdr.Get("Filename"),
		SHA256:       hdr.Get("Sha256"),
		MD5Sum:       hdr.Get("Md5sum"),
		Size:         size,
		Depends:      splitCommaList(hdr.Get("Depends")),
		PreDepends:   splitCommaList(hdr.Get("Pre-Depends")),
		Recommends:   splitCommaList(hdr.Get("Recommends")),
		Provides:     splitCommaList(hdr.Get("Provides")),
		Conflicts:    splitCommaList(hdr.Get("Conflicts")),
		Overflow:     map[string]string{},
	}
	if maintainer := hdr.Get("Maintainer"); maintainer != "" {
		m.Overflow["maintainer"] = maintainer
	}
	if section := hdr.Get("Section"); section != "" {
		m.Overflow["section"] = section
	}
	return m
}

// splitCommaList splits a Depends-style field into its top-level
// comma-separated alternatives, e.g. "libc6 (>= 2.17), libssl3 | libssl1.1".
// It does not further split "|" alternation groups; chantal tracks
// dependency identities, not version-constraint resolution.
func splitCommaList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
