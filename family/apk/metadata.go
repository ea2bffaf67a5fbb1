package apk

import (
	"bufio"
	"bytes"
	"strconv"
	"strings"

	"github.com/slauger/chantal"
)

// stanza is one raw APKINDEX entry: single-letter keys, one per line, no
// interleaving blank lines within an entry (entries are themselves
// separated by a blank line). Grounded on the teacher's apk/scanner.go,
// which parses the same "lib/apk/db/installed" format by hand because the
// case-sensitive single-letter keys aren't valid net/textproto MIME header
// names.
type stanza map[byte]string

func splitStanzas(raw []byte) []stanza {
	var out []stanza
	for _, block := range bytes.Split(raw, []byte("\n\n")) {
		if len(bytes.TrimSpace(block)) == 0 {
			continue
		}
		s := stanza{}
		sc := bufio.NewScanner(bytes.NewReader(block))
		for sc.Scan() {
			line := sc.Text()
			if len(line) < 2 || line[1] != ':' {
				continue
			}
			s[line[0]] = line[2:]
		}
		out = append(out, s)
	}
	return out
}

// toMetadata converts one APKINDEX stanza into chantal's APKMetadata.
func toMetadata(s stanza) *chantal.APKMetadata {
	m := &chantal.APKMetadata{
		Checksum:     s['C'],
		Name:         s['P'],
		Version:      s['V'],
		Architecture: s['A'],
		Description:  s['T'],
		URL:          s['U'],
		License:      s['L'],
		Origin:       s['o'],
		Maintainer:   s['m'],
		Overflow:     map[string]string{},
	}
	if v, err := strconv.ParseInt(s['S'], 10, 64); err == nil {
		m.Size = v
	}
	if v, err := strconv.ParseInt(s['I'], 10, 64); err == nil {
		m.InstalledSize = v
	}
	if v, err := strconv.ParseInt(s['t'], 10, 64); err == nil {
		m.BuildTime = v
	}
	if d := s['D']; d != "" {
		m.Depends = strings.Fields(d)
	}
	if p := s['p']; p != "" {
		m.Provides = strings.Fields(p)
	}
	return m
}

// fromMetadata renders an APKMetadata back into APKINDEX stanza lines, the
// inverse of toMetadata, used by Publisher to regenerate the index.
func fromMetadata(m *chantal.APKMetadata) stanza {
	s := stanza{
		'C': m.Checksum,
		'P': m.Name,
		'V': m.Version,
		'A': m.Architecture,
		'S': strconv.FormatInt(m.Size, 10),
		'I': strconv.FormatInt(m.InstalledSize, 10),
	}
	if m.Description != "" {
		s['T'] = m.Description
	}
	if m.URL != "" {
		s['U'] = m.URL
	}
	if m.License != "" {
		s['L'] = m.License
	}
	if m.Origin != "" {
		s['o'] = m.Origin
	}
	if m.Maintainer != "" {
		s['m'] = m.Maintainer
	}
	if m.BuildTime != 0 {
		s['t'] = strconv.FormatInt(m.BuildTime, 10)
	}
	if len(m.Depends) > 0 {
		s['D'] = strings.Join(m.Depends, " ")
	}
	if len(m.Provides) > 0 {
		s['p'] = strings.Join(m.Provides, " ")
	}
	return s
}

// keyOrder is the conventional field ordering Alpine's abuild emits, kept
// here only for deterministic, readable output — APKINDEX readers don't
// care about key order.
var keyOrder = []byte{'C', 'P', 'V', 'A', 'S', 'I', 'T', 'U', 'L', 'D', 'p', 'o', 'm', 't'}

func (s stanza) render(b *strings.Builder) {
	for _, k := range keyOrder {
		if v, ok := s[k]; ok {
			b.WriteByte(k)
			b.WriteByte(':')
			b.WriteString(v)
			b.WriteByte('\n')
		}
	}
}
