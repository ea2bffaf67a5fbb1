package rpm

import "github.com/slauger/chantal"

// toMetadata converts a parsed primaryPackage into chantal's RPMMetadata,
// preserving unrecognised child elements in Overflow (spec.md §4.4's
// resilience requirement).
func toMetadata(p primaryPackage) *chantal.RPMMetadata {
	m := &chantal.RPMMetadata{
		Name:        p.Name,
		Epoch:       p.Version.Epoch,
		Version:     p.Version.Ver,
		Release:     p.Version.Rel,
		Arch:        p.Arch,
		Summary:     p.Summary,
		Description: p.Description,
		Overflow:    make(map[string]string),
	}
	for _, e := range p.Format.Requires.Entries {
		m.Requires = append(m.Requires, e.Name)
	}
	for _, e := range p.Format.Provides.Entries {
		m.Provides = append(m.Provides, e.Name)
	}
	for _, e := range p.Format.Conflicts.Entries {
		m.Conflicts = append(m.Conflicts, e.Name)
	}
	for _, e := range p.Format.Obsoletes.Entries {
		m.Obsoletes = append(m.Obsoletes, e.Name)
	}
	if p.Packager != "" {
		m.Overflow["packager"] = p.Packager
	}
	if p.URL != "" {
		m.Overflow["url"] = p.URL
	}
	return m
}
