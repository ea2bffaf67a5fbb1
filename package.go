package chantal

import "time"

// Family identifies a package ecosystem chantal knows how to mirror.
type Family string

// Recognised families (spec.md §3, §6).
const (
	RPM  Family = "rpm"
	DEB  Family = "deb"
	APK  Family = "apk"
	Helm Family = "helm"
)

// Package is a catalog row binding a Blob to a family-specific upstream
// identity (spec.md §3).
//
// sha256 is the primary natural key: it is globally unique across the whole
// catalog, and the same blob may be referenced by many Packages across many
// Repositories.
type Package struct {
	SHA256         Digest         `json:"sha256"`
	Size           int64          `json:"size"`
	Filename       string         `json:"filename"`
	RepositoryID   string         `json:"repository_id"`
	Family         Family         `json:"family"`
	FamilyMetadata FamilyMetadata `json:"family_metadata"`
	FirstSeenAt    time.Time      `json:"first_seen_at"`
	LastSeenAt     time.Time      `json:"last_seen_at"`
}

// Identity returns the family-native identity string used to diff a
// repository's live set across syncs (RPM NEVRA, DEB name+version+arch, APK
// name+version+arch, Helm name+version).
func (p *Package) Identity() string {
	return p.FamilyMetadata.Identity()
}

// FamilyMetadata is the tagged-union of per-family structured package
// metadata (spec.md §9's "Structured metadata" design note). Exactly one of
// the embedded pointers is non-nil for any given Package; which one is
// determined by Package.Family.
type FamilyMetadata struct {
	RPM  *RPMMetadata  `json:"rpm,omitempty"`
	DEB  *DEBMetadata  `json:"deb,omitempty"`
	APK  *APKMetadata  `json:"apk,omitempty"`
	Helm *HelmMetadata `json:"helm,omitempty"`
}

// Identity dispatches to whichever family member is populated.
func (m FamilyMetadata) Identity() string {
	switch {
	case m.RPM != nil:
		return m.RPM.NEVRA()
	case m.DEB != nil:
		return m.DEB.Identity()
	case m.APK != nil:
		return m.APK.Identity()
	case m.Helm != nil:
		return m.Helm.Identity()
	default:
		return ""
	}
}
