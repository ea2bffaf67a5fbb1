package chantal

import "time"

// ViewMemberKind discriminates the two things a View can reference.
type ViewMemberKind string

const (
	ViewMemberRepository ViewMemberKind = "repository"
	ViewMemberSnapshot   ViewMemberKind = "snapshot"
)

// ViewMember is one entry in a View's ordered member list. Position is
// explicit (rather than implied by slice order) because it's what the
// original's ViewRepository join table persists, and because
// first-wins/last-wins conflict resolution (spec.md §4.7) needs a stable
// order independent of how a row is fetched back from the catalog.
type ViewMember struct {
	Position int            `json:"position"`
	Kind     ViewMemberKind `json:"kind"`
	RefID    string         `json:"ref_id"`
}

// ConflictPolicy governs what happens when two View members disagree about
// the sha256 for the same family-native package identity (spec.md §4.7).
type ConflictPolicy string

const (
	FirstWins ConflictPolicy = "first-wins" // default (spec.md §9 Open Question)
	LastWins  ConflictPolicy = "last-wins"
	FailOnConflict ConflictPolicy = "fail"
)

// View is a named composition of repositories and/or snapshots of the same
// family (spec.md §3).
type View struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Family        Family         `json:"family"`
	Members       []ViewMember   `json:"members"`
	Conflict      ConflictPolicy `json:"conflict_policy"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	IsPublished   bool           `json:"is_published"`
	PublishedPath string         `json:"published_path,omitempty"`
}

// ViewSnapshot freezes a View's resolved member-snapshot ids and its
// resolved package set at an instant, analogous to Snapshot but over a View.
type ViewSnapshot struct {
	ID            string    `json:"id"`
	ViewID        string    `json:"view_id"`
	CreatedAt     time.Time `json:"created_at"`
	SnapshotIDs   []string  `json:"snapshot_ids"`
	PackageIDs    []Digest  `json:"package_ids"`
}
