package chantal

import "time"

// Snapshot is an immutable capture of a repository's live set at an instant
// (spec.md §3). Once created, PackageIDs never changes.
type Snapshot struct {
	ID              string    `json:"id"`
	RepositoryID    string    `json:"repository_id"`
	Name            string    `json:"name"`
	CreatedAt       time.Time `json:"created_at"`
	PackageIDs      []Digest  `json:"package_ids"`
	PublishedAt     time.Time `json:"published_at,omitempty"`
	PublishedPath   string    `json:"published_path,omitempty"`
	PackageCount    int       `json:"package_count"`
	TotalSizeBytes  int64     `json:"total_size_bytes"`
}

// IsPublished reports whether the snapshot has a live published tree. The
// Snapshot Manager's Delete refuses to remove a snapshot for which this is
// true (spec.md §4.6).
func (s *Snapshot) IsPublished() bool {
	return !s.PublishedAt.IsZero() && s.PublishedPath != ""
}
