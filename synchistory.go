package chantal

import "time"

// SyncStatus is the terminal state of one sync attempt.
type SyncStatus string

const (
	SyncUnchanged SyncStatus = "unchanged"
	SyncSuccess   SyncStatus = "success"
	SyncPartial   SyncStatus = "partial" // some packages failed, sync continued (spec.md §7)
	SyncFailed    SyncStatus = "failed"
)

// SyncHistory is an append-only record of one sync attempt against a
// Repository (spec.md §3, §7).
type SyncHistory struct {
	ID               string     `json:"id"`
	RepositoryID     string     `json:"repository_id"`
	StartedAt        time.Time  `json:"started_at"`
	FinishedAt       time.Time  `json:"finished_at"`
	Status           SyncStatus `json:"status"`
	PackagesAdded    int        `json:"packages_added"`
	PackagesRemoved  int        `json:"packages_removed"`
	BytesDownloaded  int64      `json:"bytes_downloaded"`
	PackagesFailed   int        `json:"packages_failed"`
	FirstError       string     `json:"first_error,omitempty"`
	ErrorByCategory  map[string]int `json:"error_by_category,omitempty"`
	IndexValidator   string     `json:"index_validator,omitempty"`
}
