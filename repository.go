package chantal

import "time"

// Repository is a named upstream source (spec.md §3).
//
// A Repository's live set (the packages last observed upstream) is not
// stored inline on this struct; the Catalog tracks it per package row (a
// live flag the Sync Engine's commit sets and clears) and returns it from
// catalog.Catalog.LiveSet. Keeping it on the package rows, rather
// than a literal id list, is what keeps the Sync Engine's commit step
// (spec.md §4.5 step 5) a single set of row updates instead of a
// read-modify-write on a denormalized list.
type Repository struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Family          Family    `json:"family"`
	URL             string    `json:"url"`
	AuthRef         string    `json:"auth_ref,omitempty"`
	Enabled         bool      `json:"enabled"`
	LastSyncAt      time.Time `json:"last_sync_at,omitempty"`
	LastSyncStatus  string    `json:"last_sync_status,omitempty"`
}
