package chantal

// Blob identifies an opaque, immutable byte sequence stored exactly once in
// the content store, keyed by its SHA-256 digest (spec.md §3).
//
// Blob itself carries no catalog state — ownership and reference counting
// are derived from Package rows and Snapshot membership, never stored on
// the blob. See blob.Store for the filesystem operations over blobs.
type Blob struct {
	SHA256 Digest `json:"sha256"`
	Size   int64  `json:"size"`
}
