// Package family defines the per-ecosystem plugin contract (spec.md §4.4,
// §4.5 step 6, §4.8, §9): a compiled-in Family implementation combines index
// fetching, signature verification, parsing, and publishing for one package
// ecosystem, and is looked up from a Registry keyed by family name — not
// loaded as a dynamic plugin.
package family

import (
	"context"
	"io"

	"github.com/slauger/chantal"
)

// Record is a parsed, normalised package entry: spec.md §4.4's PackageRecord.
type Record struct {
	Filename    string
	RelativeURL string
	SHA256Hint  chantal.Digest // zero Digest if upstream didn't supply one
	SizeHint    int64          // 0 if unknown
	Metadata    chantal.FamilyMetadata
}

// HasSHA256Hint reports whether the upstream index supplied a checksum the
// Sync Engine can use to short-circuit download.
func (r Record) HasSHA256Hint() bool { return !r.SHA256Hint.IsZero() }

// IndexDigest identifies the parsed state of a root index, independent of
// the upstream validator used to decide whether to refetch it.
type IndexDigest string

// FetchAuxFunc lets a Parser request further index files it discovers
// inline: APT's Packages under Release, RPM's primary.xml under repomd.xml.
// The APK and Helm parsers do not use it.
type FetchAuxFunc func(ctx context.Context, relativeURL string) ([]byte, error)

// Validator is an opaque upstream freshness token (ETag, Last-Modified, or a
// signed digest) a Syncer and Catalog compare across syncs to short-circuit
// unchanged repositories (spec.md §4.5 step 1).
type Validator string

// Parser turns a raw upstream index into normalised Records. Parsers are
// pure CPU-bound functions: no network or filesystem I/O, so the Sync
// Engine never needs to suspend a goroutine mid-parse (spec.md §5).
type Parser interface {
	Parse(ctx context.Context, index []byte, fetchAux FetchAuxFunc) ([]Record, IndexDigest, error)
}

// Syncer retrieves and authenticates a family's root index.
type Syncer interface {
	// FetchIndex retrieves the family's root index, honouring a previous
	// validator. Returns the same prev validator as next (and a nil raw) if
	// the upstream reports no change.
	FetchIndex(ctx context.Context, prev Validator) (raw []byte, next Validator, err error)
	// VerifySignature checks the index's embedded or detached signature
	// against keys. A family with no signature support (e.g. Helm without a
	// .prov file) may no-op.
	VerifySignature(ctx context.Context, raw []byte, keys []string) error
}

// PublishWriter is the narrow filesystem interface a Publisher needs: write
// a file at a path relative to the publication root. publish.Stage
// implements this over a staging directory.
type PublishWriter interface {
	WriteFile(relPath string, r io.Reader) error
	Hardlink(sha256 chantal.Digest, relPath string) error
	Root() string
}

// PackageSet is what a Publisher renders: every chantal.Package to include,
// plus enough of the FamilyMetadata to regenerate the family's native index.
type PackageSet struct {
	Packages []chantal.Package
}

// PublishOptions configures family-specific publication behavior.
type PublishOptions struct {
	CompressionFormat string // e.g. "gzip"; empty selects the family default
	SigningKey        []byte // PGP private key material; nil disables signing
}

// Publisher renders a PackageSet into a family-native repository layout.
type Publisher interface {
	Publish(ctx context.Context, w PublishWriter, set PackageSet, opts PublishOptions) error
}

// Family is the combined per-ecosystem plugin: one type implements fetch,
// verify, parse, and publish together (confirmed by the original's single
// plugin base class — see DESIGN.md).
type Family interface {
	Name() string
	Parser
	Syncer
	Publisher
}

// Registry is a compiled-in lookup of every Family chantal ships, keyed by
// the family name used in config and in chantal.Family values.
type Registry map[string]Family

// Get returns the registered Family for name, or ErrConfig if none is
// registered.
func (r Registry) Get(name string) (Family, error) {
	f, ok := r[name]
	if !ok {
		return nil, &chantal.Error{Op: "family.Registry.Get", Kind: chantal.ErrConfig, Message: "unknown family: " + name}
	}
	return f, nil
}
