package sync

import (
	"github.com/slauger/chantal"
	"github.com/slauger/chantal/family"
)

// Diff is the result of comparing a freshly parsed index against a
// repository's current live set, keyed on family-native identity
// (spec.md §4.5 step 3).
type Diff struct {
	ToAdd     []family.Record
	Unchanged []string // identities present in both, unchanged
	ToRemove  []string // identities live before this sync but absent now
}

// computeDiff compares records (the new live set from the parser) against
// live (the repository's current live set from the catalog, keyed on
// identity). A record's identity is computed the same way Package.Identity
// does, via FamilyMetadata.Identity, so the two key spaces line up.
func computeDiff(records []family.Record, live map[string]chantal.Package) Diff {
	var d Diff
	seen := make(map[string]struct{}, len(records))

	for _, r := range records {
		id := r.Metadata.Identity()
		seen[id] = struct{}{}
		if existing, ok := live[id]; ok && existing.SHA256.String() == r.SHA256Hint.String() {
			d.Unchanged = append(d.Unchanged, id)
			continue
		}
		d.ToAdd = append(d.ToAdd, r)
	}

	for id := range live {
		if _, ok := seen[id]; !ok {
			d.ToRemove = append(d.ToRemove, id)
		}
	}

	return d
}
