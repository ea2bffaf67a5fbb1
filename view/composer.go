// Package view implements the View Composer: named unions of repositories
// and/or snapshots of the same family, with ordering and conflict
// resolution (spec.md §4.7).
package view

import (
	"context"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/slauger/chantal"
	"github.com/slauger/chantal/catalog"
)

// Composer materialises a View's members into a resolved package set.
type Composer struct {
	Catalog catalog.Catalog
}

// Resolve computes the union of packages across v's members in declared
// order. Members are sorted by Position first, since the Catalog's storage
// order isn't guaranteed to match the original join-table ordering
// (spec.md §9, grounded on original_source's ordered ViewRepository join).
//
// Packages are merged by slot, not by Package.Identity(): Identity is the
// full NEVRA (or family equivalent) used to diff a repository's live set
// across syncs, so nginx-1.20 and nginx-1.21 never collide there. A view
// union needs the coarser question "is this the same package at a
// different version", since that's the case spec.md §8's S6 describes
// (two repos carrying different versions of the same chart/package, with
// first-wins picking one). When a slot appears in more than one member,
// the policy decides: first-wins keeps the earliest member's package,
// last-wins the latest, fail returns ErrConflict for any slot whose
// members disagree on sha256.
func (c *Composer) Resolve(ctx context.Context, v chantal.View) (map[string]chantal.Package, error) {
	members := append([]chantal.ViewMember(nil), v.Members...)
	sortByPosition(members)

	resolved := make(map[string]chantal.Package)
	for _, m := range members {
		pkgs, err := c.memberPackages(ctx, m)
		if err != nil {
			return nil, err
		}
		for _, p := range pkgs {
			slot := packageSlot(p)
			existing, ok := resolved[slot]
			if !ok {
				resolved[slot] = p
				continue
			}
			if existing.SHA256.String() == p.SHA256.String() {
				continue
			}
			slog.DebugContext(ctx, "view slot conflict", "view", v.Name, "slot", slot, "policy", v.Conflict,
				"detail", describeConflict(v.Family, existingVersion(existing), existingVersion(p)))
			switch v.Conflict {
			case chantal.LastWins:
				resolved[slot] = p
			case chantal.FailOnConflict:
				return nil, &chantal.Error{Op: "view.Resolve", Kind: chantal.ErrConflict,
					Message: "conflicting sha256 for " + slot + " in view " + v.Name}
			case chantal.FirstWins, "":
				// keep existing
			default:
				return nil, &chantal.Error{Op: "view.Resolve", Kind: chantal.ErrConfig, Message: "unknown conflict policy: " + string(v.Conflict)}
			}
		}
	}
	return resolved, nil
}

// packageSlot identifies "the same package" across versions: name plus
// architecture where the family has one, version excluded. This is
// deliberately coarser than Package.Identity().
func packageSlot(p chantal.Package) string {
	switch {
	case p.FamilyMetadata.RPM != nil:
		m := p.FamilyMetadata.RPM
		return m.Name + "." + m.Arch
	case p.FamilyMetadata.DEB != nil:
		m := p.FamilyMetadata.DEB
		return m.Package + "." + m.Architecture
	case p.FamilyMetadata.APK != nil:
		m := p.FamilyMetadata.APK
		return m.Name + "." + m.Architecture
	case p.FamilyMetadata.Helm != nil:
		return p.FamilyMetadata.Helm.Name
	default:
		return p.Identity()
	}
}

// existingVersion extracts the family-native version string, for the
// diagnostic conflict log in Resolve.
func existingVersion(p chantal.Package) string {
	switch {
	case p.FamilyMetadata.RPM != nil:
		return p.FamilyMetadata.RPM.Version
	case p.FamilyMetadata.DEB != nil:
		return p.FamilyMetadata.DEB.Version
	case p.FamilyMetadata.APK != nil:
		return p.FamilyMetadata.APK.Version
	case p.FamilyMetadata.Helm != nil:
		return p.FamilyMetadata.Helm.Version
	default:
		return ""
	}
}

func (c *Composer) memberPackages(ctx context.Context, m chantal.ViewMember) ([]chantal.Package, error) {
	switch m.Kind {
	case chantal.ViewMemberRepository:
		live, err := c.Catalog.LiveSet(ctx, m.RefID)
		if err != nil {
			return nil, err
		}
		out := make([]chantal.Package, 0, len(live))
		for _, p := range live {
			out = append(out, p)
		}
		return out, nil
	case chantal.ViewMemberSnapshot:
		snap, err := c.Catalog.GetSnapshot(ctx, m.RefID)
		if err != nil {
			return nil, err
		}
		return c.Catalog.ListPackages(ctx, catalog.PackageFilter{SnapshotID: snap.ID})
	default:
		return nil, &chantal.Error{Op: "view.memberPackages", Kind: chantal.ErrConfig, Message: "unknown view member kind: " + string(m.Kind)}
	}
}

func sortByPosition(members []chantal.ViewMember) {
	sort.Slice(members, func(i, j int) bool { return members[i].Position < members[j].Position })
}

// Freeze resolves v and records a ViewSnapshot capturing the resolved
// member-snapshot ids and the resolved package set, analogous to Snapshot
// but over a View (spec.md §3).
func (c *Composer) Freeze(ctx context.Context, v chantal.View) (chantal.ViewSnapshot, error) {
	resolved, err := c.Resolve(ctx, v)
	if err != nil {
		return chantal.ViewSnapshot{}, err
	}

	var snapshotIDs []string
	ids := make([]chantal.Digest, 0, len(resolved))
	for _, p := range resolved {
		ids = append(ids, p.SHA256)
	}
	for _, m := range v.Members {
		if m.Kind == chantal.ViewMemberSnapshot {
			snapshotIDs = append(snapshotIDs, m.RefID)
		}
	}

	vs := chantal.ViewSnapshot{
		ID:          uuid.NewString(),
		ViewID:      v.ID,
		SnapshotIDs: snapshotIDs,
		PackageIDs:  ids,
	}
	if err := c.Catalog.CreateViewSnapshot(ctx, vs); err != nil {
		return chantal.ViewSnapshot{}, err
	}
	return vs, nil
}
