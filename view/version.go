package view

import (
	apkversion "github.com/knqyf263/go-apk-version"
	debversion "github.com/knqyf263/go-deb-version"
	rpmversion "github.com/knqyf263/go-rpm-version"

	"github.com/slauger/chantal"
)

// describeConflict renders which side of a slot conflict carries the newer
// version, for diagnostic logging only. Resolve's actual outcome is always
// decided by declared Position and the view's ConflictPolicy (spec.md
// §4.7's first-wins/last-wins/fail), never by version ordering — this is
// purely so an operator reading logs can tell whether first-wins/last-wins
// just kept the newer or the older build.
func describeConflict(fam chantal.Family, existingVersion, incomingVersion string) string {
	newer, ok := versionIsNewer(fam, existingVersion, incomingVersion)
	if !ok {
		return "incoming " + incomingVersion + " vs existing " + existingVersion
	}
	if newer {
		return "incoming " + incomingVersion + " is newer than existing " + existingVersion
	}
	return "incoming " + incomingVersion + " is not newer than existing " + existingVersion
}

// versionIsNewer reports whether incoming is a strictly newer version than
// existing, using the family's native version-ordering library. ok is
// false when fam has no known comparator (Helm's SemVer-ish AppVersion
// field isn't used for conflict resolution) or when a version string fails
// to parse.
func versionIsNewer(fam chantal.Family, existing, incoming string) (newer, ok bool) {
	switch fam {
	case chantal.RPM:
		vExisting := rpmversion.NewVersion(existing)
		vIncoming := rpmversion.NewVersion(incoming)
		return vIncoming.Compare(vExisting) == rpmversion.GREATER, true
	case chantal.DEB:
		vExisting, err := debversion.NewVersion(existing)
		if err != nil {
			return false, false
		}
		vIncoming, err := debversion.NewVersion(incoming)
		if err != nil {
			return false, false
		}
		return vExisting.LessThan(vIncoming), true
	case chantal.APK:
		vExisting, err := apkversion.NewVersion(existing)
		if err != nil {
			return false, false
		}
		vIncoming, err := apkversion.NewVersion(incoming)
		if err != nil {
			return false, false
		}
		return vExisting.LessThan(vIncoming), true
	default:
		return false, false
	}
}
