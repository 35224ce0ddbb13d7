package domain

import (
	"strings"

	"github.com/Masterminds/semver/v3"
)

// ParseVersion parses a package version leniently: "v" prefix, missing minor/patch and
// prerelease suffixes are accepted.
func ParseVersion(s string) (*semver.Version, error) {
	return semver.NewVersion(strings.TrimSpace(s))
}

// CompareVersions orders package version strings. Unparsable versions sort below
// parsable ones and compare lexically among themselves.
func CompareVersions(a, b string) int {
	va, errA := ParseVersion(a)
	vb, errB := ParseVersion(b)
	switch {
	case errA != nil && errB != nil:
		return strings.Compare(a, b)
	case errA != nil:
		return -1
	case errB != nil:
		return 1
	}
	return va.Compare(vb)
}

// MaxVersion returns the highest version in the list, or "" for an empty list.
func MaxVersion(versions []string) string {
	best := ""
	for i, v := range versions {
		if i == 0 {
			best = v
			continue
		}
		c := CompareVersions(v, best)
		// "1.2" and "1.2.0" compare equal; break the tie lexically so input order never matters.
		if c > 0 || (c == 0 && v > best) {
			best = v
		}
	}
	return best
}

// SameVersion reports whether two version strings denote the same release.
func SameVersion(a, b string) bool {
	va, errA := ParseVersion(a)
	vb, errB := ParseVersion(b)
	if errA != nil || errB != nil {
		return strings.TrimSpace(a) == strings.TrimSpace(b)
	}
	return va.Equal(vb)
}
