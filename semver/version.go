// Package semver provides the version model for the resolver: semantic
// versions, opaque pinned revisions, and the version-specifier algebra
// used to intersect constraints.
package semver

import (
	"strconv"
	"strings"

	"github.com/Masterminds/semver"
	"github.com/pkg/errors"
)

// SemanticVersion is a total-ordered (major, minor, patch) triple.
type SemanticVersion struct {
	Major, Minor, Patch int64

	// underlying is the parsed library value, which still carries any
	// prerelease and metadata suffix ParseSemanticVersion accepted.
	// String() and the comparisons use only the triple, so they drop it.
	underlying *semver.Version
}

// ParseSemanticVersion parses a string of the form X[.Y[.Z]], optionally
// prefixed with "v". Missing minor/patch default to zero.
func ParseSemanticVersion(s string) (SemanticVersion, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(s), "v")
	if trimmed == "" {
		return SemanticVersion{}, errors.Errorf("empty version string")
	}

	// Masterminds/semver requires a full X.Y.Z form; backfill missing
	// components before handing off.
	filled := backfill(trimmed)

	sv, err := semver.NewVersion(filled)
	if err != nil {
		return SemanticVersion{}, errors.Wrapf(err, "parsing semantic version %q", s)
	}

	return SemanticVersion{
		Major:      sv.Major(),
		Minor:      sv.Minor(),
		Patch:      sv.Patch(),
		underlying: sv,
	}, nil
}

// backfill appends ".0" segments so "1" becomes "1.0.0" and "1.2" becomes
// "1.2.0". Missing minor/patch default to zero.
func backfill(s string) string {
	// Split off any prerelease/metadata suffix before counting dots, so we
	// don't miscount "1.2-beta" as having two numeric segments.
	core := s
	suffix := ""
	if i := strings.IndexAny(s, "-+"); i >= 0 {
		core, suffix = s[:i], s[i:]
	}

	dots := strings.Count(core, ".")
	switch dots {
	case 0:
		core += ".0.0"
	case 1:
		core += ".0"
	}
	return core + suffix
}

// Compare returns -1, 0, or 1 if v is less than, equal to, or greater than o.
func (v SemanticVersion) Compare(o SemanticVersion) int {
	if v.Major != o.Major {
		return cmpInt64(v.Major, o.Major)
	}
	if v.Minor != o.Minor {
		return cmpInt64(v.Minor, o.Minor)
	}
	if v.Patch != o.Patch {
		return cmpInt64(v.Patch, o.Patch)
	}
	return 0
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// LessThan reports whether v sorts strictly before o.
func (v SemanticVersion) LessThan(o SemanticVersion) bool { return v.Compare(o) < 0 }

// Max returns the larger of v and o.
func (v SemanticVersion) Max(o SemanticVersion) SemanticVersion {
	if v.LessThan(o) {
		return o
	}
	return v
}

// String renders the version back to its canonical "X.Y.Z" form.
func (v SemanticVersion) String() string {
	return strconv.FormatInt(v.Major, 10) + "." + strconv.FormatInt(v.Minor, 10) + "." + strconv.FormatInt(v.Patch, 10)
}

// PinnedVersion is a free-form commit identifier: a branch name, tag, or
// 40-character hash. Equality is plain string equality.
type PinnedVersion string

func (p PinnedVersion) String() string { return string(p) }

// Semantic attempts to extract a SemanticVersion from the pinned string. Ok
// is false when the pinned version does not parse as a semantic version
// (e.g. a branch name or a commit hash).
func (p PinnedVersion) Semantic() (sem SemanticVersion, ok bool) {
	sem, err := ParseSemanticVersion(string(p))
	if err != nil {
		return SemanticVersion{}, false
	}
	return sem, true
}
