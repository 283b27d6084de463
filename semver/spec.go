package semver

import "fmt"

// VersionSpecifier is a declarative set of acceptable pinned versions.
// The interface carries an unexported method so that only
// this package can produce new implementations; the solver relies on the
// closed set of cases below.
type VersionSpecifier interface {
	fmt.Stringer

	// Matches reports whether the specifier accepts the given pinned
	// version.
	Matches(PinnedVersion) bool

	// Intersect computes the most specific specifier accepted by both
	// receivers, or Empty() if no version satisfies both.
	Intersect(VersionSpecifier) VersionSpecifier

	sealed()
}

// Any accepts every pinned version.
func Any() VersionSpecifier { return anySpec{} }

// Empty accepts no version. It is the distinguished "no solution" marker
// produced by Intersect, never stored directly in a ConstraintSet.
func Empty() VersionSpecifier { return emptySpec{} }

// AtLeast accepts any semantic version >= v.
func AtLeast(v SemanticVersion) VersionSpecifier { return atLeastSpec{v} }

// CompatibleWith accepts any semantic version with the same major component
// as v, and >= v (the "~>" / caret-style specifier).
func CompatibleWith(v SemanticVersion) VersionSpecifier { return compatSpec{v} }

// Exactly accepts only v.
func Exactly(v SemanticVersion) VersionSpecifier { return exactSpec{v} }

// GitReference accepts only pinned versions whose string is ref, or another
// GitReference(ref) / Any.
func GitReference(ref string) VersionSpecifier { return gitRefSpec{ref} }

type anySpec struct{}

func (anySpec) sealed()                    {}
func (anySpec) String() string             { return "any" }
func (anySpec) Matches(PinnedVersion) bool { return true }

func (anySpec) Intersect(o VersionSpecifier) VersionSpecifier { return o }

type emptySpec struct{}

func (emptySpec) sealed()                    {}
func (emptySpec) String() string             { return "empty" }
func (emptySpec) Matches(PinnedVersion) bool { return false }

func (emptySpec) Intersect(VersionSpecifier) VersionSpecifier { return emptySpec{} }

type atLeastSpec struct{ v SemanticVersion }

func (atLeastSpec) sealed()          {}
func (s atLeastSpec) String() string { return ">=" + s.v.String() }

func (s atLeastSpec) Matches(p PinnedVersion) bool {
	sem, ok := p.Semantic()
	if !ok {
		return false
	}
	return !sem.LessThan(s.v)
}

func (s atLeastSpec) Intersect(o VersionSpecifier) VersionSpecifier {
	switch t := o.(type) {
	case anySpec:
		return s
	case emptySpec:
		return emptySpec{}
	case atLeastSpec:
		return atLeastSpec{s.v.Max(t.v)}
	case compatSpec:
		if s.v.Major <= t.v.Major {
			return compatSpec{s.v.Max(t.v)}
		}
		return emptySpec{}
	case exactSpec:
		if s.Matches(PinnedVersion(t.v.String())) {
			return t
		}
		return emptySpec{}
	default:
		return emptySpec{}
	}
}

type compatSpec struct{ v SemanticVersion }

func (compatSpec) sealed()          {}
func (s compatSpec) String() string { return "~>" + s.v.String() }

func (s compatSpec) Matches(p PinnedVersion) bool {
	sem, ok := p.Semantic()
	if !ok {
		return false
	}
	return sem.Major == s.v.Major && !sem.LessThan(s.v)
}

func (s compatSpec) Intersect(o VersionSpecifier) VersionSpecifier {
	switch t := o.(type) {
	case anySpec:
		return s
	case emptySpec:
		return emptySpec{}
	case compatSpec:
		if s.v.Major == t.v.Major {
			return compatSpec{s.v.Max(t.v)}
		}
		return emptySpec{}
	case atLeastSpec:
		return t.Intersect(s)
	case exactSpec:
		if s.Matches(PinnedVersion(t.v.String())) {
			return t
		}
		return emptySpec{}
	default:
		return emptySpec{}
	}
}

type exactSpec struct{ v SemanticVersion }

func (exactSpec) sealed()          {}
func (s exactSpec) String() string { return "==" + s.v.String() }

func (s exactSpec) Matches(p PinnedVersion) bool {
	sem, ok := p.Semantic()
	if !ok {
		return false
	}
	return sem.Compare(s.v) == 0
}

func (s exactSpec) Intersect(o VersionSpecifier) VersionSpecifier {
	if _, isRef := o.(gitRefSpec); isRef {
		// A git reference never narrows to a semantic specifier, even
		// when the ref string happens to parse as the same version.
		return emptySpec{}
	}
	if o.Matches(PinnedVersion(s.v.String())) {
		return s
	}
	return emptySpec{}
}

type gitRefSpec struct{ ref string }

func (gitRefSpec) sealed()          {}
func (s gitRefSpec) String() string { return "ref:" + s.ref }

func (s gitRefSpec) Matches(p PinnedVersion) bool {
	return string(p) == s.ref
}

func (s gitRefSpec) Intersect(o VersionSpecifier) VersionSpecifier {
	switch t := o.(type) {
	case anySpec:
		return s
	case gitRefSpec:
		if s.ref == t.ref {
			return s
		}
	}
	return emptySpec{}
}

// IsEmpty reports whether v is the distinguished Empty() specifier.
func IsEmpty(v VersionSpecifier) bool {
	_, ok := v.(emptySpec)
	return ok
}

// IsAny reports whether v is the distinguished Any() specifier.
func IsAny(v VersionSpecifier) bool {
	_, ok := v.(anySpec)
	return ok
}

// AsGitReference reports whether v is a GitReference(ref) specifier and,
// if so, returns ref. Callers outside this package (e.g. the manifest
// parser and container package, which need to tell a revision-pinned
// constraint apart from a version-set one) can't type-switch on the
// unexported concrete specifier types, so this accessor is the sanctioned
// escape hatch.
func AsGitReference(v VersionSpecifier) (ref string, ok bool) {
	g, ok := v.(gitRefSpec)
	if !ok {
		return "", false
	}
	return g.ref, true
}
