// Package resolve selects a consistent set of pinned versions for a
// dependency graph: a depth-first, backtracking search over version-set
// constraints, preferring newer versions, with an unsatisfiability
// diagnosis pass built on the sibling deltadebug package.
package resolve

import (
	"fmt"

	"github.com/cartgo/cartgo/dependency"
	"github.com/cartgo/cartgo/semver"
)

// Identifier names a dependency being solved for. It is exactly the same
// value used as a Cartfile key, re-exported under the resolver's own name.
type Identifier = dependency.Dependency

// RequirementKind tags the three requirement shapes: a version set, a
// pinned revision, or an unversioned working-tree checkout.
type RequirementKind int

const (
	RequireVersionSet RequirementKind = iota
	RequireRevision
	RequireUnversioned
)

func (k RequirementKind) String() string {
	switch k {
	case RequireVersionSet:
		return "version-set"
	case RequireRevision:
		return "revision"
	case RequireUnversioned:
		return "unversioned"
	default:
		return "unknown"
	}
}

// Requirement is one edge's demand on a dependency.
type Requirement struct {
	Kind RequirementKind
	Spec semver.VersionSpecifier // meaningful when Kind == RequireVersionSet
	Rev  string                  // meaningful when Kind == RequireRevision
}

// VersionSet builds a version-set requirement.
func VersionSet(spec semver.VersionSpecifier) Requirement {
	return Requirement{Kind: RequireVersionSet, Spec: spec}
}

// RevisionRequirement builds a revision-pinned requirement.
func RevisionRequirement(rev string) Requirement {
	return Requirement{Kind: RequireRevision, Rev: rev}
}

// Unversioned builds the unversioned requirement.
func Unversioned() Requirement {
	return Requirement{Kind: RequireUnversioned}
}

func (r Requirement) String() string {
	switch r.Kind {
	case RequireVersionSet:
		return r.Spec.String()
	case RequireRevision:
		return "rev:" + r.Rev
	case RequireUnversioned:
		return "unversioned"
	default:
		return "?"
	}
}

// Constraint pairs an Identifier with a Requirement.
type Constraint struct {
	Identifier Identifier
	Requirement
}

// BoundKind tags the four shapes a solved Assignment entry can take:
// excluded, a semantic version, a revision, or unversioned.
type BoundKind int

const (
	BoundExcluded BoundKind = iota
	BoundVersionKind
	BoundRevisionKind
	BoundUnversionedKind
)

// BoundVersion is the solver's final choice for one identifier.
type BoundVersion struct {
	Kind     BoundKind
	Version  semver.SemanticVersion
	Revision string
	// Pinned carries the original PinnedVersion string the container
	// offered for this bound, so callers can round-trip to a
	// dependency.ResolvedCartfile without re-deriving it from Version.
	Pinned semver.PinnedVersion
}

func (b BoundVersion) String() string {
	switch b.Kind {
	case BoundVersionKind:
		return b.Version.String()
	case BoundRevisionKind:
		return b.Revision
	case BoundUnversionedKind:
		return "unversioned"
	case BoundExcluded:
		return "excluded"
	default:
		return "?"
	}
}

func excludedBound() BoundVersion { return BoundVersion{Kind: BoundExcluded} }

// VersionSeq is a lazy, pull-based sequence of pinned versions, newest
// first: calling it returns the next value, false when exhausted, or an
// error if production failed. Laziness matters for backtracking: the
// solver must be able to abandon a prefix without enumerating the rest.
type VersionSeq func() (v semver.PinnedVersion, ok bool, err error)

// SliceSeq adapts a pre-computed, already-ordered slice into a VersionSeq.
func SliceSeq(vs []semver.PinnedVersion) VersionSeq {
	i := 0
	return func() (semver.PinnedVersion, bool, error) {
		if i >= len(vs) {
			return "", false, nil
		}
		v := vs[i]
		i++
		return v, true, nil
	}
}

// Container is the in-memory handle for one dependency identifier: its
// version universe and the constraints it declares at each revision.
type Container interface {
	// Versions returns a lazy, newest-first sequence of pinned versions,
	// restricted to those for which filter returns true (filter may be
	// nil, meaning "accept everything").
	Versions(filter func(semver.PinnedVersion) bool) VersionSeq

	// DependenciesAt returns the constraints declared by the manifest at
	// the given pinned (versioned) revision.
	DependenciesAt(v semver.PinnedVersion) ([]Constraint, error)

	// DependenciesAtRevision is the same as DependenciesAt but for an
	// arbitrary git ref rather than a released version.
	DependenciesAtRevision(rev string) ([]Constraint, error)

	// UnversionedDependencies reads constraints from the dependency's
	// unpinned working-tree checkout.
	UnversionedDependencies() ([]Constraint, error)

	// UpdatedIdentifier returns the identifier this container should be
	// recorded under once bound is chosen (normally the identity, but lets
	// a container redirect e.g. after following a NetworkName override).
	UpdatedIdentifier(bound BoundVersion) Identifier
}

// ContainerProvider resolves an Identifier to its Container.
// Implementations own caching and single-flight collapsing of concurrent
// lookups; GetContainer may block on network I/O.
type ContainerProvider interface {
	GetContainer(id Identifier) (Container, error)
}

// Assignment maps an Identifier to the Container and BoundVersion chosen
// for it. Assignments are immutable values; With and Merge return copies.
type Assignment struct {
	entries map[Identifier]assignmentEntry
}

type assignmentEntry struct {
	container Container
	bound     BoundVersion
}

// NewAssignment returns an empty Assignment.
func NewAssignment() Assignment {
	return Assignment{entries: make(map[Identifier]assignmentEntry)}
}

// With returns a new Assignment equal to a plus (id -> bound), failing if
// id is already bound to an incompatible value.
func (a Assignment) With(id Identifier, c Container, bound BoundVersion) (Assignment, error) {
	out := Assignment{entries: make(map[Identifier]assignmentEntry, len(a.entries)+1)}
	for k, v := range a.entries {
		out.entries[k] = v
	}

	if existing, ok := out.entries[id]; ok {
		if !boundsCompatible(existing.bound, bound) {
			return Assignment{}, fmt.Errorf("incompatible bindings for %s: %s vs %s", id.Name(), existing.bound, bound)
		}
		return a, nil
	}

	out.entries[id] = assignmentEntry{container: c, bound: bound}
	return out, nil
}

// Merge combines a and b, failing on any incompatible overlapping
// identifier.
func (a Assignment) Merge(b Assignment) (Assignment, error) {
	out := a
	var err error
	for id, e := range b.entries {
		out, err = out.With(id, e.container, e.bound)
		if err != nil {
			return Assignment{}, err
		}
	}
	return out, nil
}

// Get returns the bound version recorded for id.
func (a Assignment) Get(id Identifier) (BoundVersion, bool) {
	e, ok := a.entries[id]
	return e.bound, ok
}

// Identifiers returns every identifier currently bound, in no particular
// order.
func (a Assignment) Identifiers() []Identifier {
	out := make([]Identifier, 0, len(a.entries))
	for id := range a.entries {
		out = append(out, id)
	}
	return out
}

func boundsCompatible(a, b BoundVersion) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case BoundVersionKind:
		return a.Version.Compare(b.Version) == 0
	case BoundRevisionKind:
		return a.Revision == b.Revision
	default:
		return true
	}
}
