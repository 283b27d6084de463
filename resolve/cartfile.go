package resolve

import (
	"github.com/cartgo/cartgo/dependency"
	"github.com/cartgo/cartgo/semver"
)

// ConstraintFromSpecifier translates one Cartfile entry into a Constraint:
// a pinned git ref (branch/commit) becomes a RequireRevision requirement,
// everything else becomes a RequireVersionSet requirement over the
// specifier's matcher. Shared by every Container that reads a manifest
// (gitContainer's tagged/unversioned dependency reads) and by the project
// orchestrator's top-level resolve, so there is exactly one translation.
func ConstraintFromSpecifier(dep dependency.Dependency, spec semver.VersionSpecifier) Constraint {
	if ref, ok := semver.AsGitReference(spec); ok {
		return Constraint{Identifier: dep, Requirement: RevisionRequirement(ref)}
	}
	return Constraint{Identifier: dep, Requirement: VersionSet(spec)}
}

// ConstraintsFromCartfile converts every entry of cf into a Constraint, in
// manifest order.
func ConstraintsFromCartfile(cf *dependency.Cartfile) []Constraint {
	entries := cf.Entries()
	out := make([]Constraint, 0, len(entries))
	for _, e := range entries {
		out = append(out, ConstraintFromSpecifier(e.Dependency, e.Specifier))
	}
	return out
}
