package resolve

import (
	"fmt"
	"strings"
)

// Unsatisfiable reports that no assignment satisfies every input
// constraint, carrying the delta-debugged minimal conflict.
type Unsatisfiable struct {
	ConflictingDeps []Identifier
	ConflictingPins []Identifier
}

func (e *Unsatisfiable) Error() string {
	var deps, pins []string
	for _, d := range e.ConflictingDeps {
		deps = append(deps, d.Name())
	}
	for _, p := range e.ConflictingPins {
		pins = append(pins, p.Name())
	}
	return fmt.Sprintf("unsatisfiable: conflicting dependencies [%s], conflicting pins [%s]",
		strings.Join(deps, ", "), strings.Join(pins, ", "))
}

// RevisionConstraints reports that a versioned container's candidate
// transitively required a revision-pinned dependency; a released version
// must not depend on an unreleased revision.
type RevisionConstraints struct {
	Dependency         Identifier
	Version            string
	OffendingRevisions []Identifier
}

func (e *RevisionConstraints) Error() string {
	var names []string
	for _, d := range e.OffendingRevisions {
		names = append(names, d.Name())
	}
	return fmt.Sprintf("%s@%s requires revision-pinned dependencies [%s], which a versioned container cannot satisfy",
		e.Dependency.Name(), e.Version, strings.Join(names, ", "))
}

// RequiredVersionNotFound reports that a container never offered a
// version its incoming constraint could accept.
type RequiredVersionNotFound struct {
	Dependency Identifier
	Specifier  string
}

func (e *RequiredVersionNotFound) Error() string {
	return fmt.Sprintf("no version of %s satisfies %s", e.Dependency.Name(), e.Specifier)
}

// UnknownDependencies reports identifiers referenced transitively for
// which no container could be produced at all.
type UnknownDependencies struct {
	Names []string
}

func (e *UnknownDependencies) Error() string {
	return fmt.Sprintf("unknown dependencies: %s", strings.Join(e.Names, ", "))
}

// UnresolvedDependencies reports identifiers left without any binding
// when the solver otherwise reported success. An internal-invariant
// failure, not a user-facing condition.
type UnresolvedDependencies struct {
	Names []string
}

func (e *UnresolvedDependencies) Error() string {
	return fmt.Sprintf("unresolved dependencies: %s", strings.Join(e.Names, ", "))
}

// ReachedTimeLimit reports that the delta-debug diagnoser's wall-clock
// budget expired before it could finish minimizing a conflict.
type ReachedTimeLimit struct{}

func (e *ReachedTimeLimit) Error() string { return "reached time limit while diagnosing conflict" }
