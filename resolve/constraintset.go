package resolve

import (
	"fmt"

	"github.com/cartgo/cartgo/semver"
)

// ConstraintSet accumulates the Requirement in force for each Identifier
// as the solver walks the dependency graph, narrowing via the merge table
// below whenever two edges constrain the same identifier.
type ConstraintSet struct {
	byID map[Identifier]Requirement
}

// NewConstraintSet returns an empty ConstraintSet.
func NewConstraintSet() ConstraintSet {
	return ConstraintSet{byID: make(map[Identifier]Requirement)}
}

// Get returns the current requirement recorded for id, if any.
func (cs ConstraintSet) Get(id Identifier) (Requirement, bool) {
	r, ok := cs.byID[id]
	return r, ok
}

// clone returns a shallow copy cs can be extended from without mutating
// the receiver: every merge step in the solver produces a new
// ConstraintSet rather than mutating a shared one, so sibling subtrees
// explored during backtracking never see each other's tentative state.
func (cs ConstraintSet) clone() ConstraintSet {
	out := ConstraintSet{byID: make(map[Identifier]Requirement, len(cs.byID)+1)}
	for k, v := range cs.byID {
		out.byID[k] = v
	}
	return out
}

// Merge folds incoming into cs for identifier id per the merge table:
//
//	a \ b          VersionSet(t)         Revision(r)        Unversioned
//	VersionSet(s)  intersect; Empty→fail replace w/ Revision replace w/ Unversioned
//	Revision(r1)   keep Revision(r1)     equal?keep:fail     replace w/ Unversioned
//	Unversioned    keep Unversioned      keep Unversioned    keep Unversioned
func (cs ConstraintSet) Merge(id Identifier, incoming Requirement) (ConstraintSet, error) {
	existing, ok := cs.byID[id]
	if !ok {
		out := cs.clone()
		out.byID[id] = incoming
		return out, nil
	}

	merged, err := mergeRequirement(id, existing, incoming)
	if err != nil {
		return ConstraintSet{}, err
	}

	out := cs.clone()
	out.byID[id] = merged
	return out, nil
}

func mergeRequirement(id Identifier, existing, incoming Requirement) (Requirement, error) {
	switch existing.Kind {
	case RequireUnversioned:
		return existing, nil

	case RequireRevision:
		switch incoming.Kind {
		case RequireVersionSet:
			return existing, nil
		case RequireRevision:
			if existing.Rev == incoming.Rev {
				return existing, nil
			}
			return Requirement{}, fmt.Errorf("conflicting revisions for %s: %q vs %q", id.Name(), existing.Rev, incoming.Rev)
		case RequireUnversioned:
			return incoming, nil
		}

	case RequireVersionSet:
		switch incoming.Kind {
		case RequireVersionSet:
			merged := existing.Spec.Intersect(incoming.Spec)
			if semver.IsEmpty(merged) {
				return Requirement{}, fmt.Errorf("unsatisfiable version constraints for %s: %s vs %s", id.Name(), existing.Spec, incoming.Spec)
			}
			return VersionSet(merged), nil
		case RequireRevision:
			return incoming, nil
		case RequireUnversioned:
			return incoming, nil
		}
	}

	return Requirement{}, fmt.Errorf("unhandled requirement merge for %s", id.Name())
}
