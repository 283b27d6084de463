package resolve

import (
	"log"
	"sort"
	"strings"
	"time"

	"github.com/armon/go-radix"

	"github.com/cartgo/cartgo/deltadebug"
	"github.com/cartgo/cartgo/semver"
)

// BoundEntry is one line of a successful resolution.
type BoundEntry struct {
	Identifier Identifier
	Bound      BoundVersion
}

// Solver runs the backtracking search. It is built fresh per resolution
// request; per-run state (the first-recorded error, the container cache)
// lives directly in the struct, so a Solver must not be reused across
// calls to Resolve.
type Solver struct {
	Provider ContainerProvider

	// Incomplete suppresses new container fetches: an identifier that
	// isn't already cached is silently treated as having no candidate
	// versions. Used by the diagnoser to avoid network traffic during
	// minimization.
	Incomplete bool

	// TraceLogger, if non-nil, receives one line per backtracking decision
	// (candidate try, backtrack past a candidate). Silent unless a
	// caller opts in.
	TraceLogger *log.Logger

	// DiagnoseTimeout bounds the delta-debug minimization pass run on an
	// unsatisfiable input; on expiry Resolve returns ReachedTimeLimit.
	// Zero means no limit.
	DiagnoseTimeout time.Duration

	containers map[Identifier]Container
	firstErr   error
}

func (s *Solver) tracef(format string, args ...interface{}) {
	if s.TraceLogger != nil {
		s.TraceLogger.Printf(format, args...)
	}
}

// NewSolver returns a Solver backed by provider.
func NewSolver(provider ContainerProvider) *Solver {
	return &Solver{Provider: provider, containers: make(map[Identifier]Container)}
}

// Resolve runs the search to completion, returning either the first
// satisfying assignment found or an Unsatisfiable/other resolver error.
func (s *Solver) Resolve(constraints []Constraint) ([]BoundEntry, error) {
	assignment, found, err := s.solve(constraints, NewAssignment(), NewConstraintSet())
	if err != nil {
		return nil, err
	}
	if s.firstErr != nil {
		return nil, s.firstErr
	}
	if !found {
		deps, pins, timedOut := s.diagnose(constraints)
		if timedOut {
			return nil, &ReachedTimeLimit{}
		}
		return nil, &Unsatisfiable{ConflictingDeps: deps, ConflictingPins: pins}
	}

	entries := make([]BoundEntry, 0, len(constraints))
	for _, id := range assignment.Identifiers() {
		bound, _ := assignment.Get(id)
		entries = append(entries, BoundEntry{Identifier: id, Bound: bound})
	}
	sort.Slice(entries, func(i, j int) bool {
		return strings.ToLower(entries[i].Identifier.Name()) < strings.ToLower(entries[j].Identifier.Name())
	})
	return entries, nil
}

// solve is the depth-first fold at the heart of the search: it pops the
// head constraint off the pending queue, merges it into the running
// ConstraintSet, and either checks it against an already-bound identifier
// or resolves a fresh subtree for it, recursing on the remaining queue
// (plus whatever new constraints that subtree discovers) before trying the
// next candidate. Returning (_, false, nil) means "this branch has no
// solution, try the next one", the mechanism that drives backtracking
// without building an explicit lazy sequence type, while still achieving
// early exit: the first branch that reaches an empty queue wins and
// unwinds immediately.
func (s *Solver) solve(queue []Constraint, assignment Assignment, cs ConstraintSet) (Assignment, bool, error) {
	if s.firstErr != nil {
		return Assignment{}, false, nil
	}
	if len(queue) == 0 {
		return assignment, true, nil
	}

	head, rest := queue[0], queue[1:]

	mergedCS, err := cs.Merge(head.Identifier, head.Requirement)
	if err != nil {
		return Assignment{}, false, nil
	}
	req, _ := mergedCS.Get(head.Identifier)

	if bound, ok := assignment.Get(head.Identifier); ok {
		if !boundSatisfies(bound, req) {
			return Assignment{}, false, nil
		}
		return s.solve(rest, assignment, mergedCS)
	}

	container, err := s.containerFor(head.Identifier)
	if err != nil {
		if s.Incomplete {
			// An identifier outside the incomplete-mode cache simply has
			// no candidates; treat this branch as a dead end rather than
			// a fatal error.
			return Assignment{}, false, nil
		}
		s.firstErr = err
		return Assignment{}, false, err
	}

	return s.resolveSubtree(head.Identifier, container, req, rest, assignment, mergedCS)
}

func (s *Solver) resolveSubtree(id Identifier, container Container, req Requirement, rest []Constraint, assignment Assignment, cs ConstraintSet) (Assignment, bool, error) {
	switch req.Kind {
	case RequireUnversioned:
		bound := BoundVersion{Kind: BoundUnversionedKind}
		nextAssignment, mergeErr := assignment.With(id, container, bound)
		if mergeErr != nil {
			return Assignment{}, false, nil
		}
		deps, err := container.UnversionedDependencies()
		if err != nil {
			s.firstErr = err
			return Assignment{}, false, err
		}
		return s.solve(appendConstraints(rest, deps), nextAssignment, cs)

	case RequireRevision:
		bound := BoundVersion{Kind: BoundRevisionKind, Revision: req.Rev, Pinned: semver.PinnedVersion(req.Rev)}
		nextAssignment, mergeErr := assignment.With(id, container, bound)
		if mergeErr != nil {
			return Assignment{}, false, nil
		}
		deps, err := container.DependenciesAtRevision(req.Rev)
		if err != nil {
			s.firstErr = err
			return Assignment{}, false, err
		}
		return s.solve(appendConstraints(rest, deps), nextAssignment, cs)

	case RequireVersionSet:
		return s.resolveVersionSet(id, container, req.Spec, rest, assignment, cs)
	}

	return Assignment{}, false, nil
}

// resolveVersionSet is the one branch of resolveSubtree with real
// backtracking choice: it walks container.Versions newest-first, trying
// each candidate's dependency subtree until one yields a full solution.
func (s *Solver) resolveVersionSet(id Identifier, container Container, spec semver.VersionSpecifier, rest []Constraint, assignment Assignment, cs ConstraintSet) (Assignment, bool, error) {
	next := container.Versions(spec.Matches)

	var previous semver.SemanticVersion
	havePrevious := false

	for {
		candidate, ok, err := next()
		if err != nil {
			s.firstErr = err
			return Assignment{}, false, err
		}
		if !ok {
			return Assignment{}, false, nil
		}

		sem, parseable := candidate.Semantic()
		if !parseable {
			continue
		}
		if havePrevious && !sem.LessThan(previous) {
			panic("resolve: container.Versions violated the newest-first ordering invariant")
		}
		previous, havePrevious = sem, true

		s.tracef("try %s@%s", id.Name(), candidate)

		deps, err := container.DependenciesAt(candidate)
		if err != nil {
			s.firstErr = err
			return Assignment{}, false, err
		}

		var offending []Identifier
		for _, d := range deps {
			if d.Kind == RequireRevision {
				offending = append(offending, d.Identifier)
			}
		}
		if len(offending) > 0 {
			err := &RevisionConstraints{Dependency: id, Version: sem.String(), OffendingRevisions: offending}
			s.firstErr = err
			return Assignment{}, false, err
		}

		bound := BoundVersion{Kind: BoundVersionKind, Version: sem, Pinned: candidate}
		nextAssignment, mergeErr := assignment.With(id, container, bound)
		if mergeErr != nil {
			continue
		}

		result, found, err := s.solve(appendConstraints(rest, deps), nextAssignment, cs)
		if err != nil {
			return Assignment{}, false, err
		}
		if found {
			return result, true, nil
		}
		// this candidate's subtree was unsatisfiable; try the next older
		// version (backtrack).
		s.tracef("backtrack past %s@%s", id.Name(), candidate)
	}
}

func appendConstraints(rest []Constraint, extra []Constraint) []Constraint {
	if len(extra) == 0 {
		return rest
	}
	out := make([]Constraint, 0, len(rest)+len(extra))
	out = append(out, rest...)
	out = append(out, extra...)
	return out
}

func boundSatisfies(bound BoundVersion, req Requirement) bool {
	switch req.Kind {
	case RequireUnversioned:
		return bound.Kind == BoundUnversionedKind
	case RequireRevision:
		return bound.Kind == BoundRevisionKind && bound.Revision == req.Rev
	case RequireVersionSet:
		if bound.Kind != BoundVersionKind {
			return false
		}
		return req.Spec.Matches(bound.Pinned)
	}
	return false
}

var errIncompleteNotCached = &UnknownDependencies{Names: []string{"(suppressed by incomplete mode)"}}

func (s *Solver) containerFor(id Identifier) (Container, error) {
	if c, ok := s.containers[id]; ok {
		return c, nil
	}
	if s.Incomplete {
		return nil, errIncompleteNotCached
	}
	c, err := s.Provider.GetContainer(id)
	if err != nil {
		return nil, err
	}
	s.containers[id] = c
	return c, nil
}

// diagnose runs the delta-debugging minimizer over the candidate
// identifiers drawn from the top-level input. The predicate reproduces the
// original failure by forcing every identifier outside the candidate
// subset to Unversioned and reports whether that restricted input is still
// unsatisfiable; ddmin's minimal subset for which the predicate holds is
// the set of conflicting dependencies and pins.
func (s *Solver) diagnose(constraints []Constraint) (deps []Identifier, pins []Identifier, timedOut bool) {
	seen := newIdentifierIndex()
	ids := make([]Identifier, 0, len(constraints))
	for _, c := range constraints {
		if seen.insert(c.Identifier) {
			ids = append(ids, c.Identifier)
		}
	}

	var deadline time.Time
	if s.DiagnoseTimeout > 0 {
		deadline = time.Now().Add(s.DiagnoseTimeout)
	}
	expired := false

	reproducesFailure := func(allowed []Identifier) bool {
		if !deadline.IsZero() && time.Now().After(deadline) {
			expired = true
			return false
		}
		allow := newIdentifierIndex()
		for _, id := range allowed {
			allow.insert(id)
		}
		trial := NewSolver(s.Provider)
		trial.Incomplete = true
		trial.containers = s.containers
		restricted := make([]Constraint, 0, len(constraints))
		for _, c := range constraints {
			if allow.has(c.Identifier) {
				restricted = append(restricted, c)
			} else {
				restricted = append(restricted, Constraint{Identifier: c.Identifier, Requirement: Unversioned()})
			}
		}
		_, found, _ := trial.solve(restricted, NewAssignment(), NewConstraintSet())
		return !found
	}

	minimal := deltadebug.Run(ids, reproducesFailure)
	if expired {
		return nil, nil, true
	}
	return minimal, minimal, false
}

// identifierIndex is a radix-tree-backed set of Identifiers keyed by name,
// used by diagnose to dedupe the candidate list and test allow-membership.
// The tree keeps entries ordered and prefix-queryable, so a diagnostic
// pass can group related dependency names (a binary project and its
// GitHub mirror sharing a name prefix) without a second data structure.
type identifierIndex struct {
	tree *radix.Tree
}

func newIdentifierIndex() *identifierIndex {
	return &identifierIndex{tree: radix.New()}
}

// insert adds id if it isn't already present, returning true if it was
// newly added.
func (x *identifierIndex) insert(id Identifier) bool {
	key := indexKey(id)
	if _, ok := x.tree.Get(key); ok {
		return false
	}
	x.tree.Insert(key, struct{}{})
	return true
}

func (x *identifierIndex) has(id Identifier) bool {
	_, ok := x.tree.Get(indexKey(id))
	return ok
}

// indexKey renders id's full structural identity as a name-prefixed string:
// the name leads so entries for the same dependency name sort and prefix-walk
// together, with the kind/location fields appended so two distinct
// dependencies that happen to share a derived Name() never collide.
func indexKey(id Identifier) string {
	return id.Name() + "\x00" + id.Kind.String() + "\x00" + id.URL + "\x00" + id.Server + "\x00" + id.Owner + "\x00" + id.Repo
}
