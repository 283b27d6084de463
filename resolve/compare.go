package resolve

import (
	"crypto/sha256"
	"sort"
	"strings"

	"github.com/cartgo/cartgo/dependency"
	"github.com/cartgo/cartgo/semver"
)

// HashInputs computes a stable digest over constraints, in the order
// given, so a caller can tell whether a Cartfile plus pin hints are
// unchanged from a previous resolution and skip re-running Resolve.
func (s *Solver) HashInputs(constraints []Constraint) ([]byte, error) {
	h := sha256.New()
	for _, c := range constraints {
		id := c.Identifier
		line := strings.Join([]string{
			id.Name(), id.Kind.String(), id.URL, id.Server, id.Owner, id.Repo,
			c.Requirement.String(),
		}, "\x00")
		if _, err := h.Write([]byte(line + "\n")); err != nil {
			return nil, err
		}
	}
	return h.Sum(nil), nil
}

// PinChange reports one dependency whose pin differs between two
// resolutions. Previous or Next is empty when the dependency was only
// present on one side (removed or newly added).
type PinChange struct {
	Identifier Identifier
	Previous   semver.PinnedVersion
	Next       semver.PinnedVersion
}

// Compare reports every pin that would change between previous and next,
// sorted by dependency name.
func Compare(previous, next *dependency.ResolvedCartfile) []PinChange {
	prevByID := make(map[Identifier]semver.PinnedVersion, len(previous.Entries))
	for _, e := range previous.Entries {
		prevByID[e.Dependency] = e.Pinned
	}
	nextByID := make(map[Identifier]semver.PinnedVersion, len(next.Entries))
	for _, e := range next.Entries {
		nextByID[e.Dependency] = e.Pinned
	}

	var changes []PinChange
	for _, e := range next.Entries {
		if prevPinned, ok := prevByID[e.Dependency]; !ok || prevPinned != e.Pinned {
			changes = append(changes, PinChange{Identifier: e.Dependency, Previous: prevByID[e.Dependency], Next: e.Pinned})
		}
	}
	for _, e := range previous.Entries {
		if _, ok := nextByID[e.Dependency]; !ok {
			changes = append(changes, PinChange{Identifier: e.Dependency, Previous: e.Pinned})
		}
	}

	sort.Slice(changes, func(i, j int) bool {
		return strings.ToLower(changes[i].Identifier.Name()) < strings.ToLower(changes[j].Identifier.Name())
	})
	return changes
}
