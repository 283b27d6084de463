package dependency

import (
	"sort"
	"strings"

	"github.com/cartgo/cartgo/semver"
)

// Cartfile is a mapping from Dependency to VersionSpecifier.
// Dependencies are unique; Entries() returns them in first-insertion
// order for reproducible output.
type Cartfile struct {
	entries map[Dependency]semver.VersionSpecifier
	// order preserves first-insertion order, used by the resolver to break
	// ties between siblings in manifest order.
	order []Dependency
}

// NewCartfile returns an empty Cartfile.
func NewCartfile() *Cartfile {
	return &Cartfile{entries: make(map[Dependency]semver.VersionSpecifier)}
}

// Add inserts or overwrites the specifier for dep. It returns false if dep
// was already present (the caller should treat this as a duplicate-entry
// error).
func (c *Cartfile) Add(dep Dependency, spec semver.VersionSpecifier) bool {
	_, exists := c.entries[dep]
	if !exists {
		c.order = append(c.order, dep)
	}
	c.entries[dep] = spec
	return !exists
}

// Get returns the specifier for dep, if present.
func (c *Cartfile) Get(dep Dependency) (semver.VersionSpecifier, bool) {
	v, ok := c.entries[dep]
	return v, ok
}

// Len reports the number of dependencies in the Cartfile.
func (c *Cartfile) Len() int { return len(c.entries) }

// Entry pairs a Dependency with its specifier, used by Entries() and
// ResolvedCartfile.
type Entry struct {
	Dependency Dependency
	Specifier  semver.VersionSpecifier
}

// Entries returns all entries in first-insertion ("manifest") order.
func (c *Cartfile) Entries() []Entry {
	out := make([]Entry, 0, len(c.order))
	for _, dep := range c.order {
		out = append(out, Entry{Dependency: dep, Specifier: c.entries[dep]})
	}
	return out
}

// ResolvedEntry pairs a Dependency with the PinnedVersion the resolver
// selected for it.
type ResolvedEntry struct {
	Dependency Dependency
	Pinned     semver.PinnedVersion
}

// ResolvedCartfile is the ordered sequence of (Dependency, PinnedVersion)
// pairs, sorted by dependency name (case-insensitive) for stable output.
type ResolvedCartfile struct {
	Entries []ResolvedEntry
}

// NewResolvedCartfile sorts entries by dependency name (case-insensitive)
// and returns the resulting ResolvedCartfile.
func NewResolvedCartfile(entries []ResolvedEntry) *ResolvedCartfile {
	sorted := make([]ResolvedEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return strings.ToLower(sorted[i].Dependency.Name()) < strings.ToLower(sorted[j].Dependency.Name())
	})
	return &ResolvedCartfile{Entries: sorted}
}

// Pinned returns the pinned version recorded for dep, if any.
func (r *ResolvedCartfile) Pinned(dep Dependency) (semver.PinnedVersion, bool) {
	for _, e := range r.Entries {
		if e.Dependency.Equal(dep) {
			return e.Pinned, true
		}
	}
	return "", false
}
