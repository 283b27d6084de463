package container

import (
	"sort"

	"github.com/cartgo/cartgo/resolve"
	"github.com/cartgo/cartgo/semver"
)

// binaryContainer is the resolve.Container backing Binary dependencies:
// its versions are the keys of the binary project definition fetched from
// the dependency URL, and it declares no nested dependencies.
type binaryContainer struct {
	id       resolve.Identifier
	versions []string // keys of the fetched project definition, descending order not yet applied
}

func newBinaryContainer(fetcher BinaryFetcher, id resolve.Identifier) (*binaryContainer, error) {
	project, err := fetcher.FetchBinaryProject(id.URL)
	if err != nil {
		return nil, err
	}
	versions := make([]string, 0, len(project))
	for v := range project {
		versions = append(versions, v)
	}
	return &binaryContainer{id: id, versions: versions}, nil
}

func (c *binaryContainer) Versions(filter func(semver.PinnedVersion) bool) resolve.VersionSeq {
	var parseable []semver.SemanticVersion
	bySem := make(map[semver.SemanticVersion]string)
	for _, v := range c.versions {
		sem, err := semver.ParseSemanticVersion(v)
		if err != nil {
			continue
		}
		parseable = append(parseable, sem)
		bySem[sem] = v
	}
	sort.Slice(parseable, func(i, j int) bool { return parseable[j].LessThan(parseable[i]) })

	var out []semver.PinnedVersion
	for _, sem := range parseable {
		pv := semver.PinnedVersion(bySem[sem])
		if filter == nil || filter(pv) {
			out = append(out, pv)
		}
	}
	return resolve.SliceSeq(out)
}

// DependenciesAt implements resolve.Container. Binary dependencies never
// declare transitive constraints.
func (c *binaryContainer) DependenciesAt(semver.PinnedVersion) ([]resolve.Constraint, error) {
	return nil, nil
}

func (c *binaryContainer) DependenciesAtRevision(string) ([]resolve.Constraint, error) {
	return nil, nil
}

func (c *binaryContainer) UnversionedDependencies() ([]resolve.Constraint, error) {
	return nil, nil
}

func (c *binaryContainer) UpdatedIdentifier(resolve.BoundVersion) resolve.Identifier {
	return c.id
}
