package container

import (
	"bytes"
	"context"
	"os"
	"path/filepath"

	"github.com/cartgo/cartgo/manifest"
	"github.com/cartgo/cartgo/resolve"
	"github.com/cartgo/cartgo/semver"
	"github.com/cartgo/cartgo/vcsmirror"
)

// manifestFileName is the name the container looks for inside a
// dependency's checked-out tree or at-revision blob read.
const manifestFileName = "Cartfile"

// gitContainer is the resolve.Container backing Git/GitHub dependencies:
// a thin wrapper around the mirror handle that answers "what
// versions/constraints exist" by reading tags and blobs rather than
// maintaining its own state.
type gitContainer struct {
	id            resolve.Identifier
	repo          *vcsmirror.Repo
	cache         *BoltCache
	useSubmodules bool

	workingTree string // lazily populated on first UnversionedDependencies call
}

func newGitContainer(ctx context.Context, mirror *vcsmirror.Mirror, cache *BoltCache, id resolve.Identifier, useSubmodules bool) (*gitContainer, error) {
	repo, err := mirror.CloneOrFetch(ctx, id.CloneURL(), nil)
	if err != nil {
		return nil, err
	}
	return &gitContainer{id: id, repo: repo, cache: cache, useSubmodules: useSubmodules}, nil
}

// Versions returns the parseable semantic-version tags, sorted
// descending, filtered through the supplied predicate.
func (c *gitContainer) Versions(filter func(semver.PinnedVersion) bool) resolve.VersionSeq {
	if cached, ok := c.cache.getTags(c.id.CacheKey()); ok {
		return filteredTagSeq(cached, filter)
	}

	tags, err := c.repo.ListTags()
	if err != nil {
		return func() (semver.PinnedVersion, bool, error) { return "", false, err }
	}
	c.cache.putTags(c.id.CacheKey(), tags)
	return filteredTagSeq(tags, filter)
}

func filteredTagSeq(tags []string, filter func(semver.PinnedVersion) bool) resolve.VersionSeq {
	var out []semver.PinnedVersion
	for _, t := range tags {
		if _, err := semver.ParseSemanticVersion(t); err != nil {
			continue
		}
		pv := semver.PinnedVersion(t)
		if filter == nil || filter(pv) {
			out = append(out, pv)
		}
	}
	return resolve.SliceSeq(out)
}

// DependenciesAt resolves the version's tag to a SHA and reads the nested
// manifest blob at that revision.
func (c *gitContainer) DependenciesAt(v semver.PinnedVersion) ([]resolve.Constraint, error) {
	sha, err := c.repo.ResolveReference(string(v))
	if err != nil {
		return nil, err
	}
	return c.dependenciesAtRevisionSHA(sha)
}

// DependenciesAtRevision is DependenciesAt for an arbitrary git ref.
func (c *gitContainer) DependenciesAtRevision(rev string) ([]resolve.Constraint, error) {
	sha, err := c.repo.ResolveReference(rev)
	if err != nil {
		return nil, err
	}
	return c.dependenciesAtRevisionSHA(sha)
}

func (c *gitContainer) dependenciesAtRevisionSHA(sha string) ([]resolve.Constraint, error) {
	var blob []byte
	if cached, ok := c.cache.getManifest(c.id.CacheKey(), sha); ok {
		blob = cached
	} else {
		fetched, err := c.repo.ContentsAtRevision(manifestFileName, sha)
		if err != nil {
			// No manifest at this revision means no declared dependencies,
			// not a failure (many tagged releases simply have none).
			return nil, nil
		}
		blob = fetched
		c.cache.putManifest(c.id.CacheKey(), sha, blob)
	}

	cf, err := manifest.Parse(bytes.NewReader(blob))
	if err != nil {
		return nil, err
	}
	return resolve.ConstraintsFromCartfile(cf), nil
}

// UnversionedDependencies reads the manifest from an unpinned working
// tree checkout.
func (c *gitContainer) UnversionedDependencies() ([]resolve.Constraint, error) {
	if c.workingTree == "" {
		wt, err := os.MkdirTemp("", "cartgo-unversioned-")
		if err != nil {
			return nil, err
		}
		c.workingTree = wt
	}
	if err := c.repo.Checkout(context.Background(), c.workingTree, "HEAD", true); err != nil {
		return nil, err
	}
	if c.useSubmodules {
		if _, err := c.repo.SubmodulesAtRevision("HEAD"); err != nil {
			return nil, err
		}
	}

	f, err := os.Open(filepath.Join(c.workingTree, manifestFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	cf, err := manifest.Parse(f)
	if err != nil {
		return nil, err
	}
	return resolve.ConstraintsFromCartfile(cf), nil
}

// UpdatedIdentifier implements resolve.Container. Git/GitHub dependencies
// never redirect their identifier once bound; the rebinding hook exists
// for sources that can discover a canonical name post-fetch, which
// neither of git/github's fixed location shapes need.
func (c *gitContainer) UpdatedIdentifier(resolve.BoundVersion) resolve.Identifier {
	return c.id
}
