// Package vcsmirror maintains a content-addressed local mirror of
// upstream repositories: bare clones keyed by a sanitized form of the
// clone URL (not a hash of it), fetch-rate capped
// via fetchcache, exposing tag listing, reference resolution, blob reads
// at a revision, submodule enumeration, and working-tree checkout.
package vcsmirror

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Masterminds/vcs"
	"github.com/pkg/errors"
	"github.com/theckman/go-flock"

	"github.com/cartgo/cartgo/fetchcache"
	"github.com/cartgo/cartgo/semver"
)

func init() {
	// Disable every interactive credential prompt for the lifetime of the
	// process; a mirror fetch must never hang waiting for a password.
	os.Setenv("GIT_TERMINAL_PROMPT", "0")
	os.Setenv("GIT_SSH_COMMAND", "ssh -o BatchMode=yes -o StrictHostKeyChecking=accept-new")
}

// Phase identifies which long-running git operation is in progress, for
// progress reporting.
type Phase int

const (
	PhaseCloning Phase = iota
	PhaseFetching
	PhaseCheckingOut
)

// Mirror manages a directory of bare git mirrors keyed by clone URL, rate
// limiting clone/fetch via a shared fetchcache.Cache.
type Mirror struct {
	root  string
	cache *fetchcache.Cache
}

// New returns a Mirror storing bare repositories under
// root/repositories/<sanitizeURL(url)>/. The directory name is the URL with
// separators replaced by '-', not a hash of the URL.
func New(root string, cache *fetchcache.Cache) *Mirror {
	if cache == nil {
		cache = fetchcache.Default
	}
	return &Mirror{root: root, cache: cache}
}

// Repo is a handle onto one bare mirror.
type Repo struct {
	URL       string
	LocalPath string
	git       *vcs.GitRepo
}

func (m *Mirror) pathFor(url string) string {
	return filepath.Join(m.root, "repositories", sanitizeURL(url))
}

// sanitizeURL produces a filesystem-safe directory name for a clone URL by
// replacing "://", "/", ":" and "@" with "-".
func sanitizeURL(url string) string {
	replacer := strings.NewReplacer("://", "-", "/", "-", ":", "-", "@", "-")
	return replacer.Replace(url)
}

// CloneOrFetch materializes (or refreshes) the bare mirror for url,
// honoring the fetch cache's TTL. onEvent, if non-nil, is called once
// with the phase being performed when a clone or fetch happens, and not
// at all when the fetch cache skips the refresh.
func (m *Mirror) CloneOrFetch(ctx context.Context, url string, onEvent func(Phase)) (*Repo, error) {
	local := m.pathFor(url)

	unlock, err := m.lockMirror(local)
	if err != nil {
		return nil, &GitError{Op: "lock", URL: url, Reason: err.Error(), Cause: err}
	}
	defer unlock()

	if _, err := os.Stat(local); os.IsNotExist(err) {
		if onEvent != nil {
			onEvent(PhaseCloning)
		}
		if err := bareClone(ctx, url, local); err != nil {
			return nil, &GitError{Op: "clone", URL: url, Reason: err.Error(), Cause: err}
		}
		m.cache.MarkFetched(url)
	} else if m.cache.NeedsFetch(url) {
		if onEvent != nil {
			onEvent(PhaseFetching)
		}
		if err := fetchPrune(ctx, local); err != nil {
			return nil, &GitError{Op: "fetch", URL: url, Reason: err.Error(), Cause: err}
		}
		m.cache.MarkFetched(url)
	}

	git, err := vcs.NewGitRepo(url, local)
	if err != nil {
		return nil, &GitError{Op: "open", URL: url, Reason: err.Error(), Cause: err}
	}

	return &Repo{URL: url, LocalPath: local, git: git}, nil
}

// lockMirror takes a cross-process advisory lock on local's mirror
// directory before any clone/fetch touches it, so two cartgo invocations
// sharing a cache root never race on the same bare repository. One lock
// per mirror, not one for the whole cache root, so fetches of distinct
// repositories still proceed in parallel.
func (m *Mirror) lockMirror(local string) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(local), 0o755); err != nil {
		return nil, errors.Wrap(err, "creating mirror parent directory")
	}
	fl := flock.NewFlock(local + ".lock")
	if err := fl.Lock(); err != nil {
		return nil, errors.Wrap(err, "acquiring mirror lock")
	}
	return func() { fl.Unlock() }, nil
}

func bareClone(ctx context.Context, url, local string) error {
	if err := os.MkdirAll(filepath.Dir(local), 0o755); err != nil {
		return errors.Wrap(err, "creating mirror parent directory")
	}
	cmd := exec.CommandContext(ctx, "git", "clone", "--bare", url, local)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return errors.Wrapf(err, "git clone --bare: %s", string(out))
	}
	return nil
}

func fetchPrune(ctx context.Context, local string) error {
	cmd := exec.CommandContext(ctx, "git", "fetch", "--prune", "--tags", "origin", "+refs/*:refs/*")
	cmd.Dir = local
	out, err := cmd.CombinedOutput()
	if err != nil {
		return errors.Wrapf(err, "git fetch --prune: %s", string(out))
	}
	return nil
}

// ListTags returns the mirror's tags, newest first.
// Tags that parse as semantic versions are sorted by that order (newest
// first); non-parseable tags are appended afterward in the order git
// reports them, reversed.
func (r *Repo) ListTags() ([]string, error) {
	raw, err := r.git.Tags()
	if err != nil {
		return nil, &GitError{Op: "list-tags", URL: r.URL, Reason: err.Error(), Cause: err}
	}
	return sortTagsReverseChronological(raw), nil
}

// sortTagsReverseChronological orders tags newest-first: tags that parse as
// semantic versions sort by that order; any remaining tags are appended in
// the reverse of the order the VCS reported them, the best available proxy
// for recency when there's no semantic ordering to rely on.
func sortTagsReverseChronological(raw []string) []string {
	var parsedTags, other []string
	for _, tag := range raw {
		if _, err := semver.ParseSemanticVersion(tag); err == nil {
			parsedTags = append(parsedTags, tag)
		} else {
			other = append(other, tag)
		}
	}

	sort.SliceStable(parsedTags, func(i, j int) bool {
		vi, _ := semver.ParseSemanticVersion(parsedTags[i])
		vj, _ := semver.ParseSemanticVersion(parsedTags[j])
		return vj.LessThan(vi) // descending
	})

	reversedOther := make([]string, len(other))
	for i, tag := range other {
		reversedOther[len(other)-1-i] = tag
	}

	return append(parsedTags, reversedOther...)
}

// ResolveReference resolves ref (a branch, tag, or partial SHA) to a full
// commit SHA.
func (r *Repo) ResolveReference(ref string) (string, error) {
	out, err := r.git.RunFromDir("git", "rev-parse", "--verify", ref+"^{commit}")
	if err != nil {
		return "", &ReferenceNotFoundError{Ref: ref, URL: r.URL}
	}
	return strings.TrimSpace(string(out)), nil
}

// ContentsAtRevision reads the bytes of path as it existed at rev.
func (r *Repo) ContentsAtRevision(path, rev string) ([]byte, error) {
	out, err := r.git.RunFromDir("git", "show", fmt.Sprintf("%s:%s", rev, path))
	if err != nil {
		return nil, &GitError{Op: "show", URL: r.URL, Reason: fmt.Sprintf("%s at %s: %v", path, rev, err), Cause: err}
	}
	return out, nil
}

// Checkout materializes rev into workingTree, cloning from the local
// mirror if workingTree doesn't yet exist.
func (r *Repo) Checkout(ctx context.Context, workingTree, rev string, force bool) error {
	if _, err := os.Stat(filepath.Join(workingTree, ".git")); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(workingTree), 0o755); err != nil {
			return &GitError{Op: "checkout", URL: r.URL, Reason: err.Error(), Cause: err}
		}
		cmd := exec.CommandContext(ctx, "git", "clone", r.LocalPath, workingTree)
		if out, err := cmd.CombinedOutput(); err != nil {
			return &GitError{Op: "checkout", URL: r.URL, Reason: string(out), Cause: err}
		}
	}

	wtRepo, err := vcs.NewGitRepo(r.LocalPath, workingTree)
	if err != nil {
		return &GitError{Op: "checkout", URL: r.URL, Reason: err.Error(), Cause: err}
	}

	args := []string{"checkout"}
	if force {
		args = append(args, "-f")
	}
	args = append(args, rev)
	if _, err := wtRepo.RunFromDir("git", args...); err != nil {
		return &GitError{Op: "checkout", URL: r.URL, Reason: err.Error(), Cause: err}
	}
	return nil
}
