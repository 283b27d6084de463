// Package dependency models source locations (Git, GitHub, Binary), their
// naming and equality rules, and the ordered Cartfile / ResolvedCartfile
// collections built over them.
package dependency

import (
	"path"
	"strings"
)

// Kind distinguishes the three source-location shapes.
type Kind int

const (
	// KindGit is a plain git remote URL.
	KindGit Kind = iota
	// KindGitHub is a (server, owner, repo) triple.
	KindGitHub
	// KindBinary is a direct binary project definition URL.
	KindBinary
)

func (k Kind) String() string {
	switch k {
	case KindGit:
		return "git"
	case KindGitHub:
		return "github"
	case KindBinary:
		return "binary"
	default:
		return "unknown"
	}
}

// Dependency is a tagged variant of source location. Exactly one group of
// fields is meaningful, selected by Kind; equality is structural.
type Dependency struct {
	Kind Kind

	// Git / Binary
	URL string

	// GitHub
	Server, Owner, Repo string
}

// Git constructs a Git(url) dependency.
func Git(url string) Dependency { return Dependency{Kind: KindGit, URL: url} }

// GitHub constructs a GitHub(server, owner, repo) dependency. An empty
// server means the default public host.
func GitHub(server, owner, repo string) Dependency {
	return Dependency{Kind: KindGitHub, Server: server, Owner: owner, Repo: repo}
}

// Binary constructs a Binary(url) dependency.
func Binary(url string) Dependency { return Dependency{Kind: KindBinary, URL: url} }

// Equal reports structural equality between two dependencies.
func (d Dependency) Equal(o Dependency) bool {
	return d == o
}

// Name derives the dependency's stable display/caching name: "owner/repo"
// for GitHub, and for Git and Binary the URL path after the host with any
// ".git" suffix removed (e.g. "org/repo").
func (d Dependency) Name() string {
	switch d.Kind {
	case KindGitHub:
		return d.Owner + "/" + d.Repo
	case KindGit, KindBinary:
		return nameFromURL(d.URL)
	default:
		return ""
	}
}

// CloneURL returns the URL git operations should use to reach this
// dependency. GitHub dependencies are expanded against their server (github.com
// when Server is empty).
func (d Dependency) CloneURL() string {
	switch d.Kind {
	case KindGitHub:
		server := d.Server
		if server == "" {
			server = "github.com"
		}
		return "https://" + server + "/" + d.Owner + "/" + d.Repo + ".git"
	default:
		return d.URL
	}
}

// nameFromURL strips scheme, host, and a trailing ".git" to produce a stable
// name from a URL path, e.g. "https://example.com/org/repo.git" -> "org/repo".
func nameFromURL(url string) string {
	trimmed := url
	if i := strings.Index(trimmed, "://"); i >= 0 {
		trimmed = trimmed[i+3:]
	}
	// scp-like "git@host:org/repo.git" form: the colon separating host
	// from path appears before any slash.
	if at := strings.Index(trimmed, "@"); at >= 0 {
		colon := strings.Index(trimmed, ":")
		slash := strings.Index(trimmed, "/")
		if colon > at && (slash < 0 || colon < slash) {
			trimmed = trimmed[at+1:]
			trimmed = strings.Replace(trimmed, ":", "/", 1)
		}
	}
	if i := strings.Index(trimmed, "/"); i >= 0 {
		trimmed = trimmed[i+1:]
	}
	trimmed = strings.TrimSuffix(trimmed, ".git")
	return path.Clean(trimmed)
}

// CacheKey returns the identifier used to key the fetch cache and the git
// mirror directory: the clone URL, since two dependencies that resolve to
// the same clone target must share one mirror.
func (d Dependency) CacheKey() string {
	return d.CloneURL()
}
