package vcsmirror

import (
	"bufio"
	"bytes"
	"strings"
)

// Submodule describes one entry surfaced from a checked-out source's
// .gitmodules, with its path resolved to the commit SHA recorded in the
// superproject tree.
type Submodule struct {
	Name, Path, URL, SHA string
}

// SubmodulesAtRevision parses .gitmodules as it existed at rev and resolves
// each submodule's path to the commit SHA git has recorded for it, via
// ls-tree.
func (r *Repo) SubmodulesAtRevision(rev string) ([]Submodule, error) {
	blob, err := r.ContentsAtRevision(".gitmodules", rev)
	if err != nil {
		// No .gitmodules file is not an error: the project simply has no
		// submodules.
		return nil, nil
	}

	entries := parseGitmodules(blob)

	out := make([]Submodule, 0, len(entries))
	for _, e := range entries {
		sha, err := r.lsTreeSHA(rev, e.path)
		if err != nil {
			return nil, &GitError{Op: "submodule-sha", URL: r.URL, Reason: err.Error(), Cause: err}
		}
		out = append(out, Submodule{Name: e.name, Path: e.path, URL: e.url, SHA: sha})
	}
	return out, nil
}

type gitmodulesEntry struct {
	name, path, url string
}

// parseGitmodules reads .gitmodules's git-config-flavored text. Each
// [submodule "name"] section has "path" and "url" keys. This is a small,
// purpose-built scanner rather than a full git-config parser, since
// .gitmodules only ever uses this one section shape.
func parseGitmodules(blob []byte) []gitmodulesEntry {
	var entries []gitmodulesEntry
	var cur *gitmodulesEntry

	scanner := bufio.NewScanner(bytes.NewReader(blob))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "[submodule"):
			if cur != nil {
				entries = append(entries, *cur)
			}
			name := extractQuoted(line)
			cur = &gitmodulesEntry{name: name}
		case strings.HasPrefix(line, "path") && cur != nil:
			cur.path = valueAfterEquals(line)
		case strings.HasPrefix(line, "url") && cur != nil:
			cur.url = valueAfterEquals(line)
		}
	}
	if cur != nil {
		entries = append(entries, *cur)
	}
	return entries
}

func extractQuoted(line string) string {
	start := strings.IndexByte(line, '"')
	if start < 0 {
		return ""
	}
	end := strings.LastIndexByte(line, '"')
	if end <= start {
		return ""
	}
	return line[start+1 : end]
}

func valueAfterEquals(line string) string {
	i := strings.IndexByte(line, '=')
	if i < 0 {
		return ""
	}
	return strings.TrimSpace(line[i+1:])
}

// lsTreeSHA resolves the SHA git-ls-tree records for path at rev. This is
// the SHA the superproject expects the submodule to be pinned at, not a
// ref inside the submodule's own history.
func (r *Repo) lsTreeSHA(rev, path string) (string, error) {
	out, err := r.git.RunFromDir("git", "ls-tree", rev, "--", path)
	if err != nil {
		return "", err
	}
	// format: "<mode> commit <sha>\t<path>"
	fields := strings.Fields(string(out))
	if len(fields) < 3 {
		return "", &ReferenceNotFoundError{Ref: path, URL: r.URL}
	}
	return fields[2], nil
}
