package manifest

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/cartgo/cartgo/dependency"
	"github.com/cartgo/cartgo/semver"
)

// ParseResolved reads a Cartfile.resolved document: the same entry grammar
// as Parse, but the specifier is a quoted pinned version.
func ParseResolved(r io.Reader) (*dependency.ResolvedCartfile, error) {
	scanner := bufio.NewScanner(r)
	var entries []dependency.ResolvedEntry

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		kindTok, rest, ok := splitToken(line)
		if !ok {
			return nil, &ParseError{Line: lineNo, Reason: "expected a dependency kind"}
		}

		loc, rest, err := parseLocation(rest)
		if err != nil {
			return nil, &ParseError{Line: lineNo, Reason: err.Error()}
		}

		dep, err := buildDependency(kindTok, loc)
		if err != nil {
			return nil, &ParseError{Line: lineNo, Reason: err.Error()}
		}

		pinned, _, err := parseLocation(strings.TrimSpace(rest))
		if err != nil {
			return nil, &ParseError{Line: lineNo, Reason: "expected a quoted pinned version: " + err.Error()}
		}

		entries = append(entries, dependency.ResolvedEntry{
			Dependency: dep,
			Pinned:     semver.PinnedVersion(pinned),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading resolved manifest")
	}

	return dependency.NewResolvedCartfile(entries), nil
}

// WriteResolved writes rc to w using the same grammar ParseResolved
// accepts, sorted by dependency name (case-insensitive).
func WriteResolved(w io.Writer, rc *dependency.ResolvedCartfile) error {
	// rc is already sorted by NewResolvedCartfile; re-sort defensively so
	// callers that built one by hand still get stable output.
	sorted := dependency.NewResolvedCartfile(rc.Entries)

	bw := bufio.NewWriter(w)
	for _, e := range sorted.Entries {
		line, err := formatEntry(e.Dependency, fmt.Sprintf("%q", string(e.Pinned)))
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(bw, line); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Write writes an input Cartfile back out in the same grammar Parse
// accepts, preserving manifest (insertion) order for reproducible diffs.
func Write(w io.Writer, cf *dependency.Cartfile) error {
	bw := bufio.NewWriter(w)
	for _, e := range cf.Entries() {
		line, err := formatEntry(e.Dependency, formatSpecifier(e.Specifier))
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(bw, line); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func formatEntry(dep dependency.Dependency, specifierClause string) (string, error) {
	var loc string
	switch dep.Kind {
	case dependency.KindGitHub:
		if dep.Server != "" {
			loc = dep.Server + "/" + dep.Owner + "/" + dep.Repo
		} else {
			loc = dep.Owner + "/" + dep.Repo
		}
	case dependency.KindGit, dependency.KindBinary:
		loc = dep.URL
	default:
		return "", errors.Errorf("unknown dependency kind %v", dep.Kind)
	}

	line := fmt.Sprintf("%s %q", dep.Kind.String(), loc)
	if specifierClause != "" {
		line += " " + specifierClause
	}
	return line, nil
}

func formatSpecifier(spec semver.VersionSpecifier) string {
	if spec == nil || semver.IsAny(spec) {
		return ""
	}
	if ref, ok := semver.AsGitReference(spec); ok {
		// Reconstruct the clause Parse accepts; a 40-hex ref reads as a
		// commit, anything else as a branch.
		if len(ref) == 40 && isHex(ref) {
			return fmt.Sprintf("commit %q", ref)
		}
		return fmt.Sprintf("branch %q", ref)
	}
	return spec.String()
}

func isHex(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
