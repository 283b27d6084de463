// Package manifest parses the user-authored Cartfile grammar into a
// dependency.Cartfile and reads/writes the resolved Cartfile.resolved
// format. Both grammars are line-oriented: one entry per line, blank
// lines and "#" comments skipped.
package manifest

import (
	"bufio"
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/cartgo/cartgo/dependency"
	"github.com/cartgo/cartgo/semver"
)

// Parse reads a Cartfile from r. Blank lines and "#" comments are
// skipped. Duplicate dependencies and malformed entries are reported as
// DuplicateDependencyError / ParseError.
func Parse(r io.Reader) (*dependency.Cartfile, error) {
	cf := dependency.NewCartfile()
	seen := make(map[string][]int) // dependency name -> line numbers, for duplicate diagnostics

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		dep, spec, err := parseEntry(line)
		if err != nil {
			return nil, &ParseError{Line: lineNo, Reason: err.Error()}
		}

		name := dep.Name()
		seen[name] = append(seen[name], lineNo)
		if len(seen[name]) > 1 {
			return nil, &DuplicateDependencyError{Name: name, Occurrences: seen[name]}
		}

		cf.Add(dep, spec)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading manifest")
	}

	return cf, nil
}

// parseEntry parses a single non-blank, non-comment line:
//
//	entry := kind WS location (WS specifier)?
func parseEntry(line string) (dependency.Dependency, semver.VersionSpecifier, error) {
	kindTok, rest, ok := splitToken(line)
	if !ok {
		return dependency.Dependency{}, nil, errors.New("expected a dependency kind (github, git, binary)")
	}

	loc, rest, err := parseLocation(rest)
	if err != nil {
		return dependency.Dependency{}, nil, err
	}

	dep, err := buildDependency(kindTok, loc)
	if err != nil {
		return dependency.Dependency{}, nil, err
	}

	rest = strings.TrimSpace(rest)
	spec, err := parseSpecifier(rest)
	if err != nil {
		return dependency.Dependency{}, nil, err
	}

	return dep, spec, nil
}

func buildDependency(kind, loc string) (dependency.Dependency, error) {
	switch kind {
	case "github":
		parts := strings.Split(loc, "/")
		switch len(parts) {
		case 2:
			return dependency.GitHub("", parts[0], parts[1]), nil
		case 3:
			return dependency.GitHub(parts[0], parts[1], parts[2]), nil
		default:
			return dependency.Dependency{}, errors.Errorf("invalid github location %q: expected \"owner/repo\" or \"server/owner/repo\"", loc)
		}
	case "git":
		return dependency.Git(loc), nil
	case "binary":
		return dependency.Binary(loc), nil
	default:
		return dependency.Dependency{}, errors.Errorf("unknown dependency kind %q", kind)
	}
}

// parseLocation consumes a '"'-delimited location token and returns its
// contents along with the remainder of the line.
func parseLocation(s string) (loc string, rest string, err error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, `"`) {
		return "", "", errors.New("expected a quoted location")
	}
	s = s[1:]
	end := strings.IndexByte(s, '"')
	if end < 0 {
		return "", "", errors.New("unterminated quoted location")
	}
	return s[:end], s[end+1:], nil
}

// parseSpecifier parses the optional trailing specifier clause:
//
//	specifier := "==" version | ">=" version | "~>" version | "branch" string | "commit" string
//
// An empty remainder means Any().
func parseSpecifier(s string) (semver.VersionSpecifier, error) {
	if s == "" {
		return semver.Any(), nil
	}

	switch {
	case strings.HasPrefix(s, "=="):
		return parseVersionOperand(strings.TrimSpace(s[2:]), semver.Exactly)
	case strings.HasPrefix(s, ">="):
		return parseVersionOperand(strings.TrimSpace(s[2:]), semver.AtLeast)
	case strings.HasPrefix(s, "~>"):
		return parseVersionOperand(strings.TrimSpace(s[2:]), semver.CompatibleWith)
	}

	op, rest, ok := splitToken(s)
	if !ok {
		return nil, errors.Errorf("malformed specifier %q", s)
	}
	switch op {
	case "branch", "commit":
		ref, err := unquoteOrBare(rest)
		if err != nil {
			return nil, err
		}
		return semver.GitReference(ref), nil
	default:
		return nil, errors.Errorf("unknown specifier operator %q", op)
	}
}

func parseVersionOperand(s string, ctor func(semver.SemanticVersion) semver.VersionSpecifier) (semver.VersionSpecifier, error) {
	sem, err := semver.ParseSemanticVersion(s)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid version %q", s)
	}
	return ctor(sem), nil
}

// unquoteOrBare accepts either a bare token or a '"'-quoted string for
// branch/commit operands.
func unquoteOrBare(s string) (string, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, `"`) {
		loc, _, err := parseLocation(s)
		return loc, err
	}
	tok, _, ok := splitToken(s)
	if !ok {
		return "", errors.New("expected a branch or commit identifier")
	}
	return tok, nil
}

// splitToken splits s on the first run of whitespace, returning the token
// and the (untrimmed) remainder. ok is false if s has no leading token.
func splitToken(s string) (tok, rest string, ok bool) {
	s = strings.TrimLeft(s, " \t")
	if s == "" {
		return "", "", false
	}
	i := strings.IndexAny(s, " \t")
	if i < 0 {
		return s, "", true
	}
	return s[:i], s[i:], true
}
