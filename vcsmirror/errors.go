package vcsmirror

import "fmt"

// GitError is the structured failure every git mirror operation reports,
// carrying enough context for actionable reporting.
type GitError struct {
	Op     string // the high-level operation being performed, e.g. "clone", "fetch"
	URL    string
	Reason string
	Cause  error
}

func (e *GitError) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("git %s failed for %s: %s", e.Op, e.URL, e.Reason)
	}
	return fmt.Sprintf("git %s failed: %s", e.Op, e.Reason)
}

func (e *GitError) Unwrap() error { return e.Cause }

// ReferenceNotFoundError reports that ResolveReference could not find ref
// in the mirror.
type ReferenceNotFoundError struct {
	Ref string
	URL string
}

func (e *ReferenceNotFoundError) Error() string {
	return fmt.Sprintf("reference %q not found in %s", e.Ref, e.URL)
}
