// Package binary downloads and installs pre-built framework artifacts:
// it fetches a dependency's binary project definition or release-host
// assets into a content-addressed cache, then unpacks, verifies, and
// installs the framework bundles they contain.
package binary

import "fmt"

// ReadFailedError reports a GET that failed outright or returned a
// non-2xx status.
type ReadFailedError struct {
	URL   string
	Cause error
}

func (e *ReadFailedError) Error() string {
	return fmt.Sprintf("reading %s failed: %v", e.URL, e.Cause)
}

func (e *ReadFailedError) Unwrap() error { return e.Cause }

// WriteFailedError reports a failure persisting a download to the cache
// directory.
type WriteFailedError struct {
	URL   string
	Cause error
}

func (e *WriteFailedError) Error() string {
	return fmt.Sprintf("writing %s to cache failed: %v", e.URL, e.Cause)
}

func (e *WriteFailedError) Unwrap() error { return e.Cause }

// InvalidBinaryJSONError reports a binary project definition that didn't
// parse as a `{version: url}` map.
type InvalidBinaryJSONError struct {
	URL   string
	Cause error
}

func (e *InvalidBinaryJSONError) Error() string {
	return fmt.Sprintf("invalid binary project definition at %s: %v", e.URL, e.Cause)
}

func (e *InvalidBinaryJSONError) Unwrap() error { return e.Cause }

// ReleaseHostAPIRequestFailedError wraps a non-timeout failure talking to
// the release-host API; a timeout is returned as
// ReleaseHostAPITimeoutError instead.
type ReleaseHostAPIRequestFailedError struct {
	Cause error
}

func (e *ReleaseHostAPIRequestFailedError) Error() string {
	return fmt.Sprintf("release host API request failed: %v", e.Cause)
}

func (e *ReleaseHostAPIRequestFailedError) Unwrap() error { return e.Cause }

// ReleaseHostAPITimeoutError reports that a release-host lookup exceeded
// its HTTP timeout. Propagated as a fatal error, never silently dropped.
type ReleaseHostAPITimeoutError struct{}

func (e *ReleaseHostAPITimeoutError) Error() string { return "release host API request timed out" }

// MissingEnvironmentVariableError reports an expected environment variable
// (e.g. a release host token) that wasn't set.
type MissingEnvironmentVariableError struct {
	Name string
}

func (e *MissingEnvironmentVariableError) Error() string {
	return fmt.Sprintf("missing environment variable %q", e.Name)
}

// DuplicatesInArchiveError reports that two or more source bundles mapped
// to the same install path.
type DuplicatesInArchiveError struct {
	Duplicates map[string][]string // install path -> source bundle paths
}

func (e *DuplicatesInArchiveError) Error() string {
	return fmt.Sprintf("archive contains %d colliding install path(s)", len(e.Duplicates))
}

// IncompatibleFrameworkError reports a bundle that failed the
// toolchain-compatibility check.
type IncompatibleFrameworkError struct {
	Path   string
	Reason string
}

func (e *IncompatibleFrameworkError) Error() string {
	return fmt.Sprintf("%s is incompatible: %s", e.Path, e.Reason)
}

// InternalError wraps an unexpected local I/O failure (filesystem, zip
// decoding) that doesn't fit a more specific category.
type InternalError struct {
	Desc string
}

func (e *InternalError) Error() string { return e.Desc }
