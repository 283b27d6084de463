// Package project is the orchestrator: it glues the manifest, resolver,
// container provider, downloader, and installer together, emitting a
// stream of progress events for whatever caller wants to render them.
// This package only produces the event values; rendering belongs to the
// CLI that owns the Observer.
package project

import "github.com/cartgo/cartgo/dependency"

// EventKind tags one progress-event variant.
type EventKind int

const (
	EventCloning EventKind = iota
	EventFetching
	EventCheckingOut
	EventDownloadingBinaryFrameworkDefinition
	EventDownloadingBinaries
	EventSkippedDownloadingBinaries
	EventSkippedInstallingBinaries
	EventSkippedBuilding
)

func (k EventKind) String() string {
	switch k {
	case EventCloning:
		return "cloning"
	case EventFetching:
		return "fetching"
	case EventCheckingOut:
		return "checking-out"
	case EventDownloadingBinaryFrameworkDefinition:
		return "downloading-binary-framework-definition"
	case EventDownloadingBinaries:
		return "downloading-binaries"
	case EventSkippedDownloadingBinaries:
		return "skipped-downloading-binaries"
	case EventSkippedInstallingBinaries:
		return "skipped-installing-binaries"
	case EventSkippedBuilding:
		return "skipped-building"
	default:
		return "unknown"
	}
}

// Event is the orchestrator's progress notification. Only the fields
// relevant to Kind are populated; see the EventKind constants above for
// which.
type Event struct {
	Kind       EventKind
	Dependency dependency.Dependency

	Revision         string // EventCheckingOut
	URL              string // EventDownloadingBinaryFrameworkDefinition
	VersionOrRelease string // EventDownloadingBinaries
	Reason           string // EventSkippedDownloadingBinaries, EventSkippedBuilding
	Err              error  // EventSkippedInstallingBinaries
}

// Observer receives every Event a Project emits. A nil Observer silently
// drops events; the caller is free to fan them out to a log, a progress
// bar, or nothing at all.
type Observer func(Event)
