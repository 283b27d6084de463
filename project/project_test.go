package project

import (
	"archive/zip"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/cartgo/cartgo/binary"
	"github.com/cartgo/cartgo/container"
	"github.com/cartgo/cartgo/dependency"
	"github.com/cartgo/cartgo/resolve"
	"github.com/cartgo/cartgo/semver"
)

// stripScheme strips "https://" so an httptest.NewTLSServer's address can
// stand in for a release-host hostname (DownloadFromReleaseHost always
// prefixes "https://" itself); mirrors binary/downloader_test.go's helper
// of the same name, duplicated here since it's unexported in that package.
func stripScheme(u string) string {
	const prefix = "https://"
	if len(u) >= len(prefix) && u[:len(prefix)] == prefix {
		return u[len(prefix):]
	}
	return u
}

type fakeBinaryFetcher struct {
	defs map[string]map[string]string
}

func (f *fakeBinaryFetcher) FetchBinaryProject(url string) (map[string]string, error) {
	return f.defs[url], nil
}

// TestProjectResolveBinaryOnly exercises Resolve end to end over a Cartfile
// containing only a Binary dependency, so no network or git mirror is
// needed: the highest version satisfying the specifier must win.
func TestProjectResolveBinaryOnly(t *testing.T) {
	dep := dependency.Binary("https://example.com/Foo.json")
	minVer, err := semver.ParseSemanticVersion("1.0.0")
	if err != nil {
		t.Fatal(err)
	}

	cf := dependency.NewCartfile()
	cf.Add(dep, semver.AtLeast(minVer))

	fetcher := &fakeBinaryFetcher{defs: map[string]map[string]string{
		"https://example.com/Foo.json": {"1.0.0": "u1", "1.1.0": "u2", "2.0.0": "u3"},
	}}
	provider := container.NewProvider(context.Background(), nil, fetcher, nil)

	p := &Project{Cartfile: cf, Provider: provider}

	resolved, err := p.Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(resolved.Entries) != 1 {
		t.Fatalf("expected 1 resolved entry, got %d", len(resolved.Entries))
	}
	if resolved.Entries[0].Pinned != "2.0.0" {
		t.Fatalf("pinned = %q, want 2.0.0 (newest satisfying >= 1.0.0)", resolved.Entries[0].Pinned)
	}
}

// TestProjectResolveUnsatisfiable checks that an unsatisfiable Cartfile
// surfaces as resolve.Unsatisfiable through the orchestrator, not just the
// bare solver. A single binary dependency whose only published version
// doesn't satisfy its own specifier is the smallest such input.
func TestProjectResolveUnsatisfiable(t *testing.T) {
	dep := dependency.Binary("https://example.com/Foo.json")
	minVer, err := semver.ParseSemanticVersion("3.0.0")
	if err != nil {
		t.Fatal(err)
	}

	cf := dependency.NewCartfile()
	cf.Add(dep, semver.AtLeast(minVer))

	fetcher := &fakeBinaryFetcher{defs: map[string]map[string]string{
		"https://example.com/Foo.json": {"1.0.0": "u1"},
	}}
	provider := container.NewProvider(context.Background(), nil, fetcher, nil)
	p := &Project{Cartfile: cf, Provider: provider}

	_, err = p.Resolve()
	if err == nil {
		t.Fatal("expected Resolve to fail")
	}
	if _, ok := err.(*resolve.Unsatisfiable); !ok {
		t.Fatalf("expected *resolve.Unsatisfiable, got %T: %v", err, err)
	}
}

func writeZipEntry(t *testing.T, w *zip.Writer, name, content string) {
	t.Helper()
	f, err := w.Create(name)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
}

const infoPlistMacOS = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>CFBundleExecutable</key>
	<string>Foo</string>
	<key>DTSDKName</key>
	<string>macosx10.15</string>
</dict>
</plist>`

func buildSampleZip(t *testing.T, dir string) string {
	t.Helper()
	zipPath := filepath.Join(dir, "Foo.zip")
	f, err := os.Create(zipPath)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	writeZipEntry(t, zw, "Foo.framework/Info.plist", infoPlistMacOS)
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return zipPath
}

// TestProjectInstallBinaryDependency exercises the full binary install
// through the orchestrator's Install verb: a binary project definition endpoint
// plus an artifact endpoint, served over httptest, ending in a materialized
// framework bundle and .version file under OutputRoot.
func TestProjectInstallBinaryDependency(t *testing.T) {
	tmp := t.TempDir()
	zipPath := buildSampleZip(t, tmp)

	var artifactHits int32
	mux := http.NewServeMux()
	mux.HandleFunc("/Foo.json", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"1.2.3": "/Foo-1.2.3.zip"})
	})
	mux.HandleFunc("/Foo-1.2.3.zip", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&artifactHits, 1)
		data, _ := os.ReadFile(zipPath)
		w.Write(data)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	dep := dependency.Binary(srv.URL + "/Foo.json")
	cf := dependency.NewCartfile()
	zeroVer, _ := semver.ParseSemanticVersion("1.0.0")
	cf.Add(dep, semver.AtLeast(zeroVer))

	downloader := binary.NewDownloader(filepath.Join(tmp, "cache"))
	provider := container.NewProvider(context.Background(), nil, downloader, nil)
	outDir := filepath.Join(tmp, "out")

	var events []Event
	p := &Project{
		Cartfile:   cf,
		Provider:   provider,
		Downloader: downloader,
		OutputRoot: outDir,
		Observer:   func(e Event) { events = append(events, e) },
	}

	gotDep, gotPinned, err := p.Install(dep, semver.PinnedVersion("1.2.3"), true, "swift-5")
	if err != nil {
		t.Fatalf("Install: %v", err)
	}
	if !gotDep.Equal(dep) || gotPinned != "1.2.3" {
		t.Fatalf("unexpected Install return: %+v %q", gotDep, gotPinned)
	}

	installed := filepath.Join(outDir, "macos", "Foo.framework")
	if _, err := os.Stat(installed); err != nil {
		t.Fatalf("expected installed framework at %s: %v", installed, err)
	}
	versionFile := filepath.Join(outDir, ".Foo.json.version")
	if _, err := os.Stat(versionFile); err != nil {
		t.Fatalf("expected .version file: %v", err)
	}

	if atomic.LoadInt32(&artifactHits) != 1 {
		t.Fatalf("expected exactly one artifact download, got %d", artifactHits)
	}

	var sawDefinition, sawBinaries bool
	for _, e := range events {
		switch e.Kind {
		case EventDownloadingBinaryFrameworkDefinition:
			sawDefinition = true
		case EventDownloadingBinaries:
			sawBinaries = true
		}
	}
	if !sawDefinition || !sawBinaries {
		t.Fatalf("expected both definition and binaries download events, got %+v", events)
	}
}

// TestProjectInstallGitHubNoReleaseEmitsSkipEvent exercises the
// useBinaries branch for a GitHub dependency whose release host reports
// no matching release: tryInstallGitHubRelease must return an error (the
// signal Install uses to fall through to checkout) and the
// SkippedDownloadingBinaries event must fire. The checkout fallback
// itself is not exercised here, since it needs a real git remote.
func TestProjectInstallGitHubNoReleaseEmitsSkipEvent(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/o/Foo/releases/tags/1.0.0", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	srv := httptest.NewTLSServer(mux)
	defer srv.Close()

	dep := dependency.GitHub(stripScheme(srv.URL), "o", "Foo")

	downloader := binary.NewDownloader(t.TempDir())
	downloader.Client = srv.Client()
	var events []Event
	p := &Project{
		Downloader: downloader,
		Observer:   func(e Event) { events = append(events, e) },
	}

	err := p.tryInstallGitHubRelease(dep, semver.PinnedVersion("1.0.0"), "swift-5")
	if err == nil {
		t.Fatal("expected an error (no release found)")
	}

	var sawSkip bool
	for _, e := range events {
		if e.Kind == EventSkippedDownloadingBinaries {
			sawSkip = true
		}
	}
	if !sawSkip {
		t.Fatalf("expected a SkippedDownloadingBinaries event, got %+v", events)
	}
}
