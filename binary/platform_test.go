package binary

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writePlist(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<plist version="1.0"><dict>` + "\n")
	for k, v := range entries {
		b.WriteString("<key>" + k + "</key><string>" + v + "</string>\n")
	}
	b.WriteString(`</dict></plist>`)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDetectPlatformFromInfoPlist(t *testing.T) {
	root := t.TempDir()
	bundle := filepath.Join(root, "Foo.framework")
	writePlist(t, filepath.Join(bundle, "Info.plist"), map[string]string{
		"CFBundleExecutable": "Foo",
		"DTSDKName":          "iphonesimulator14.0",
	})

	platform, err := DetectPlatform(bundle)
	if err != nil {
		t.Fatalf("DetectPlatform: %v", err)
	}
	if platform != PlatformIOSSimulator {
		t.Fatalf("platform = %q, want %q", platform, PlatformIOSSimulator)
	}
}

func TestDetectPlatformFromXCFrameworkManifest(t *testing.T) {
	root := t.TempDir()
	xc := filepath.Join(root, "Foo.xcframework")
	writePlist(t, filepath.Join(xc, "Info.plist"), map[string]string{
		"SupportedPlatform": "appletvos",
	})
	bundle := filepath.Join(xc, "tvos-arm64", "Foo.framework")
	if err := os.MkdirAll(bundle, 0o755); err != nil {
		t.Fatal(err)
	}

	platform, err := DetectPlatform(bundle)
	if err != nil {
		t.Fatalf("DetectPlatform: %v", err)
	}
	if platform != PlatformTVOS {
		t.Fatalf("platform = %q, want %q", platform, PlatformTVOS)
	}
}

func TestNormalizeSDKName(t *testing.T) {
	cases := map[string]string{
		"macosx10.15":          PlatformMacOS,
		"iphoneos14.0":         PlatformIOS,
		"iphonesimulator14.0":  PlatformIOSSimulator,
		"appletvos14.0":        PlatformTVOS,
		"appletvsimulator14.0": PlatformTVOSSimulator,
		"watchos7.0":           PlatformWatchOS,
		"watchsimulator7.0":    PlatformWatchOSSimulator,
	}
	for sdk, want := range cases {
		if got := normalizeSDKName(sdk); got != want {
			t.Errorf("normalizeSDKName(%q) = %q, want %q", sdk, got, want)
		}
	}
}

func TestBuildVersionPlatformName(t *testing.T) {
	cases := map[uint32]string{
		platformMacOS:            PlatformMacOS,
		platformIOS:              PlatformIOS,
		platformIOSSimulator:     PlatformIOSSimulator,
		platformTVOS:             PlatformTVOS,
		platformTVOSSimulator:    PlatformTVOSSimulator,
		platformWatchOS:          PlatformWatchOS,
		platformWatchOSSimulator: PlatformWatchOSSimulator,
	}
	for platform, want := range cases {
		if got := buildVersionPlatformName(platform); got != want {
			t.Errorf("buildVersionPlatformName(%d) = %q, want %q", platform, got, want)
		}
	}
}
