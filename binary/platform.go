package binary

import (
	"debug/macho"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Platform identifiers used throughout the installer; each doubles as
// the per-platform directory name under the install output root.
const (
	PlatformMacOS            = "macos"
	PlatformIOS              = "ios"
	PlatformIOSSimulator     = "ios-simulator"
	PlatformTVOS             = "tvos"
	PlatformTVOSSimulator    = "tvos-simulator"
	PlatformWatchOS          = "watchos"
	PlatformWatchOSSimulator = "watchos-simulator"
)

// DetectPlatform determines a bundle's target platform by, in order:
// reading the XCFramework manifest if the bundle sits inside an
// XCFramework; else reading the platform-SDK key from the bundle's Info
// plist; else parsing the embedded platform version load command out of
// the bundle's executable.
func DetectPlatform(bundlePath string) (string, error) {
	if withinXCFramework(bundlePath) {
		if p, ok, err := platformFromXCFrameworkManifest(bundlePath); err != nil {
			return "", err
		} else if ok {
			return p, nil
		}
	}

	if p, ok, err := platformFromInfoPlist(bundlePath); err != nil {
		return "", err
	} else if ok {
		return p, nil
	}

	exe := filepath.Join(bundlePath, strings.TrimSuffix(filepath.Base(bundlePath), ".framework"))
	p, err := platformFromMachO(exe)
	if err != nil {
		return "", errors.Wrapf(err, "detecting platform for %s", bundlePath)
	}
	return p, nil
}

// withinXCFramework reports whether bundlePath is nested (at any depth)
// inside a ".xcframework" directory, matching the real layout
// (<Name>.xcframework/<platform>-<arch>/<Name>.framework) rather than
// assuming the framework is a direct child.
func withinXCFramework(bundlePath string) bool {
	p := bundlePath
	for {
		if strings.HasSuffix(p, ".xcframework") {
			return true
		}
		parent := filepath.Dir(p)
		if parent == p {
			return false
		}
		p = parent
	}
}

// platformFromXCFrameworkManifest reads the Info.plist at the root of an
// enclosing .xcframework and returns the SupportedPlatform value found in
// it. The value is not matched against this bundle's library directory:
// in a manifest listing several libraries, the last SupportedPlatform
// string wins for every bundle.
func platformFromXCFrameworkManifest(bundlePath string) (string, bool, error) {
	xcPath := bundlePath
	for !strings.HasSuffix(xcPath, ".xcframework") {
		parent := filepath.Dir(xcPath)
		if parent == xcPath {
			return "", false, nil
		}
		xcPath = parent
	}

	f, err := os.Open(filepath.Join(xcPath, "Info.plist"))
	if err != nil {
		return "", false, nil
	}
	defer f.Close()

	dict, err := parsePlistStringDict(f)
	if err != nil {
		return "", false, errors.Wrapf(err, "parsing XCFramework manifest %s", xcPath)
	}
	if sdk, ok := dict["SupportedPlatform"]; ok {
		return normalizeSDKName(sdk), true, nil
	}
	return "", false, nil
}

func platformFromInfoPlist(bundlePath string) (string, bool, error) {
	f, err := os.Open(filepath.Join(bundlePath, "Info.plist"))
	if err != nil {
		return "", false, nil
	}
	defer f.Close()

	dict, err := parsePlistStringDict(f)
	if err != nil {
		return "", false, errors.Wrapf(err, "parsing Info.plist for %s", bundlePath)
	}
	if sdk, ok := dict["DTSDKName"]; ok {
		return normalizeSDKName(sdk), true, nil
	}
	if sdk, ok := dict["CFBundleSupportedPlatforms"]; ok {
		return normalizeSDKName(sdk), true, nil
	}
	return "", false, nil
}

func normalizeSDKName(sdk string) string {
	lower := strings.ToLower(sdk)
	switch {
	case strings.Contains(lower, "iphonesimulator"):
		return PlatformIOSSimulator
	case strings.Contains(lower, "iphoneos"), strings.Contains(lower, "ios"):
		return PlatformIOS
	case strings.Contains(lower, "appletvsimulator"):
		return PlatformTVOSSimulator
	case strings.Contains(lower, "appletvos"), strings.Contains(lower, "tvos"):
		return PlatformTVOS
	case strings.Contains(lower, "watchsimulator"):
		return PlatformWatchOSSimulator
	case strings.Contains(lower, "watchos"):
		return PlatformWatchOS
	default:
		return PlatformMacOS
	}
}

// platformFromMachO parses the embedded platform/version load command out
// of a framework's executable directly (LC_BUILD_VERSION or the older
// LC_VERSION_MIN_* commands), rather than shelling out to an external
// object-dump binary: debug/macho reads load commands without invoking
// one, so no toolchain needs to be present.
func platformFromMachO(executablePath string) (string, error) {
	f, err := macho.Open(executablePath)
	if err != nil {
		return "", errors.Wrapf(err, "opening Mach-O executable %s", executablePath)
	}
	defer f.Close()

	for _, l := range f.Loads {
		raw := l.Raw()
		if len(raw) < 8 {
			continue
		}
		cmd := f.ByteOrder.Uint32(raw[0:4])
		switch cmd {
		case loadCmdVersionMinMacosx:
			return PlatformMacOS, nil
		case loadCmdVersionMinIphoneos:
			return PlatformIOS, nil
		case loadCmdVersionMinTvos:
			return PlatformTVOS, nil
		case loadCmdVersionMinWatchos:
			return PlatformWatchOS, nil
		case loadCmdBuildVersion:
			if len(raw) < 12 {
				continue
			}
			platform := f.ByteOrder.Uint32(raw[8:12])
			return buildVersionPlatformName(platform), nil
		}
	}
	return "", errors.Errorf("no platform version load command found in %s", executablePath)
}

// Load-command identifiers from <mach-o/loader.h>; debug/macho only names
// the commands it parses into typed structs, so the version-min and
// build-version commands are matched on their raw values.
const (
	loadCmdVersionMinMacosx   = 0x24
	loadCmdVersionMinIphoneos = 0x25
	loadCmdVersionMinTvos     = 0x2f
	loadCmdVersionMinWatchos  = 0x30
	loadCmdBuildVersion       = 0x32
)

// Platform constants from Apple's <mach-o/loader.h> PLATFORM_* values, as
// encoded by LC_BUILD_VERSION.
const (
	platformMacOS            = 1
	platformIOS              = 2
	platformTVOS             = 3
	platformWatchOS          = 4
	platformIOSSimulator     = 7
	platformTVOSSimulator    = 8
	platformWatchOSSimulator = 9
)

func buildVersionPlatformName(platform uint32) string {
	switch platform {
	case platformMacOS:
		return PlatformMacOS
	case platformIOS:
		return PlatformIOS
	case platformIOSSimulator:
		return PlatformIOSSimulator
	case platformTVOS:
		return PlatformTVOS
	case platformTVOSSimulator:
		return PlatformTVOSSimulator
	case platformWatchOS:
		return PlatformWatchOS
	case platformWatchOSSimulator:
		return PlatformWatchOSSimulator
	default:
		return PlatformMacOS
	}
}
