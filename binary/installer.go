package binary

import (
	"archive/zip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/karrick/godirwalk"
	"github.com/pkg/errors"
	shutil "github.com/termie/go-shutil"
)

// CompatibilityChecker reports whether a framework built for platform is
// usable with toolchain, and if not, why. It is an injectable seam since
// the actual ABI/version compatibility rule lives outside this core.
type CompatibilityChecker func(platform, toolchain string) (ok bool, reason string)

// AlwaysCompatible is the zero-friction CompatibilityChecker used when no
// toolchain-specific rule is supplied.
func AlwaysCompatible(string, string) (bool, string) { return true, "" }

// InstalledFramework records one bundle the installer materialized, in
// the version-file entry shape per platform: { name, hash?, frameworkPath,
// dsymPath?, bcsymbolmaps? }.
type InstalledFramework struct {
	Platform      string   `json:"-"`
	Name          string   `json:"name"`
	Hash          string   `json:"hash,omitempty"`
	FrameworkPath string   `json:"frameworkPath"`
	DSYMPath      string   `json:"dsymPath,omitempty"`
	BCSymbolMaps  []string `json:"bcsymbolmaps,omitempty"`
}

// executableHash digests the framework's binary so a later install of the
// same (dependency, version) can be recognized as a no-op. An unreadable
// or absent binary yields an empty hash rather than an error.
func executableHash(executablePath string) string {
	f, err := os.Open(executablePath)
	if err != nil {
		return ""
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return ""
	}
	return hex.EncodeToString(h.Sum(nil))
}

// VersionManifest is the `.version` document written beside installed
// frameworks: the commit-ish plus, per platform, the frameworks
// materialized there, used for later idempotency checks.
type VersionManifest struct {
	Commitish string                          `json:"commitish"`
	Platforms map[string][]InstalledFramework `json:"-"`
}

// MarshalJSON flattens Platforms into top-level keys alongside
// commitish, rather than nesting them under a "platforms" field.
func (m VersionManifest) MarshalJSON() ([]byte, error) {
	raw := map[string]interface{}{"commitish": m.Commitish}
	for platform, frameworks := range m.Platforms {
		raw[platform] = frameworks
	}
	return json.Marshal(raw)
}

// UnmarshalJSON is the inverse of MarshalJSON, used by install-idempotence
// checks that need to compare a freshly-written manifest against what's
// already on disk.
func (m *VersionManifest) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.Platforms = make(map[string][]InstalledFramework)
	for k, v := range raw {
		if k == "commitish" {
			if err := json.Unmarshal(v, &m.Commitish); err != nil {
				return err
			}
			continue
		}
		var frameworks []InstalledFramework
		if err := json.Unmarshal(v, &frameworks); err != nil {
			return err
		}
		m.Platforms[k] = frameworks
	}
	return nil
}

// InstallOptions configures one Install call.
type InstallOptions struct {
	ZipFile       string
	ProjectName   string
	PinnedVersion string
	OutputRoot    string
	Toolchain     string
	Compatible    CompatibilityChecker // nil defaults to AlwaysCompatible
}

// Install runs the full installation sequence: unpack, enumerate
// bundles, detect platform, check for destination collisions, check
// toolchain compatibility, copy frameworks/dSYMs/bcsymbolmaps, write the
// `.version` manifest, and delete the temporary unpack directory.
// Everything stages into a temp dir first; the output tree is only
// touched once every bundle has passed its checks.
func Install(opts InstallOptions) (*VersionManifest, error) {
	if opts.Compatible == nil {
		opts.Compatible = AlwaysCompatible
	}

	tempDir, err := os.MkdirTemp("", "cartgo-install-")
	if err != nil {
		return nil, &InternalError{Desc: "creating temporary unpack directory: " + err.Error()}
	}
	defer os.RemoveAll(tempDir)

	if err := unzip(opts.ZipFile, tempDir); err != nil {
		return nil, &InternalError{Desc: "unpacking archive: " + err.Error()}
	}

	bundles, err := enumerateFrameworkBundles(tempDir)
	if err != nil {
		return nil, &InternalError{Desc: "enumerating framework bundles: " + err.Error()}
	}

	type planned struct {
		source, installPath, platform, name string
	}
	var plan []planned
	destinations := make(map[string][]string)

	for _, bundlePath := range bundles {
		platform, err := DetectPlatform(bundlePath)
		if err != nil {
			return nil, &InternalError{Desc: fmt.Sprintf("detecting platform for %s: %v", bundlePath, err)}
		}
		name := strings.TrimSuffix(filepath.Base(bundlePath), ".framework")
		installPath := filepath.Join(opts.OutputRoot, platform, name+".framework")
		destinations[installPath] = append(destinations[installPath], bundlePath)
		plan = append(plan, planned{source: bundlePath, installPath: installPath, platform: platform, name: name})
	}

	dupes := make(map[string][]string)
	for path, sources := range destinations {
		if len(sources) > 1 {
			dupes[path] = sources
		}
	}
	if len(dupes) > 0 {
		return nil, &DuplicatesInArchiveError{Duplicates: dupes}
	}

	for _, p := range plan {
		if ok, reason := opts.Compatible(p.platform, opts.Toolchain); !ok {
			return nil, &IncompatibleFrameworkError{Path: p.source, Reason: reason}
		}
	}

	manifest := &VersionManifest{
		Commitish: opts.PinnedVersion,
		Platforms: make(map[string][]InstalledFramework),
	}

	for _, p := range plan {
		if err := os.MkdirAll(filepath.Dir(p.installPath), 0o755); err != nil {
			return nil, &InternalError{Desc: "creating install directory: " + err.Error()}
		}
		os.RemoveAll(p.installPath)
		if err := shutil.CopyTree(p.source, p.installPath, nil); err != nil {
			return nil, &InternalError{Desc: "copying framework bundle: " + err.Error()}
		}

		installed := InstalledFramework{
			Platform:      p.platform,
			Name:          p.name,
			Hash:          executableHash(filepath.Join(p.installPath, p.name)),
			FrameworkPath: p.installPath,
		}

		dsymSrc := p.source + ".dSYM"
		if fi, err := os.Stat(dsymSrc); err == nil && fi.IsDir() {
			dsymDest := p.installPath + ".dSYM"
			os.RemoveAll(dsymDest)
			if err := shutil.CopyTree(dsymSrc, dsymDest, nil); err != nil {
				return nil, &InternalError{Desc: "copying dSYM bundle: " + err.Error()}
			}
			installed.DSYMPath = dsymDest
		}

		uuids, err := executableUUIDs(filepath.Join(p.installPath, p.name))
		if err != nil {
			return nil, &InternalError{Desc: "reading framework executable UUIDs: " + err.Error()}
		}
		maps, err := copyMatchingBCSymbolMaps(tempDir, filepath.Dir(p.installPath), uuids)
		if err != nil {
			return nil, &InternalError{Desc: "copying bcsymbolmaps: " + err.Error()}
		}
		installed.BCSymbolMaps = maps

		manifest.Platforms[p.platform] = append(manifest.Platforms[p.platform], installed)
	}

	for platform := range manifest.Platforms {
		sort.Slice(manifest.Platforms[platform], func(i, j int) bool {
			return manifest.Platforms[platform][i].Name < manifest.Platforms[platform][j].Name
		})
	}

	if err := writeVersionFile(opts.OutputRoot, opts.ProjectName, manifest); err != nil {
		return nil, &InternalError{Desc: "writing .version manifest: " + err.Error()}
	}

	return manifest, nil
}

func unzip(zipFile, dest string) error {
	r, err := zip.OpenReader(zipFile)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, f := range r.File {
		target := filepath.Join(dest, f.Name)
		if !strings.HasPrefix(target, filepath.Clean(dest)+string(os.PathSeparator)) {
			return errors.Errorf("zip entry %q escapes destination directory", f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, f.Mode()); err != nil {
				return err
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}

		rc, err := f.Open()
		if err != nil {
			return err
		}
		out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode())
		if err != nil {
			rc.Close()
			return err
		}
		_, copyErr := io.Copy(out, rc)
		rc.Close()
		out.Close()
		if copyErr != nil {
			return copyErr
		}
	}
	return nil
}

// enumerateFrameworkBundles walks root for every *.framework directory
// at any depth.
func enumerateFrameworkBundles(root string) ([]string, error) {
	var out []string
	err := godirwalk.Walk(root, &godirwalk.Options{
		Unsorted: false,
		Callback: func(path string, de *godirwalk.Dirent) error {
			if de.IsDir() && strings.HasSuffix(path, ".framework") {
				out = append(out, path)
			}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func executableUUIDs(executablePath string) (map[string]bool, error) {
	f, err := machoOpenQuiet(executablePath)
	if err != nil || f == nil {
		return nil, nil
	}
	defer f.Close()

	uuids := make(map[string]bool)
	for _, l := range f.Loads {
		raw := l.Raw()
		if len(raw) < 24 {
			continue
		}
		if loadCmdIsUUID(f, raw) {
			uuid := formatUUID(raw[8:24])
			uuids[uuid] = true
		}
	}
	return uuids, nil
}

var bcsymbolmapNamePattern = regexp.MustCompile(`^[0-9A-Fa-f]{8}-[0-9A-Fa-f]{4}-[0-9A-Fa-f]{4}-[0-9A-Fa-f]{4}-[0-9A-Fa-f]{12}\.bcsymbolmap$`)

// copyMatchingBCSymbolMaps collects every bcsymbolmap file in the
// unpacked tree whose stem parses as one of the UUIDs embedded in the
// framework executable. Each UUID is taken at most once.
func copyMatchingBCSymbolMaps(unpackRoot, destDir string, uuids map[string]bool) ([]string, error) {
	if len(uuids) == 0 {
		return nil, nil
	}

	var copied []string
	taken := make(map[string]bool)
	err := godirwalk.Walk(unpackRoot, &godirwalk.Options{
		Callback: func(path string, de *godirwalk.Dirent) error {
			if de.IsDir() || !bcsymbolmapNamePattern.MatchString(filepath.Base(path)) {
				return nil
			}
			stem := strings.TrimSuffix(filepath.Base(path), ".bcsymbolmap")
			uuid := strings.ToUpper(stem)
			if !uuids[uuid] || taken[uuid] {
				return nil
			}
			taken[uuid] = true

			dest := filepath.Join(destDir, filepath.Base(path))
			if err := shutil.CopyFile(path, dest, false); err != nil {
				return err
			}
			copied = append(copied, dest)
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(copied)
	return copied, nil
}

func writeVersionFile(outputRoot, projectName string, manifest *VersionManifest) error {
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(outputRoot, "."+projectName+".version")
	if err := os.MkdirAll(outputRoot, 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
