package project

import (
	"context"
	"errors"
	"log"
	"net/http"
	"net/url"
	"path/filepath"
	"time"

	"github.com/cartgo/cartgo/binary"
	"github.com/cartgo/cartgo/config"
	"github.com/cartgo/cartgo/container"
	"github.com/cartgo/cartgo/dependency"
	"github.com/cartgo/cartgo/fetchcache"
	"github.com/cartgo/cartgo/resolve"
	"github.com/cartgo/cartgo/semver"
	"github.com/cartgo/cartgo/vcsmirror"
)

// Project glues a Cartfile to a container provider, a binary
// downloader/installer, and a git mirror for one resolve/checkout/install
// session, emitting Events as it goes.
type Project struct {
	Cartfile *dependency.Cartfile

	Mirror     *vcsmirror.Mirror
	Provider   *container.Provider
	Downloader *binary.Downloader

	// CheckoutRoot is where source working trees are materialized.
	CheckoutRoot string
	// OutputRoot is the root of the install directory layout.
	OutputRoot string

	UseSubmodules bool
	Toolchain     string

	Observer        Observer
	TraceLogger     *log.Logger
	DiagnoseTimeout time.Duration
}

// NewProject wires a Project's collaborators from cfg (falling back to
// config.Default() when cfg is nil). checkoutRoot is where source
// working trees land; outputRoot is where frameworks are installed.
func NewProject(cf *dependency.Cartfile, cfg *config.Config, checkoutRoot, outputRoot string) (*Project, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	cache := fetchcache.New(cfg.FetchTTL())
	mirror := vcsmirror.New(cfg.CacheRoot, cache)

	downloader := binary.NewDownloader(cfg.CacheRoot)
	downloader.NetrcPath = cfg.NetrcPath
	downloader.UseNetrc = cfg.NetrcPath != ""
	downloader.ReleaseHostToken = cfg.ReleaseHostToken
	if cfg.HTTPProxy != "" {
		proxyURL, err := url.Parse(cfg.HTTPProxy)
		if err != nil {
			return nil, errors.New("project: invalid http_proxy setting: " + err.Error())
		}
		downloader.Client.Transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
	}

	var boltCache *container.BoltCache
	if cfg.CacheRoot != "" {
		// A bolt cache is an optimization, not a correctness requirement
		// (container.BoltCache's nil receiver always misses): if it can't
		// be opened, the provider degrades to in-memory-only caching
		// rather than failing project construction outright.
		if opened, err := container.OpenBoltCache(filepath.Join(cfg.CacheRoot, "containers.bolt")); err == nil {
			boltCache = opened
		}
	}

	provider := container.NewProvider(context.Background(), mirror, downloader, boltCache)

	return &Project{
		Cartfile:        cf,
		Mirror:          mirror,
		Provider:        provider,
		Downloader:      downloader,
		CheckoutRoot:    checkoutRoot,
		OutputRoot:      outputRoot,
		Toolchain:       cfg.DefaultToolchain,
		DiagnoseTimeout: cfg.DeltaDebugTimeout(),
	}, nil
}

func (p *Project) emit(e Event) {
	if p.Observer != nil {
		p.Observer(e)
	}
}

// SetUseSubmodules keeps the orchestrator's own submodule flag and the
// container provider's in sync, since both need to agree on whether an
// unversioned dependency's manifest read and its final checkout both
// recurse into submodules.
func (p *Project) SetUseSubmodules(use bool) {
	p.UseSubmodules = use
	p.Provider.UseSubmodules = use
}

// AvailableVersions returns the lazy sequence of pinned versions the
// dependency's container offers, newest first.
func (p *Project) AvailableVersions(dep dependency.Dependency) (resolve.VersionSeq, error) {
	c, err := p.Provider.GetContainer(dep)
	if err != nil {
		return nil, err
	}
	return c.Versions(nil), nil
}

// Resolve runs the solver over the project's Cartfile and returns the
// resulting pinned set.
func (p *Project) Resolve() (*dependency.ResolvedCartfile, error) {
	constraints := resolve.ConstraintsFromCartfile(p.Cartfile)

	solver := resolve.NewSolver(p.Provider)
	solver.TraceLogger = p.TraceLogger
	solver.DiagnoseTimeout = p.DiagnoseTimeout

	bound, err := solver.Resolve(constraints)
	if err != nil {
		return nil, err
	}

	entries := make([]dependency.ResolvedEntry, 0, len(bound))
	for _, b := range bound {
		entries = append(entries, dependency.ResolvedEntry{Dependency: b.Identifier, Pinned: pinnedFromBound(b.Bound)})
	}
	return dependency.NewResolvedCartfile(entries), nil
}

func pinnedFromBound(b resolve.BoundVersion) semver.PinnedVersion {
	switch b.Kind {
	case resolve.BoundVersionKind, resolve.BoundRevisionKind:
		return b.Pinned
	case resolve.BoundUnversionedKind:
		return semver.PinnedVersion("unversioned")
	default:
		return ""
	}
}

// Checkout materializes a working tree for dep at pinned, updating
// submodules recursively when UseSubmodules is set. It is an error for
// Binary dependencies, which have no git source to check out.
func (p *Project) Checkout(dep dependency.Dependency, pinned semver.PinnedVersion) error {
	if dep.Kind == dependency.KindBinary {
		return errors.New("project: checkout is not defined for a Binary dependency")
	}

	ctx := context.Background()
	repo, err := p.Mirror.CloneOrFetch(ctx, dep.CloneURL(), func(phase vcsmirror.Phase) {
		switch phase {
		case vcsmirror.PhaseCloning:
			p.emit(Event{Kind: EventCloning, Dependency: dep})
		case vcsmirror.PhaseFetching:
			p.emit(Event{Kind: EventFetching, Dependency: dep})
		}
	})
	if err != nil {
		return err
	}

	sha, err := repo.ResolveReference(string(pinned))
	if err != nil {
		return err
	}

	p.emit(Event{Kind: EventCheckingOut, Dependency: dep, Revision: sha})

	workingTree := p.workingTreePath(dep)
	if err := repo.Checkout(ctx, workingTree, sha, true); err != nil {
		return err
	}

	if p.UseSubmodules {
		return p.checkoutSubmodules(ctx, repo, sha, workingTree)
	}
	return nil
}

func (p *Project) workingTreePath(dep dependency.Dependency) string {
	return filepath.Join(p.CheckoutRoot, dep.Name())
}

// checkoutSubmodules recursively materializes nested sources: each entry
// .gitmodules declares at rev is itself cloned/fetched through the
// shared mirror and checked out at its recorded SHA.
func (p *Project) checkoutSubmodules(ctx context.Context, repo *vcsmirror.Repo, rev, workingTree string) error {
	submodules, err := repo.SubmodulesAtRevision(rev)
	if err != nil {
		return err
	}
	for _, sm := range submodules {
		subRepo, err := p.Mirror.CloneOrFetch(ctx, sm.URL, nil)
		if err != nil {
			return err
		}
		subTree := filepath.Join(workingTree, sm.Path)
		if err := subRepo.Checkout(ctx, subTree, sm.SHA, true); err != nil {
			return err
		}
		if err := p.checkoutSubmodules(ctx, subRepo, sm.SHA, subTree); err != nil {
			return err
		}
	}
	return nil
}

// Install installs one resolved dependency:
//
//	for Git/GitHub: if useBinaries, attempt binary download + install; on
//	failure, emit SkippedDownloadingBinaries (no matching release, or not
//	a GitHub dependency) or SkippedInstallingBinaries(dep, error) (any
//	other failure) and fall through to source checkout.
//	for Binary: always use the binary installer.
func (p *Project) Install(dep dependency.Dependency, pinned semver.PinnedVersion, useBinaries bool, toolchain string) (dependency.Dependency, semver.PinnedVersion, error) {
	if toolchain == "" {
		toolchain = p.Toolchain
	}

	if dep.Kind == dependency.KindBinary {
		if err := p.installBinaryDependency(dep, pinned, toolchain); err != nil {
			return dep, pinned, err
		}
		return dep, pinned, nil
	}

	if useBinaries {
		if err := p.tryInstallGitHubRelease(dep, pinned, toolchain); err == nil {
			return dep, pinned, nil
		}
		// The failure was already reported via an Event by
		// tryInstallGitHubRelease; fall through to a source checkout.
	}

	if err := p.Checkout(dep, pinned); err != nil {
		return dep, pinned, err
	}
	p.emit(Event{
		Kind:       EventSkippedBuilding,
		Dependency: dep,
		Reason:     "building checked-out source requires the external compiler toolchain",
	})
	return dep, pinned, nil
}

func (p *Project) installBinaryDependency(dep dependency.Dependency, pinned semver.PinnedVersion, toolchain string) error {
	p.emit(Event{Kind: EventDownloadingBinaryFrameworkDefinition, Dependency: dep, URL: dep.URL})
	proj, err := p.Downloader.FetchBinaryProject(dep.URL)
	if err != nil {
		return err
	}

	artifactURL, ok := proj[string(pinned)]
	if !ok {
		return &resolve.RequiredVersionNotFound{Dependency: dep, Specifier: string(pinned)}
	}
	if ref, err := url.Parse(artifactURL); err == nil && !ref.IsAbs() {
		if base, err := url.Parse(dep.URL); err == nil {
			artifactURL = base.ResolveReference(ref).String()
		}
	}

	p.emit(Event{Kind: EventDownloadingBinaries, Dependency: dep, VersionOrRelease: string(pinned)})
	cachedZip, err := p.Downloader.DownloadBinary(dep.Name(), string(pinned), artifactURL)
	if err != nil {
		return err
	}

	_, err = binary.Install(binary.InstallOptions{
		ZipFile:       cachedZip,
		ProjectName:   dep.Name(),
		PinnedVersion: string(pinned),
		OutputRoot:    p.OutputRoot,
		Toolchain:     toolchain,
	})
	return err
}

// tryInstallGitHubRelease attempts the useBinaries path for a Git/GitHub
// dependency: only a GitHub dependency has a release host to query. Every
// failure (no matching release, a download error, an install error) is
// reported via an Event before returning. A release that simply doesn't
// exist is a graceful fall-through; real failures also fall through to
// source checkout but are distinguished by event kind.
func (p *Project) tryInstallGitHubRelease(dep dependency.Dependency, pinned semver.PinnedVersion, toolchain string) error {
	if dep.Kind != dependency.KindGitHub {
		p.emit(Event{Kind: EventSkippedDownloadingBinaries, Dependency: dep, Reason: "not a GitHub-hosted dependency"})
		return errors.New("project: no binary release host for this dependency kind")
	}

	p.emit(Event{Kind: EventDownloadingBinaries, Dependency: dep, VersionOrRelease: string(pinned)})
	zips, err := p.Downloader.DownloadFromReleaseHost(dep.Name(), string(pinned), dep.Server, dep.Owner, dep.Repo, "", nil)
	if err != nil {
		var notFound *binary.ReleaseNotFoundError
		if errors.As(err, &notFound) {
			p.emit(Event{Kind: EventSkippedDownloadingBinaries, Dependency: dep, Reason: err.Error()})
		} else {
			p.emit(Event{Kind: EventSkippedInstallingBinaries, Dependency: dep, Err: err})
		}
		return err
	}

	for _, zip := range zips {
		if _, err := binary.Install(binary.InstallOptions{
			ZipFile:       zip,
			ProjectName:   dep.Name(),
			PinnedVersion: string(pinned),
			OutputRoot:    p.OutputRoot,
			Toolchain:     toolchain,
		}); err != nil {
			p.emit(Event{Kind: EventSkippedInstallingBinaries, Dependency: dep, Err: err})
			return err
		}
	}
	return nil
}
