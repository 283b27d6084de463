// Package container produces a resolve.Container for each dependency
// identifier: available versions, dependencies at a version/revision, and
// unversioned dependencies, backed by the git mirror for Git/GitHub
// dependencies and by a fetched JSON document for Binary dependencies.
//
// Lookups are single-flight: the first caller for a given identifier
// performs the network-bound construction while every concurrent caller
// for the same identifier blocks on a one-shot future guarded by a
// sync.Cond. Concurrent prefetch vs. synchronous lookup races are merged
// via constext, which combines two parent contexts so either side's
// cancellation propagates.
package container

import (
	"context"
	"sync"

	"github.com/sdboyer/constext"

	"github.com/cartgo/cartgo/dependency"
	"github.com/cartgo/cartgo/resolve"
	"github.com/cartgo/cartgo/vcsmirror"
)

// Provider is the resolve.ContainerProvider backing one project resolution.
// It owns the git mirror, a persistent bolt-backed version cache (see
// cache_bolt.go), and the HTTP client used for Binary dependency project
// definitions.
type Provider struct {
	Mirror        *vcsmirror.Mirror
	Binary        BinaryFetcher
	Cache         *BoltCache // may be nil: caching then degrades to in-memory only
	UseSubmodules bool

	mu      sync.Mutex
	cond    *sync.Cond
	entries map[resolve.Identifier]*futureEntry

	baseCtx context.Context
}

// BinaryFetcher resolves a Binary dependency's project definition JSON, the
// one piece container.Provider can't get from the git mirror. It is an
// injectable seam so the binary package's HTTP downloader can be swapped
// for a test double.
type BinaryFetcher interface {
	FetchBinaryProject(url string) (map[string]string, error)
}

type futureEntry struct {
	ready     bool
	container resolve.Container
	err       error
}

// NewProvider returns a Provider. ctx is the base context; Prefetch merges
// it (via constext.Cons) with its own context so that either one's
// cancellation is observed. GetContainer takes no context of its own.
func NewProvider(ctx context.Context, mirror *vcsmirror.Mirror, binary BinaryFetcher, cache *BoltCache) *Provider {
	if ctx == nil {
		ctx = context.Background()
	}
	p := &Provider{
		Mirror:  mirror,
		Binary:  binary,
		Cache:   cache,
		entries: make(map[resolve.Identifier]*futureEntry),
		baseCtx: ctx,
	}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// GetContainer implements resolve.ContainerProvider. Access is serialized
// per-identifier: the first caller constructs the container and
// broadcasts to any other goroutine blocked on the same identifier
// (including a racing Prefetch call).
func (p *Provider) GetContainer(id resolve.Identifier) (resolve.Container, error) {
	return p.getContainerCtx(p.baseCtx, id)
}

// Prefetch requests containers for every identifier in ids ahead of when
// the solver would otherwise need them. It races safely against
// synchronous GetContainer calls for the same identifiers.
func (p *Provider) Prefetch(ctx context.Context, ids []resolve.Identifier) {
	merged, cancel := constext.Cons(p.baseCtx, ctx)
	defer cancel()
	var wg sync.WaitGroup
	for _, id := range ids {
		id := id
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = p.getContainerCtx(merged, id)
		}()
	}
	wg.Wait()
}

func (p *Provider) getContainerCtx(ctx context.Context, id resolve.Identifier) (resolve.Container, error) {
	p.mu.Lock()
	entry, exists := p.entries[id]
	if !exists {
		entry = &futureEntry{}
		p.entries[id] = entry
		p.mu.Unlock()

		c, err := p.build(ctx, id)

		p.mu.Lock()
		entry.container, entry.err, entry.ready = c, err, true
		p.cond.Broadcast()
		p.mu.Unlock()
		return c, err
	}

	for !entry.ready {
		p.cond.Wait()
	}
	p.mu.Unlock()
	return entry.container, entry.err
}

func (p *Provider) build(ctx context.Context, id resolve.Identifier) (resolve.Container, error) {
	switch id.Kind {
	case dependency.KindGit, dependency.KindGitHub:
		return newGitContainer(ctx, p.Mirror, p.Cache, id, p.UseSubmodules)
	case dependency.KindBinary:
		return newBinaryContainer(p.Binary, id)
	default:
		return nil, &UnknownKindError{Dependency: id}
	}
}

// UnknownKindError reports a Dependency whose Kind container doesn't know
// how to build a Container for.
type UnknownKindError struct {
	Dependency resolve.Identifier
}

func (e *UnknownKindError) Error() string {
	return "container: no provider for dependency kind of " + e.Dependency.Name()
}
