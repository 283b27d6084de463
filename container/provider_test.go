package container

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/cartgo/cartgo/dependency"
)

type fakeBinaryFetcher struct {
	calls int32
	defs  map[string]map[string]string
}

func (f *fakeBinaryFetcher) FetchBinaryProject(url string) (map[string]string, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.defs[url], nil
}

func TestProviderSingleFlightPerIdentifier(t *testing.T) {
	fetcher := &fakeBinaryFetcher{defs: map[string]map[string]string{
		"https://example.com/foo.json": {"1.0.0": "https://example.com/foo-1.0.0.zip"},
	}}
	p := NewProvider(context.Background(), nil, fetcher, nil)

	dep := dependency.Binary("https://example.com/foo.json")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := p.GetContainer(dep)
			if err != nil {
				t.Errorf("GetContainer: %v", err)
				return
			}
			if c == nil {
				t.Errorf("GetContainer returned nil container")
			}
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&fetcher.calls); got != 1 {
		t.Fatalf("expected exactly one underlying fetch for 20 concurrent callers of the same identifier, got %d", got)
	}
}

func TestProviderDistinctIdentifiersFetchIndependently(t *testing.T) {
	fetcher := &fakeBinaryFetcher{defs: map[string]map[string]string{
		"https://example.com/a.json": {"1.0.0": "urlA"},
		"https://example.com/b.json": {"1.0.0": "urlB"},
	}}
	p := NewProvider(context.Background(), nil, fetcher, nil)

	a := dependency.Binary("https://example.com/a.json")
	b := dependency.Binary("https://example.com/b.json")

	if _, err := p.GetContainer(a); err != nil {
		t.Fatal(err)
	}
	if _, err := p.GetContainer(b); err != nil {
		t.Fatal(err)
	}

	if got := atomic.LoadInt32(&fetcher.calls); got != 2 {
		t.Fatalf("expected one fetch per distinct identifier, got %d", got)
	}
}

func TestProviderPrefetchRacesSafelyWithSynchronousLookup(t *testing.T) {
	fetcher := &fakeBinaryFetcher{defs: map[string]map[string]string{
		"https://example.com/foo.json": {"1.0.0": "urlFoo"},
	}}
	p := NewProvider(context.Background(), nil, fetcher, nil)
	dep := dependency.Binary("https://example.com/foo.json")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		p.Prefetch(context.Background(), []dependency.Dependency{dep})
	}()
	go func() {
		defer wg.Done()
		_, _ = p.GetContainer(dep)
	}()
	wg.Wait()

	if got := atomic.LoadInt32(&fetcher.calls); got != 1 {
		t.Fatalf("expected prefetch + synchronous lookup of the same identifier to collapse into one fetch, got %d", got)
	}
}

func TestUnknownDependencyKindIsReported(t *testing.T) {
	p := NewProvider(context.Background(), nil, &fakeBinaryFetcher{}, nil)
	bogus := dependency.Dependency{Kind: dependency.Kind(99)}
	if _, err := p.GetContainer(bogus); err == nil {
		t.Fatal("expected an error for an unrecognized dependency kind")
	}
}
