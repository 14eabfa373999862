package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/lepinkainen/bibsync/internal/enrichment"
	"github.com/lepinkainen/bibsync/internal/identifier"
)

// FixedTime is the FetchedAt stamped on FakeProvider results.
var FixedTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// FakeProvider is a scripted enrichment.Provider that counts its calls.
// Without an error or EnrichFunc it succeeds with CitationCount set.
type FakeProvider struct {
	IDValue       string
	Kinds         []identifier.Kind
	Caps          enrichment.CapabilitySet
	Err           error
	CitationCount int
	// Discovered is merged into the result identifiers.
	Discovered identifier.Map
	EnrichFunc func(ctx context.Context, ids identifier.Map, existing *enrichment.Data) (*enrichment.Result, error)

	mu      sync.Mutex
	calls   int
	lastIDs identifier.Map
}

var _ enrichment.Provider = (*FakeProvider)(nil)

// NewFakeProvider creates a provider that accepts DOIs unless kinds are given.
func NewFakeProvider(id string, kinds ...identifier.Kind) *FakeProvider {
	if len(kinds) == 0 {
		kinds = []identifier.Kind{identifier.DOI}
	}
	return &FakeProvider{
		IDValue: id,
		Kinds:   kinds,
		Caps:    enrichment.NewCapabilitySet(enrichment.CitationCount),
	}
}

// Failing sets the error every Enrich call returns.
func (f *FakeProvider) Failing(err error) *FakeProvider {
	f.Err = err
	return f
}

// WithCapabilities replaces the advertised capabilities.
func (f *FakeProvider) WithCapabilities(caps ...enrichment.Capability) *FakeProvider {
	f.Caps = enrichment.NewCapabilitySet(caps...)
	return f
}

func (f *FakeProvider) ID() string                             { return f.IDValue }
func (f *FakeProvider) Name() string                           { return "Fake " + f.IDValue }
func (f *FakeProvider) Capabilities() enrichment.CapabilitySet { return f.Caps }
func (f *FakeProvider) SupportedIdentifiers() []identifier.Kind {
	return f.Kinds
}

func (f *FakeProvider) ResolveIdentifier(_ context.Context, ids identifier.Map) identifier.Map {
	return ids.Merge(f.Discovered)
}

func (f *FakeProvider) Enrich(ctx context.Context, ids identifier.Map, existing *enrichment.Data) (*enrichment.Result, error) {
	f.mu.Lock()
	f.calls++
	f.lastIDs = ids.Clone()
	f.mu.Unlock()

	if f.EnrichFunc != nil {
		return f.EnrichFunc(ctx, ids, existing)
	}
	if f.Err != nil {
		return nil, f.Err
	}
	data := &enrichment.Data{
		CitationCount: enrichment.Ptr(f.CitationCount),
		Source:        f.IDValue,
		FetchedAt:     FixedTime,
	}
	return &enrichment.Result{
		Data:        enrichment.Merge(data, existing),
		Identifiers: ids.Merge(f.Discovered),
	}, nil
}

// Calls returns how many times Enrich was called.
func (f *FakeProvider) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// LastIdentifiers returns the identifiers of the most recent Enrich call.
func (f *FakeProvider) LastIdentifiers() identifier.Map {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastIDs
}
