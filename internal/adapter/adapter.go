// Package adapter defines the source adapter surface: pluggable
// connectors that turn external registries and discovery feeds into
// candidate records and registry snapshots.
package adapter

import (
	"context"
	"sort"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/veridex-labs/trustpipe/internal/model"
)

// DiscoverQuery scopes a discovery run to a country and optional
// industry or free-text filter.
type DiscoverQuery struct {
	CountryCode  string
	IndustryCode string
	Query        string
	Limit        int
}

// SourceAdapter is one external data source. Adapters return raw
// observations; reconciliation against stored records happens in the
// job handlers, never inside an adapter.
type SourceAdapter interface {
	// Name is the stable identifier used in job payloads and audit rows.
	Name() string
	// Discover lists candidate businesses matching the query.
	Discover(ctx context.Context, q DiscoverQuery) ([]model.CandidateRecord, error)
	// FetchRegistry retrieves the authoritative registry snapshot for one
	// organization number. A nil snapshot with nil error means the source
	// has no entry for that number.
	FetchRegistry(ctx context.Context, countryCode, orgNumber string) (*model.RegistryData, error)
}

// Registry holds named source adapters.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]SourceAdapter
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]SourceAdapter)}
}

// Register adds an adapter under its own name. Duplicate names are
// rejected so a misconfigured binary fails at startup, not mid-run.
func (r *Registry) Register(a SourceAdapter) error {
	if a == nil || a.Name() == "" {
		return eris.New("adapter: nil adapter or empty name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.adapters[a.Name()]; exists {
		return eris.Errorf("adapter: %q already registered", a.Name())
	}
	r.adapters[a.Name()] = a
	return nil
}

// Lookup returns the adapter registered under name.
func (r *Registry) Lookup(name string) (SourceAdapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[name]
	if !ok {
		return nil, eris.Errorf("adapter: no adapter named %q", name)
	}
	return a, nil
}

// Names lists registered adapter names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.adapters))
	for n := range r.adapters {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
