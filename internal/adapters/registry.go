package adapters

import (
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Registry maps adapter identifiers to their Bidder implementations. It is
// populated at startup from the control-plane store and swapped atomically on
// reload, so concurrent auctions always see a consistent adapter set.
type Registry struct {
	mu      sync.RWMutex
	bidders map[string]Bidder
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{bidders: make(map[string]Bidder)}
}

// NewRegistryFromConfigs builds a registry of HTTP bidders from adapter rows.
func NewRegistryFromConfigs(configs []Config, logger *zap.Logger) *Registry {
	r := NewRegistry()
	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}
		r.Register(NewHTTPBidder(cfg, logger))
	}
	return r
}

// Register adds or replaces a bidder.
func (r *Registry) Register(b Bidder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bidders[b.Name()] = b
}

// Get returns the bidder for the given adapter ID.
func (r *Registry) Get(id string) (Bidder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bidders[id]
	return b, ok
}

// Names returns the registered adapter identifiers, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.bidders))
	for name := range r.bidders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Replace swaps the full adapter set in one step. Used by the reload loop.
func (r *Registry) Replace(configs []Config, logger *zap.Logger) {
	next := make(map[string]Bidder, len(configs))
	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}
		next[cfg.ID] = NewHTTPBidder(cfg, logger)
	}
	r.mu.Lock()
	r.bidders = next
	r.mu.Unlock()
}
