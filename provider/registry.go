package provider

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps provider names to their adapters
type Registry struct {
	adapters map[Name]Adapter
	mu       sync.RWMutex
}

// NewRegistry creates a registry holding the given adapters
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[Name]Adapter, len(adapters))}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

// Register adds or replaces an adapter
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Name()] = a
}

// Get returns the adapter for a provider name
func (r *Registry) Get(name Name) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.adapters[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q is not registered", ErrUnsupportedProvider, name)
	}
	return a, nil
}

// Lookup parses a raw provider name and returns its adapter
func (r *Registry) Lookup(raw string) (Adapter, error) {
	name, err := ParseName(raw)
	if err != nil {
		return nil, err
	}
	return r.Get(name)
}

// Names returns the registered provider names in sorted order
func (r *Registry) Names() []Name {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]Name, 0, len(r.adapters))
	for n := range r.adapters {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}
