package provider

import (
	"fmt"
	"sync"
)

// Registry manages named provider implementations.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Interface
}

func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Interface),
	}
}

// Register adds a provider under name. Registering the same name twice
// replaces the earlier implementation.
func (r *Registry) Register(name string, p Interface) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = p
}

// Get returns a registered provider.
func (r *Registry) Get(name string) (Interface, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider not registered: %s", name)
	}
	return p, nil
}
