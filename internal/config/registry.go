package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/hagaybar/biblioplan/pkg/provider/llm"
)

// ErrProviderNotRegistered is returned by CreateNL when no factory has been
// registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps NL provider names to their constructor functions. It is safe
// for concurrent use.
type Registry struct {
	mu sync.RWMutex
	nl map[string]func(ProviderEntry) (llm.Provider, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		nl: make(map[string]func(ProviderEntry) (llm.Provider, error)),
	}
}

// RegisterNL registers an NL provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterNL(name string, factory func(ProviderEntry) (llm.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nl[name] = factory
}

// CreateNL instantiates an NL provider using the factory registered under
// entry.Name. Returns [ErrProviderNotRegistered] if no factory has been
// registered for that name.
func (r *Registry) CreateNL(entry ProviderEntry) (llm.Provider, error) {
	r.mu.RLock()
	factory, ok := r.nl[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: nl/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}
