package providers

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrProviderNotFound is returned when a provider is not registered
	ErrProviderNotFound = errors.New("provider not found")

	// ErrModelNotSupported is returned when no registered provider serves a model
	ErrModelNotSupported = errors.New("model not supported")

	// ErrProviderAlreadyRegistered is returned when trying to register a duplicate provider
	ErrProviderAlreadyRegistered = errors.New("provider already registered")
)

// Registry maps model IDs to the providers serving them.
// Models listed by a provider resolve directly; any other model goes to the
// first provider, in registration order, whose ValidateModel accepts it.
type Registry struct {
	mu       sync.RWMutex
	ordered  []Provider
	byName   map[string]Provider
	resolved map[string]Provider
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		byName:   make(map[string]Provider),
		resolved: make(map[string]Provider),
	}
}

// RegisterProvider adds a provider. A model already claimed by an earlier
// provider keeps resolving to it.
func (r *Registry) RegisterProvider(provider Provider) error {
	if provider == nil {
		return errors.New("provider cannot be nil")
	}
	name := provider.Name()
	if name == "" {
		return errors.New("provider name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("%w: %s", ErrProviderAlreadyRegistered, name)
	}
	r.byName[name] = provider
	r.ordered = append(r.ordered, provider)

	for _, model := range provider.ListModels() {
		if _, claimed := r.resolved[model]; !claimed {
			r.resolved[model] = provider
		}
	}
	return nil
}

// GetProvider looks a provider up by name
func (r *Registry) GetProvider(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if provider, ok := r.byName[name]; ok {
		return provider, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, name)
}

// GetProviderForModel resolves the provider of a model and remembers the answer
func (r *Registry) GetProviderForModel(model string) (Provider, error) {
	r.mu.RLock()
	provider, ok := r.resolved[model]
	candidates := append([]Provider(nil), r.ordered...)
	r.mu.RUnlock()
	if ok {
		return provider, nil
	}

	for _, p := range candidates {
		if p.ValidateModel(model) != nil {
			continue
		}
		r.mu.Lock()
		if existing, claimed := r.resolved[model]; claimed {
			p = existing
		} else {
			r.resolved[model] = p
		}
		r.mu.Unlock()
		return p, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrModelNotSupported, model)
}

// ListProviders returns the registered provider names, sorted
func (r *Registry) ListProviders() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
