package inventory

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Adapter collects the resources of one service in one region
type Adapter interface {
	// Collect returns the resources visible in region. An adapter returns an
	// empty list when the service is absent from the region and an error for
	// every other failure.
	Collect(ctx context.Context, region string) (Resources, error)
}

// GlobalAdapter is an Adapter for a service that is not regional. A run
// collects it once: in HomeRegion when that region is selected, otherwise in
// the first selected region. Its other units are empty.
type GlobalAdapter interface {
	Adapter
	HomeRegion() string
}

// AdapterFunc lets an ordinary function act as an Adapter
type AdapterFunc func(ctx context.Context, region string) (Resources, error)

// Collect calls f(ctx, region)
func (f AdapterFunc) Collect(ctx context.Context, region string) (Resources, error) {
	return f(ctx, region)
}

// Registry maps service identifiers to adapters
type Registry struct {
	adapters map[string]Adapter
	names    map[string]string
}

// NewRegistry creates an empty adapter registry
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[string]Adapter),
		names:    make(map[string]string),
	}
}

// Register adds an adapter under a service identifier
func (r *Registry) Register(service string, adapter Adapter) error {
	if service == "" {
		return fmt.Errorf("service name is required")
	}
	if adapter == nil {
		return fmt.Errorf("adapter for service '%s' is nil", service)
	}
	if _, exists := r.names[strings.ToLower(service)]; exists {
		return fmt.Errorf("adapter for service '%s' already registered", service)
	}
	r.adapters[service] = adapter
	r.names[strings.ToLower(service)] = service
	return nil
}

// Lookup resolves an identifier to its canonical service name. Matching is
// exact first, then case-insensitive.
func (r *Registry) Lookup(identifier string) (string, bool) {
	if _, ok := r.adapters[identifier]; ok {
		return identifier, true
	}
	name, ok := r.names[strings.ToLower(identifier)]
	return name, ok
}

// Get retrieves the adapter for a service identifier
func (r *Registry) Get(identifier string) (Adapter, error) {
	name, ok := r.Lookup(identifier)
	if !ok {
		return nil, &UnknownServiceError{Service: identifier}
	}
	return r.adapters[name], nil
}

// Services returns a sorted list of all registered service names
func (r *Registry) Services() []string {
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
