// Package provider defines the interface and registry for the remote
// backends that resolved .env pairs are pushed to and pulled from.
//
// To add a new provider:
// 1. Create a new file in this package (e.g., myprovider.go)
// 2. Implement the Provider interface
// 3. Register it in an init() function using Register()
package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/binsquare/envline/dotenv"
)

var ErrNotConfigured = errors.New("provider not configured")

// Provider is a backend holding env pairs grouped by namespace.
type Provider interface {
	// Pull returns every pair stored under ns, sorted by key.
	Pull(ctx context.Context, ns Namespace) ([]dotenv.Pair, error)
	// Push creates or replaces each pair under ns. Keys not in pairs are
	// left untouched.
	Push(ctx context.Context, ns Namespace, pairs []dotenv.Pair) error
}

// Factory creates a Provider from its global configuration entry.
type Factory func(cfg Config) (Provider, error)

// Info contains metadata about a registered provider type.
type Info struct {
	// Type is the unique identifier for this provider (e.g., "aws-ssm", "vault").
	Type string
	// Description provides a human-readable description of the provider.
	Description string
	// Factory creates instances of this provider type.
	Factory Factory
	// RequiredFields lists the configuration fields required for this provider.
	RequiredFields []string
	// OptionalFields lists optional configuration fields.
	OptionalFields []string
}

type registry struct {
	mu        sync.RWMutex
	providers map[string]Info
}

var globalRegistry = &registry{
	providers: make(map[string]Info),
}

// Register adds a provider type. It panics on an empty type, a nil factory
// or a duplicate, so mistakes surface at init time.
func Register(info Info) {
	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()

	if info.Type == "" {
		panic("provider type cannot be empty")
	}
	if info.Factory == nil {
		panic("provider factory cannot be nil")
	}
	if _, exists := globalRegistry.providers[info.Type]; exists {
		panic(fmt.Sprintf("provider type %q already registered", info.Type))
	}
	globalRegistry.providers[info.Type] = info
}

// Get returns information about a registered provider type.
func Get(providerType string) (Info, bool) {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()
	info, ok := globalRegistry.providers[providerType]
	return info, ok
}

// ListTypes returns the registered type names in sorted order.
func ListTypes() []string {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()

	types := make([]string, 0, len(globalRegistry.providers))
	for t := range globalRegistry.providers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Open builds the provider described by cfg.
func Open(cfg Config) (Provider, error) {
	if cfg.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrNotConfigured)
	}
	info, ok := Get(cfg.Type)
	if !ok {
		return nil, fmt.Errorf("unknown provider type %q. Available: %v", cfg.Type, ListTypes())
	}
	return info.Factory(cfg)
}

// sortedPairs converts a name/value map into pairs ordered by key.
func sortedPairs(values map[string]string) []dotenv.Pair {
	pairs := make([]dotenv.Pair, 0, len(values))
	for k, v := range values {
		pairs = append(pairs, dotenv.Pair{Key: k, Value: v})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Key < pairs[j].Key })
	return pairs
}
