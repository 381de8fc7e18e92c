// Package providers implements domain.Source: a live REST client for the
// performance API and a static in-memory data set for offline use.
package providers

import (
	"fmt"
	"slices"
	"sync"

	"nathanbeddoewebdev/dialctl/internal/perf/domain"
	"nathanbeddoewebdev/dialctl/internal/services/auth"
	"nathanbeddoewebdev/dialctl/internal/util"

	"github.com/rs/zerolog"
)

// Settings carries what a factory may need to build a source.
type Settings struct {
	Store   auth.Store
	BaseURL string
	Logger  zerolog.Logger
}

// Factory is a constructor function that builds a Source from settings.
type Factory func(s Settings) (domain.Source, error)

var (
	mu       sync.RWMutex
	registry = map[string]Factory{}
)

// Register adds a source factory to the registry.
// It panics on empty name, nil factory, or duplicate registration
// (programmer errors detected at startup).
func Register(name string, factory Factory) {
	normalizedName := util.NormalizeKey(name)
	if normalizedName == "" {
		panic("providers: empty source name")
	}
	if factory == nil {
		panic("providers: nil factory")
	}

	mu.Lock()
	defer mu.Unlock()
	if _, exists := registry[normalizedName]; exists {
		panic(fmt.Sprintf("providers: source %q already registered", name))
	}

	registry[normalizedName] = factory
}

// Get constructs and returns the Source registered under name.
func Get(name string, s Settings) (domain.Source, error) {
	normalizedName := util.NormalizeKey(name)
	mu.RLock()
	factory, ok := registry[normalizedName]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("providers: unknown source %q", name)
	}

	return factory(s)
}

// List returns the names of all registered sources, sorted.
func List() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Reset clears the registry. Intended for use in tests only.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	registry = map[string]Factory{}
}

// RegisterDefaults registers the built-in api and static sources.
func RegisterDefaults() {
	RegisterAPI()
	RegisterStatic()
}
