package provider

import (
	"fmt"
	"sort"
	"sync"
)

// Settings carries the provider-independent connection parameters.
type Settings struct {
	Model   string
	APIKey  string
	BaseURL string
}

// Factory builds a Client from settings.
type Factory func(Settings) (Client, error)

var (
	factoriesMu sync.RWMutex
	factories   = make(map[string]Factory)
)

// Register makes a provider constructor available under the given name.
// Provider packages call it from init; a duplicate name panics, the same
// way a duplicate flag registration would.
func Register(name string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	if _, dup := factories[name]; dup {
		panic(fmt.Sprintf("provider: Register called twice for %q", name))
	}
	factories[name] = f
}

// New builds a client for the named provider.
func New(name string, s Settings) (Client, error) {
	factoriesMu.RLock()
	f, ok := factories[name]
	factoriesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("provider: unknown provider %q (registered: %v)", name, Names())
	}
	return f(s)
}

// Names lists the registered provider names, sorted.
func Names() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
