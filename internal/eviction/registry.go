package eviction

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]func() Strategy)
)

// Register makes a strategy available to GetStrategy. It panics if name is
// registered twice, so it belongs in an init function.
func Register(name string, factory func() Strategy) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, dup := registry[name]; dup {
		panic("eviction: Register called twice for strategy " + name)
	}
	registry[name] = factory
}

// GetStrategy returns an empty instance of the named strategy.
func GetStrategy(name string) (Strategy, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown eviction strategy %q (known: %s)", name, strings.Join(Strategies(), ", "))
	}
	return factory(), nil
}

// Strategies returns the registered strategy names, sorted.
func Strategies() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
