package diskcache

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
)

// Registry holds named stores. It is created and passed around by the caller;
// there is no process-wide instance.
//
// A directory can only belong to one name, since two stores sharing a
// directory would each track only their own writes.
type Registry struct {
	mu     sync.Mutex
	stores map[string]*Store
	dirs   map[string]string
}

func NewRegistry() *Registry {
	return &Registry{
		stores: make(map[string]*Store),
		dirs:   make(map[string]string),
	}
}

// Open returns the store registered under name, opening it on first use.
// Reopening a name with a different directory is an error.
func (r *Registry) Open(name, dir string, opts Options) (*Store, error) {
	if name == "" {
		return nil, errors.New("empty namespace name")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve cache dir: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.stores[name]; ok {
		if r.dirs[abs] != name {
			return nil, fmt.Errorf("namespace %s is already open at %s", name, s.Dir())
		}
		return s, nil
	}
	if owner, ok := r.dirs[abs]; ok {
		return nil, fmt.Errorf("directory %s is already used by namespace %s", abs, owner)
	}

	s, err := Open(abs, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open namespace %s: %w", name, err)
	}
	r.stores[name] = s
	r.dirs[abs] = name
	return s, nil
}

// Get returns the store registered under name.
func (r *Registry) Get(name string) (*Store, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stores[name]
	return s, ok
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.stores))
	for name := range r.stores {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close closes every store and empties the registry.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.stores {
		s.Close()
	}
	r.stores = make(map[string]*Store)
	r.dirs = make(map[string]string)
}
