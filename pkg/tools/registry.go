package tools

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// Registry manages the curated tool set bound to one dataset per session.
type Registry interface {
	Register(def Definition) error
	Get(name string) (*Definition, error)
	List() []Definition
	Has(name string) bool
	Count() int
}

// InMemoryRegistry is a thread-safe in-memory implementation of Registry.
type InMemoryRegistry struct {
	mu    sync.RWMutex
	tools map[string]Definition
}

// NewInMemoryRegistry creates an empty registry.
func NewInMemoryRegistry() *InMemoryRegistry {
	return &InMemoryRegistry{tools: map[string]Definition{}}
}

var _ Registry = (*InMemoryRegistry)(nil)

// Register adds a tool to the registry. Registering the same name twice is a
// wiring bug and rejected.
func (r *InMemoryRegistry) Register(def Definition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if def.Name == "" {
		return errors.New("tool name cannot be empty")
	}
	if _, exists := r.tools[def.Name]; exists {
		return errors.Errorf("tool already registered: %s", def.Name)
	}
	r.tools[def.Name] = def
	return nil
}

// Get retrieves a tool by name.
func (r *InMemoryRegistry) Get(name string) (*Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, exists := r.tools[name]
	if !exists {
		return nil, errors.Errorf("tool not found: %s", name)
	}
	// Return a copy to prevent external modification.
	defCopy := def
	return &defCopy, nil
}

// List returns all registered tools sorted by name, so tool declarations sent
// to the model are stable across runs.
func (r *InMemoryRegistry) List() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]Definition, 0, len(r.tools))
	for _, def := range r.tools {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Has reports whether a tool exists in the registry.
func (r *InMemoryRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.tools[name]
	return exists
}

// Count returns the number of registered tools.
func (r *InMemoryRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.tools)
}
