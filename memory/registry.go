package memory

import (
	"sort"
	"sync"
)

// Registry holds the one store per persona for a host process. The registry
// itself is safe for concurrent use; the stores it hands out are not, and
// the caller owning a persona's handle is responsible for serializing that
// persona's interactions.
type Registry struct {
	mu     sync.RWMutex
	stores map[string]*Store
}

// NewRegistry creates an empty persona registry.
func NewRegistry() *Registry {
	return &Registry{stores: make(map[string]*Store)}
}

// Get returns the store for a persona, or ErrNotFound.
func (r *Registry) Get(personaID string) (*Store, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.stores[personaID]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// GetOrCreate returns the existing store for a persona or creates one with
// the given config.
func (r *Registry) GetOrCreate(personaID string, cfg Config) *Store {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.stores[personaID]; ok {
		return s
	}
	s := NewStore(personaID, cfg)
	r.stores[personaID] = s
	return s
}

// Put registers a store (typically one rebuilt from a save record),
// replacing any existing store for the same persona.
func (r *Registry) Put(s *Store) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stores[s.PersonaID()] = s
}

// Remove drops the store for a persona.
func (r *Registry) Remove(personaID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.stores, personaID)
}

// IDs returns the registered persona ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.stores))
	for id := range r.stores {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of registered personas.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.stores)
}
