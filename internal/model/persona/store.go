package persona

// Store exposes read-only persona retrieval for the engine and HTTP handlers.
type Store interface {
	List() []Persona
	Default() Persona
	FindByID(id string) (Persona, bool)
}

// MemoryStore implements Store over a fixed slice built at startup. It has no mutators.
type MemoryStore struct {
	items        []Persona
	defaultIndex int
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied personas. The
// first persona flagged Default is the generalist; without one the first entry is used.
func NewMemoryStore(items []Persona) *MemoryStore {
	store := &MemoryStore{items: clonePersonas(items)}
	for i, item := range store.items {
		if item.Default {
			store.defaultIndex = i
			break
		}
	}
	return store
}

// List returns the personas in registration order.
func (s *MemoryStore) List() []Persona {
	return clonePersonas(s.items)
}

// Default returns the generalist persona. An empty store yields the zero Persona.
func (s *MemoryStore) Default() Persona {
	if len(s.items) == 0 {
		return Persona{}
	}
	return s.items[s.defaultIndex]
}

// FindByID looks up a persona by identifier.
func (s *MemoryStore) FindByID(id string) (Persona, bool) {
	for _, item := range s.items {
		if item.ID == id {
			return item, true
		}
	}
	return Persona{}, false
}

// Resolve returns the persona for id, falling back to the default for unknown ids.
func Resolve(store Store, id string) Persona {
	if p, ok := store.FindByID(id); ok {
		return p
	}
	return store.Default()
}
