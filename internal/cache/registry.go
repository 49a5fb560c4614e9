package cache

import "sync"

type clearer interface {
	Resource() string
	Clear()
}

// Registry tracks every per-resource Store of a session so that an identity change can
// clear them together.
type Registry struct {
	mu     sync.Mutex
	stores map[string]clearer
}

func NewRegistry() *Registry {
	return &Registry{stores: map[string]clearer{}}
}

// Register adds s, replacing any store previously registered for the same resource.
func (r *Registry) Register(s clearer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stores[s.Resource()] = s
}

func (r *Registry) Resources() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.stores))
	for name := range r.stores {
		out = append(out, name)
	}
	return out
}

// Reset clears every registered store.
func (r *Registry) Reset() {
	r.mu.Lock()
	stores := make([]clearer, 0, len(r.stores))
	for _, s := range r.stores {
		stores = append(stores, s)
	}
	r.mu.Unlock()

	for _, s := range stores {
		s.Clear()
	}
}
