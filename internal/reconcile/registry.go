package reconcile

import "sync"

// AdminKey is the registry key of the admin review cycle.
const AdminKey = "admin"

// Registry hands out one Reconciler per key so a slow cycle for one user
// never makes another user's request skip.
type Registry struct {
	deps Deps

	mu    sync.Mutex
	byKey map[string]*Reconciler
}

func NewRegistry(deps Deps) *Registry {
	return &Registry{deps: deps, byKey: make(map[string]*Reconciler)}
}

// For returns the Reconciler for key, creating it on first use.
func (g *Registry) For(key string) *Reconciler {
	g.mu.Lock()
	defer g.mu.Unlock()

	r, ok := g.byKey[key]
	if !ok {
		r = New(g.deps)
		g.byKey[key] = r
	}
	return r
}
