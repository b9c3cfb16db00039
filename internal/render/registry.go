package render

import "sync"

// Registry is the prioritized list of active capture targets. The front
// of the list is the current target.
type Registry struct {
	mu      sync.RWMutex
	targets []*Target
}

func NewRegistry() *Registry { return &Registry{} }

// Activate moves t to the front, adding it if needed.
func (r *Registry) Activate(t *Target) {
	if t == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(t)
	r.targets = append([]*Target{t}, r.targets...)
}

// Deactivate removes t. It reports whether t was registered.
func (r *Registry) Deactivate(t *Target) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(t)
}

func (r *Registry) removeLocked(t *Target) bool {
	for i, x := range r.targets {
		if x == t {
			r.targets = append(r.targets[:i], r.targets[i+1:]...)
			return true
		}
	}
	return false
}

func (r *Registry) Current() (*Target, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.targets) == 0 {
		return nil, false
	}
	return r.targets[0], true
}

// CurrentOf returns the highest-priority target of kind k.
func (r *Registry) CurrentOf(k Kind) (*Target, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.targets {
		if t.Kind == k {
			return t, true
		}
	}
	return nil, false
}

// All returns the targets in priority order.
func (r *Registry) All() []*Target {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Target, len(r.targets))
	copy(out, r.targets)
	return out
}

// List returns the target names in priority order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.targets))
	for _, t := range r.targets {
		out = append(out, t.Name)
	}
	return out
}
