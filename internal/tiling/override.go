package tiling

import "sync"

// Override is the shared "apply to every target" preset. The zero value is
// inactive and ready to use.
type Override struct {
	mu     sync.RWMutex
	preset Preset
	active bool
	gen    uint64
}

// Set activates the override. Every call bumps the generation, even when
// the preset is unchanged, so targets re-resolve.
func (o *Override) Set(p Preset) {
	o.mu.Lock()
	o.preset = p
	o.active = true
	o.gen++
	o.mu.Unlock()
}

// Clear deactivates the override.
func (o *Override) Clear() {
	o.mu.Lock()
	if o.active {
		o.active = false
		o.gen++
	}
	o.mu.Unlock()
}

func (o *Override) IsActive() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.active
}

func (o *Override) Generation() uint64 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.gen
}

// Snapshot reads preset, state and generation in one consistent step.
func (o *Override) Snapshot() (p Preset, active bool, gen uint64) {
	if o == nil {
		return Automatic, false, 0
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.preset, o.active, o.gen
}
