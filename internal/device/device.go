package device

import "sync"

// Calibration describes one lightfield display as reported by its driver.
type Calibration struct {
	Name     string  `yaml:"name" json:"name"`
	Serial   string  `yaml:"serial" json:"serial"`
	Index    int     `yaml:"index" json:"index"`
	Center   float64 `yaml:"center" json:"center"`
	Pitch    float64 `yaml:"pitch" json:"pitch"`
	Slope    float64 `yaml:"slope" json:"slope"`
	DPI      float64 `yaml:"dpi" json:"dpi"`
	FlipX    bool    `yaml:"flip_x" json:"flipX"`
	Width    int     `yaml:"width" json:"width"`
	Height   int     `yaml:"height" json:"height"`
	Aspect   float64 `yaml:"aspect" json:"aspect"`
	ViewCone float64 `yaml:"view_cone" json:"viewCone"`
}

// DefaultCalibration stands in when no display is attached.
func DefaultCalibration() Calibration {
	return Calibration{
		Name:     "Looking Glass Go Portrait",
		Serial:   "LKG-E",
		Index:    -1,
		Width:    1440,
		Height:   2560,
		Aspect:   0.5625,
		ViewCone: 54,
	}
}

// DisplayAspect is Aspect, or Width/Height when Aspect is unset.
func (c Calibration) DisplayAspect() float64 {
	if c.Aspect > 0 {
		return c.Aspect
	}
	if c.Height > 0 {
		return float64(c.Width) / float64(c.Height)
	}
	return 0
}

// Select picks display index from the list. When the index is out of range
// it returns the default calibration and false.
func Select(displays []Calibration, index int) (Calibration, bool) {
	if index < 0 || index >= len(displays) {
		return DefaultCalibration(), false
	}
	c := displays[index]
	if c.ViewCone <= 0 {
		c.ViewCone = DefaultCalibration().ViewCone
	}
	return c, true
}

// Monitor collects display-change events from any goroutine. The frame
// loop applies them with Drain.
type Monitor struct {
	mu      sync.Mutex
	pending bool
	count   int
	applied int
}

func NewMonitor(initialCount int) *Monitor {
	return &Monitor{count: initialCount, applied: initialCount}
}

// DisplaysChanged records the current monitor count. Safe for concurrent use.
func (m *Monitor) DisplaysChanged(count int) {
	m.mu.Lock()
	m.count = count
	m.pending = true
	m.mu.Unlock()
}

// Drain consumes pending events. changed is true when any event arrived;
// reload is true when the monitor count differs from the last drained one.
func (m *Monitor) Drain() (changed, reload bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.pending {
		return false, false
	}
	m.pending = false
	reload = m.count != m.applied
	m.applied = m.count
	return true, reload
}
