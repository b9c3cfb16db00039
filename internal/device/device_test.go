package device

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultCalibration(t *testing.T) {
	c, ok := Select(nil, 0)
	assert.False(t, ok)
	assert.Equal(t, 1440, c.Width)
	assert.Equal(t, 2560, c.Height)
	assert.Equal(t, 0.5625, c.DisplayAspect())
	assert.Equal(t, 54.0, c.ViewCone)
}

func TestDisplayAspectFallsBackToResolution(t *testing.T) {
	c := Calibration{Width: 2560, Height: 1600}
	assert.InDelta(t, 1.6, c.DisplayAspect(), 1e-12)
	assert.Equal(t, 0.0, Calibration{}.DisplayAspect())
}

func TestSelect(t *testing.T) {
	displays := []Calibration{
		{Serial: "LKG-A1", Width: 3840, Height: 2160, ViewCone: 40},
		{Serial: "LKG-E2"},
	}
	c, ok := Select(displays, 1)
	assert.True(t, ok)
	assert.Equal(t, "LKG-E2", c.Serial)
	assert.Equal(t, 54.0, c.ViewCone)

	_, ok = Select(displays, 2)
	assert.False(t, ok)
}

func TestMonitorReloadsOnlyOnCountChange(t *testing.T) {
	m := NewMonitor(1)
	changed, reload := m.Drain()
	assert.False(t, changed)
	assert.False(t, reload)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.DisplaysChanged(1)
		}()
	}
	wg.Wait()
	changed, reload = m.Drain()
	assert.True(t, changed)
	assert.False(t, reload)

	m.DisplaysChanged(2)
	changed, reload = m.Drain()
	assert.True(t, changed)
	assert.True(t, reload)

	changed, _ = m.Drain()
	assert.False(t, changed)
}
