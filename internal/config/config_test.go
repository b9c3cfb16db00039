package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/holoquilt/internal/layout"
	"github.com/coreman2200/holoquilt/internal/tiling"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	c := Default()
	c.Driver = "panel"
	c.Tiling.Preset = tiling.SixteenPortrait
	c.Tiling.Order = layout.TopRightToBottomLeft
	c.Tiling.Custom = tiling.New("Custom", 5, 5, 1000, 1000, 1)
	c.Tiling.DeviceRules = []tiling.DeviceRule{{Pattern: "LKG-Z", Preset: tiling.Kiosk}}
	require.NoError(t, Save(path, c))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "preset: 16in-portrait")
	assert.Contains(t, string(raw), "order: top-right")

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "panel", got.Driver)
	assert.Equal(t, tiling.SixteenPortrait, got.Tiling.Preset)
	assert.Equal(t, layout.TopRightToBottomLeft, got.Tiling.Order)
	assert.Equal(t, 200, got.Tiling.Custom.TileSizeX)
	assert.Equal(t, tiling.Kiosk, got.Tiling.DeviceRules[0].Preset)
	assert.Equal(t, c.Camera.FOV, got.Camera.FOV)
	assert.NoError(t, got.Validate())
}

func TestLoadFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("fps: 12\ntiling:\n  preset: kiosk\n"), 0644))
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 12, c.FPS)
	assert.Equal(t, tiling.Kiosk, c.Tiling.Preset)
	assert.Equal(t, layout.DefaultOrder, c.Tiling.Order)
	assert.Equal(t, 45, c.Pages.MaxViewsPerPage)
	assert.Equal(t, "sim", c.Driver)
}

func TestValidate(t *testing.T) {
	c := Default()
	assert.NoError(t, c.Validate())

	c.FPS = 0
	c.Driver = "hologram"
	c.Tiling.Preset = tiling.Custom
	c.Tiling.Custom = tiling.Quality{TilesX: 100, TilesY: 1, QuiltW: 10, QuiltH: 10}
	err := c.Validate()
	assert.ErrorIs(t, err, tiling.ErrDegenerateTiling)
	assert.ErrorContains(t, err, "hologram")
	assert.ErrorContains(t, err, "fps")
}

func TestLoadRejectsBadPreset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tiling:\n  preset: holodeck\n"), 0644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestWatchReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, Save(path, Default()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	got := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(c *Config) {
			select {
			case got <- c:
			default:
			}
		})
	}()

	c := Default()
	c.FPS = 24
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case r := <-got:
			// A reload can observe the file mid-write.
			if r.FPS != 24 {
				continue
			}
			cancel()
			assert.NoError(t, <-done)
			return
		case <-tick.C:
			// Rewrite until the watcher has registered.
			require.NoError(t, Save(path, c))
		case <-deadline:
			t.Fatal("no reload observed")
		}
	}
}
