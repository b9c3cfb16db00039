package app

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/holoquilt/internal/config"
	diag "github.com/coreman2200/holoquilt/internal/diagnostics"
	"github.com/coreman2200/holoquilt/internal/driver/fake"
	"github.com/coreman2200/holoquilt/internal/layout"
	"github.com/coreman2200/holoquilt/internal/pattern"
	"github.com/coreman2200/holoquilt/internal/sequence"
	"github.com/coreman2200/holoquilt/internal/tiling"
)

type diagLog struct {
	mu  sync.Mutex
	all []diag.Diagnostic
}

func (l *diagLog) add(d diag.Diagnostic) {
	l.mu.Lock()
	l.all = append(l.all, d)
	l.mu.Unlock()
}

func (l *diagLog) codes() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, d := range l.all {
		out = append(out, d.Code)
	}
	return out
}

func smallConfig() *config.Config {
	c := config.Default()
	c.Tiling.Preset = tiling.Custom
	c.Tiling.Custom = tiling.New("Custom", 4, 2, 80, 40, 0)
	return c
}

func newCore(t *testing.T, cfg *config.Config, path string) (*Core, *fake.Driver, *diagLog) {
	t.Helper()
	sink := fake.New()
	sink.Quiet = true
	var dl diagLog
	c, err := InitCore(context.Background(), cfg, Options{Sink: sink, ConfigPath: path, OnDiag: dl.add})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, sink, &dl
}

func TestInitCoreRendersConfiguredTarget(t *testing.T) {
	c, sink, _ := newCore(t, smallConfig(), "")
	require.NoError(t, c.Step(context.Background(), 0))

	assert.Equal(t, 1, sink.Count)
	assert.Equal(t, 4, sink.Last().TilesX)
	assert.Equal(t, 2, sink.Last().TilesY)

	p := c.Eng.Plan()
	assert.Equal(t, TargetName, p.Target)
	assert.Equal(t, tiling.Custom, p.Effective)
	assert.Equal(t, 20, p.Quality.TileSizeX)
	assert.Len(t, p.Placements, 8)
}

func TestInitCoreRejectsBadInput(t *testing.T) {
	_, err := InitCore(context.Background(), smallConfig(), Options{})
	assert.Error(t, err)

	bad := smallConfig()
	bad.FPS = 0
	_, err = InitCore(context.Background(), bad, Options{Sink: fake.New()})
	assert.Error(t, err)
}

func TestSettersApplyOnNextFrame(t *testing.T) {
	c, _, _ := newCore(t, smallConfig(), "")
	ctx := context.Background()
	require.NoError(t, c.Step(ctx, 0))

	c.SetOrder(layout.TopLeftToBottomRight)
	require.NoError(t, c.SetParam("size", 640))
	require.NoError(t, c.SetParam("fov", 20))
	assert.Error(t, c.SetParam("fov", 200))
	assert.Error(t, c.SetParam("zoom", 1))
	assert.Equal(t, layout.DefaultOrder, c.Target.Order)

	require.NoError(t, c.Step(ctx, 0))
	assert.Equal(t, layout.TopLeftToBottomRight, c.Target.Order)
	assert.Equal(t, 640.0, c.Target.Rig.Size)
	assert.Equal(t, 20.0, c.Target.Rig.FOV)
	assert.Equal(t, layout.TopLeftToBottomRight, c.Eng.Plan().Order)

	cfg := c.Config()
	assert.Equal(t, 640.0, cfg.Camera.Size)
	assert.Equal(t, layout.TopLeftToBottomRight, cfg.Tiling.Order)

	require.NoError(t, c.SetCustom(tiling.New("", 6, 2, 60, 20, 0)))
	assert.Error(t, c.SetCustom(tiling.Quality{TilesX: 100, TilesY: 1, QuiltW: 10, QuiltH: 10}))
	require.NoError(t, c.Step(ctx, 0))
	assert.Equal(t, 6, c.Eng.Plan().Quality.TilesX)
}

func TestTourDrivesOverride(t *testing.T) {
	c, _, _ := newCore(t, smallConfig(), "")
	c.Eng.Resolver.Table[tiling.Kiosk] = tiling.New("Kiosk", 5, 3, 50, 30, 0.5625)
	ctx := context.Background()

	require.NoError(t, c.PlayTour(sequence.Program{Clips: []sequence.Clip{
		{Name: "kiosk", Preset: "kiosk", DurationS: 1},
		{Name: "back", DurationS: 1},
	}}))
	require.NoError(t, c.Step(ctx, 0))
	p := c.Eng.Plan()
	assert.True(t, p.Override)
	assert.Equal(t, tiling.Kiosk, p.Effective)
	assert.Equal(t, 5, p.Quality.TilesX)

	require.NoError(t, c.Step(ctx, 1))
	p = c.Eng.Plan()
	assert.False(t, p.Override)
	assert.Equal(t, 4, p.Quality.TilesX)

	assert.Error(t, c.PlayTour(sequence.Program{}))
	c.StopTour()
}

func TestRunPatternFinishes(t *testing.T) {
	c, _, dl := newCore(t, smallConfig(), "")
	ctx := context.Background()
	require.NoError(t, c.Step(ctx, 0))

	c.RunPattern(pattern.ViewSweep)
	for i := 0; i < 12; i++ {
		require.NoError(t, c.Step(ctx, 0))
	}
	assert.Contains(t, dl.codes(), "PATTERN.DONE")
	assert.Equal(t, pattern.None, c.Pattern())
	assert.Equal(t, pattern.Parallax{}, c.Backend.Scene())

	c.RunPattern(pattern.HueRamp)
	require.NoError(t, c.Step(ctx, 0))
	assert.Equal(t, pattern.HueRamp, c.Pattern())
	c.RunPattern(pattern.None)
	require.NoError(t, c.Step(ctx, 0))
	assert.Equal(t, pattern.None, c.Pattern())
}

func TestApplyConfigAndSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	c, _, dl := newCore(t, smallConfig(), path)
	ctx := context.Background()

	c.SetOrder(layout.TopRightToBottomLeft)
	require.NoError(t, c.SetFPS(12))
	require.NoError(t, c.Save())
	saved, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, layout.TopRightToBottomLeft, saved.Tiling.Order)
	assert.Equal(t, 12, saved.FPS)

	bad := smallConfig()
	bad.FPS = 0
	c.ApplyConfig(bad)
	assert.Contains(t, dl.codes(), "CONFIG.INVALID")
	assert.Equal(t, 12, c.Config().FPS)

	next := smallConfig()
	next.Tiling.Custom = tiling.New("Custom", 3, 3, 30, 30, 0)
	c.ApplyConfig(next)
	require.NoError(t, c.Step(ctx, 0))
	assert.Equal(t, 9, c.Eng.Plan().Quality.NumTiles())
	assert.Contains(t, dl.codes(), "CONFIG.APPLIED")
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := smallConfig()
	cfg.FPS = 100
	c, _, _ := newCore(t, cfg, "")
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	assert.Eventually(t, func() bool { return c.Eng.Plan().Frame >= 3 }, 5*time.Second, 10*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop")
	}
}
