package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/coreman2200/holoquilt/internal/config"
	diag "github.com/coreman2200/holoquilt/internal/diagnostics"
	"github.com/coreman2200/holoquilt/internal/layout"
	"github.com/coreman2200/holoquilt/internal/pattern"
	"github.com/coreman2200/holoquilt/internal/render"
	"github.com/coreman2200/holoquilt/internal/render/soft"
	"github.com/coreman2200/holoquilt/internal/sequence"
	"github.com/coreman2200/holoquilt/internal/tiling"
)

// TargetName is the name of the runtime capture target the core drives.
const TargetName = "main"

// Options carries what InitCore cannot build from the config alone.
type Options struct {
	Sink       render.Sink
	ConfigPath string
	Scene      soft.Scene // default scene; nil uses a parallax bar pair
	OnDiag     func(diag.Diagnostic)
}

// Core wires the quilt engine, the tour player and the live config.
// Its setters are safe for concurrent use: target changes are posted to
// the engine and take effect on the next frame.
type Core struct {
	Eng     *render.Engine
	Backend *soft.Backend
	Target  *render.Target
	Seq     *sequence.SafePlayer

	configPath string
	onDiag     func(diag.Diagnostic)
	scene      soft.Scene

	mu     sync.Mutex
	cfg    config.Config
	runner *pattern.Runner
}

func InitCore(ctx context.Context, cfg *config.Config, opts Options) (*Core, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if opts.Sink == nil {
		return nil, errors.New("app: sink is required")
	}
	scene := opts.Scene
	if scene == nil {
		scene = pattern.Parallax{}
	}

	// 1) Tiling resolution: device rules from config, shared override
	res := tiling.NewResolver(nil)
	if len(cfg.Tiling.DeviceRules) > 0 {
		res.Rules = cfg.Tiling.DeviceRules
	}

	// 2) Engine over the software backend
	backend := soft.New(scene)
	eng, err := render.NewEngine(backend, opts.Sink, res, render.NewRegistry(), render.Options{
		DisplayIndex:    cfg.DisplayIndex,
		MaxViewsPerPage: cfg.Pages.MaxViewsPerPage,
		MaxTextureDim:   cfg.Pages.MaxTextureDim,
	})
	if err != nil {
		return nil, err
	}

	// 3) Runtime target from config
	t := render.NewTarget(TargetName, render.Runtime, cfg.Tiling.Preset)
	applyTarget(t, cfg)
	eng.Activate(t)

	c := &Core{
		Eng:        eng,
		Backend:    backend,
		Target:     t,
		configPath: opts.ConfigPath,
		onDiag:     opts.OnDiag,
		scene:      scene,
		cfg:        *cfg,
	}

	// 4) Sequencer wiring (hooks → engine)
	c.Seq = sequence.NewSafePlayer(sequence.Hooks{
		SetOverride:   eng.SetOverride,
		ClearOverride: eng.ClearOverride,
		SetOrder:      func(o layout.Order) { c.post(func(t *render.Target) { t.Order = o }) },
		SetParam:      func(name string, v float64) { _ = c.setParam(name, v, false) },
	})

	log.Info().
		Str("preset", cfg.Tiling.Preset.String()).
		Str("order", cfg.Tiling.Order.String()).
		Str("serial", eng.Calibration().Serial).
		Msg("core initialized")
	return c, nil
}

func applyTarget(t *render.Target, cfg *config.Config) {
	t.SetPreset(cfg.Tiling.Preset)
	t.SetCustom(cfg.Tiling.Custom)
	t.SetSingleView(cfg.Tiling.SingleView)
	t.Order = cfg.Tiling.Order
	aspect := t.Rig.Aspect
	t.Rig = cfg.Camera
	t.Rig.Aspect = aspect
}

// post runs f against the runtime target on the frame goroutine.
func (c *Core) post(f func(t *render.Target)) {
	c.Eng.Post(func(*render.Engine) { f(c.Target) })
}

func (c *Core) emit(d diag.Diagnostic) {
	d.Log()
	if c.onDiag != nil {
		c.onDiag(d)
	}
}

// Config returns a copy of the live config.
func (c *Core) Config() config.Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

func (c *Core) update(f func(cfg *config.Config)) {
	c.mu.Lock()
	f(&c.cfg)
	c.mu.Unlock()
}

// Save writes the live config to the config path, if any.
func (c *Core) Save() error {
	if c.configPath == "" {
		return nil
	}
	cfg := c.Config()
	return config.Save(c.configPath, &cfg)
}

// ApplyConfig replaces the live config and retargets on the next frame.
func (c *Core) ApplyConfig(cfg *config.Config) {
	if err := cfg.Validate(); err != nil {
		c.emit(diag.Diagnostic{Severity: diag.Warn, Code: "CONFIG.INVALID", Summary: "Config rejected", Detail: err.Error()})
		return
	}
	c.update(func(live *config.Config) { *live = *cfg })
	rules := cfg.Tiling.DeviceRules
	c.Eng.Post(func(e *render.Engine) {
		if len(rules) > 0 {
			e.Resolver.Rules = rules
		} else {
			e.Resolver.Rules = tiling.DefaultDeviceRules()
		}
		e.SetPageLimits(cfg.Pages.MaxViewsPerPage, cfg.Pages.MaxTextureDim)
		applyTarget(c.Target, cfg)
	})
	c.emit(diag.Diagnostic{Severity: diag.Info, Code: "CONFIG.APPLIED", Summary: "Config applied"})
}

func (c *Core) SetPreset(p tiling.Preset) error {
	if !p.Valid() {
		return fmt.Errorf("invalid preset %d", int(p))
	}
	c.update(func(cfg *config.Config) { cfg.Tiling.Preset = p })
	c.post(func(t *render.Target) { t.SetPreset(p) })
	return nil
}

// SetCustom replaces the Custom preset values and selects Custom.
func (c *Core) SetCustom(q tiling.Quality) error {
	q.Setup()
	if err := q.Validate(); err != nil {
		return err
	}
	c.update(func(cfg *config.Config) {
		cfg.Tiling.Custom = q
		cfg.Tiling.Preset = tiling.Custom
	})
	c.post(func(t *render.Target) {
		t.SetCustom(q)
		t.SetPreset(tiling.Custom)
	})
	return nil
}

func (c *Core) SetOverride(p tiling.Preset) { c.Eng.SetOverride(p) }

func (c *Core) ClearOverride() { c.Eng.ClearOverride() }

func (c *Core) SetOrder(o layout.Order) {
	c.update(func(cfg *config.Config) { cfg.Tiling.Order = o })
	c.post(func(t *render.Target) { t.Order = o })
}

func (c *Core) SetSingleView(on bool) {
	c.update(func(cfg *config.Config) { cfg.Tiling.SingleView = on })
	c.post(func(t *render.Target) { t.SetSingleView(on) })
}

// SetParam sets a camera rig parameter: "size" or "fov".
func (c *Core) SetParam(name string, v float64) error { return c.setParam(name, v, true) }

func (c *Core) setParam(name string, v float64, persist bool) error {
	switch name {
	case "size":
		if v <= 0 {
			return fmt.Errorf("size must be positive, got %v", v)
		}
		if persist {
			c.update(func(cfg *config.Config) { cfg.Camera.Size = v })
		}
		c.post(func(t *render.Target) { t.Rig.Size = v })
	case "fov":
		if v <= 0 || v >= 180 {
			return fmt.Errorf("fov out of range: %v", v)
		}
		if persist {
			c.update(func(cfg *config.Config) { cfg.Camera.FOV = v })
		}
		c.post(func(t *render.Target) { t.Rig.FOV = v })
	default:
		return fmt.Errorf("unknown param %q", name)
	}
	return nil
}

func (c *Core) SetFPS(fps int) error {
	if fps <= 0 {
		return fmt.Errorf("fps must be positive, got %d", fps)
	}
	c.update(func(cfg *config.Config) { cfg.FPS = fps })
	return nil
}

// RunPattern replaces the scene with a stepped test pattern until it
// finishes. None restores the default scene.
func (c *Core) RunPattern(k pattern.Kind) {
	c.Eng.Post(func(*render.Engine) {
		c.mu.Lock()
		defer c.mu.Unlock()
		if k == pattern.None {
			c.runner = nil
			c.Backend.SetScene(c.scene)
			return
		}
		c.runner = pattern.NewRunner(k, c.Target.Quality().NumTiles())
		c.Backend.SetScene(c.runner)
		log.Info().Str("pattern", string(k)).Msg("pattern started")
	})
}

// Pattern is the running test pattern, or None.
func (c *Core) Pattern() pattern.Kind {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.runner == nil {
		return pattern.None
	}
	return c.runner.Kind()
}

func (c *Core) stepPattern() {
	c.mu.Lock()
	r := c.runner
	if r == nil || r.Step() {
		c.mu.Unlock()
		return
	}
	c.runner = nil
	c.Backend.SetScene(c.scene)
	c.mu.Unlock()
	c.emit(diag.Diagnostic{Severity: diag.Info, Code: "PATTERN.DONE", Summary: "Pattern complete", Detail: string(r.Kind())})
}

// PlayTour loads prog and starts it from the beginning.
func (c *Core) PlayTour(prog sequence.Program) error {
	var err error
	c.Seq.With(func(p *sequence.Player) {
		if err = p.Load(prog); err == nil {
			p.Start()
		}
	})
	return err
}

func (c *Core) StopTour() { c.Seq.With(func(p *sequence.Player) { p.Stop() }) }

// Step advances the tour and the active pattern by dt and renders one frame.
func (c *Core) Step(ctx context.Context, dt float64) error {
	c.Seq.With(func(p *sequence.Player) { p.Tick(dt) })
	c.stepPattern()
	return c.Eng.RenderOnce(ctx)
}

// Run renders at the configured FPS until ctx is done.
func (c *Core) Run(ctx context.Context) error {
	fps := c.Config().FPS
	tick := time.NewTicker(time.Second / time.Duration(fps))
	defer tick.Stop()
	last := time.Now()
	var lastErr string
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-tick.C:
			if cur := c.Config().FPS; cur != fps {
				fps = cur
				tick.Reset(time.Second / time.Duration(fps))
			}
			dt := now.Sub(last).Seconds()
			last = now
			err := c.Step(ctx, dt)
			switch {
			case err == nil:
				lastErr = ""
			case errors.Is(err, context.Canceled):
				return nil
			case err.Error() != lastErr:
				lastErr = err.Error()
				c.emit(diag.Diagnostic{Severity: diag.Err, Code: "RENDER.FRAME", Summary: "Frame failed", Detail: err.Error()})
			}
		}
	}
}

// WatchConfig applies config file edits until ctx is done.
func (c *Core) WatchConfig(ctx context.Context) error {
	if c.configPath == "" {
		<-ctx.Done()
		return nil
	}
	return config.Watch(ctx, c.configPath, c.ApplyConfig)
}

func (c *Core) Close() error { return c.Eng.Close() }
