package render

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"

	"github.com/coreman2200/holoquilt/internal/device"
	"github.com/coreman2200/holoquilt/internal/layout"
	"github.com/coreman2200/holoquilt/internal/pages"
	"github.com/coreman2200/holoquilt/internal/tiling"
)

var ErrNoTarget = errors.New("render: no active capture target")

// Options tune page planning and device selection.
type Options struct {
	DisplayIndex    int
	MaxViewsPerPage int
	MaxTextureDim   int
}

// Engine composes quilts for the current capture target and hands them to
// the sink. RenderOnce and everything it touches run on one goroutine;
// other goroutines reach the engine through Post.
type Engine struct {
	Backend  Backend
	Sink     Sink
	Resolver *tiling.Resolver
	Registry *Registry
	Monitor  *device.Monitor
	Opts     Options

	displays []device.Calibration
	calib    device.Calibration

	quilt        Texture
	quiltW       int
	quiltH       int
	flat         Texture
	flatW, flatH int

	qmu   sync.Mutex
	queue []func(*Engine)

	pmu  sync.RWMutex
	plan Plan

	frame uint64
	t0    time.Time

	// metrics (last durations in ms)
	Last struct {
		UpdateMS float64
		RenderMS float64
		BlitMS   float64
		TotalMS  float64
	}
}

// NewEngine initializes the sink and reads the attached displays.
func NewEngine(b Backend, s Sink, res *tiling.Resolver, reg *Registry, opts Options) (*Engine, error) {
	if b == nil || s == nil {
		return nil, errors.New("render: backend and sink are required")
	}
	if res == nil {
		res = tiling.NewResolver(nil)
	}
	if reg == nil {
		reg = NewRegistry()
	}
	if err := s.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize sink: %w", err)
	}
	e := &Engine{
		Backend:  b,
		Sink:     s,
		Resolver: res,
		Registry: reg,
		Opts:     opts,
		t0:       time.Now(),
	}
	e.reloadDisplays()
	e.Monitor = device.NewMonitor(len(e.displays))
	return e, nil
}

func (e *Engine) reloadDisplays() {
	ds, err := e.Sink.ListDisplays()
	if err != nil {
		log.Warn().Err(err).Msg("list displays failed; using default calibration")
		ds = nil
	}
	e.displays = ds
	c, ok := device.Select(ds, e.Opts.DisplayIndex)
	if !ok {
		log.Info().Int("displays", len(ds)).Str("serial", c.Serial).Msg("no display at index; using default calibration")
	}
	e.calib = c
}

// Calibration is the device calibration currently in use.
func (e *Engine) Calibration() device.Calibration { return e.calib }

func (e *Engine) Displays() []device.Calibration { return e.displays }

// Now returns seconds since engine start.
func (e *Engine) Now() float64 { return time.Since(e.t0).Seconds() }

func (e *Engine) Frame() uint64 { return e.frame }

// Post queues f to run on the frame goroutine at the start of the next
// RenderOnce. Safe for concurrent use.
func (e *Engine) Post(f func(*Engine)) {
	if f == nil {
		return
	}
	e.qmu.Lock()
	e.queue = append(e.queue, f)
	e.qmu.Unlock()
}

func (e *Engine) drain() {
	e.qmu.Lock()
	q := e.queue
	e.queue = nil
	e.qmu.Unlock()
	for _, f := range q {
		f(e)
	}
}

// SetOverride applies preset to every target on the next frame.
func (e *Engine) SetOverride(p tiling.Preset) { e.Resolver.Override.Set(p) }

func (e *Engine) ClearOverride() { e.Resolver.Override.Clear() }

// Activate makes t the current target.
func (e *Engine) Activate(t *Target) { e.Registry.Activate(t) }

// Deactivate unregisters t and releases its page textures.
func (e *Engine) Deactivate(t *Target) {
	if e.Registry.Deactivate(t) {
		t.Release()
	}
}

// SetPageLimits changes the page planning limits and re-plans every
// target on the next update. Frame goroutine only.
func (e *Engine) SetPageLimits(maxViews, maxDim int) {
	e.Opts.MaxViewsPerPage = maxViews
	e.Opts.MaxTextureDim = maxDim
	for _, t := range e.Registry.All() {
		t.Invalidate()
	}
}

// Update brings every registered target up to date. A target whose
// tiling cannot be resolved keeps its previous layout.
func (e *Engine) Update() error {
	if changed, reload := e.Monitor.Drain(); changed {
		if reload {
			e.reloadDisplays()
		}
		for _, t := range e.Registry.All() {
			t.Invalidate()
		}
	}
	gen := e.Resolver.Override.Generation()
	var errs []error
	for _, t := range e.Registry.All() {
		if !t.NeedsUpdate(gen) {
			continue
		}
		if _, err := t.Update(e.Backend, e.Resolver, e.calib, e.Opts.MaxViewsPerPage, e.Opts.MaxTextureDim); err != nil {
			log.Warn().Err(err).Str("target", t.Name).Msg("tiling update failed")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RenderOnce renders every view of the current target, composes the quilt
// and draws it on the sink. A tiling error is returned after the frame is
// drawn with the last good layout.
func (e *Engine) RenderOnce(ctx context.Context) error {
	start := time.Now()
	e.drain()

	updErr := e.Update()
	t, ok := e.Registry.Current()
	if !ok {
		return ErrNoTarget
	}
	q := t.Quality()
	ps := t.Pages()
	if len(ps) == 0 {
		if updErr != nil {
			return updErr
		}
		return fmt.Errorf("render: target %s has no pages", t.Name)
	}
	if err := e.ensureQuilt(q.QuiltW, q.QuiltH); err != nil {
		return err
	}
	e.Last.UpdateMS = ms(time.Since(start))

	renderStart := time.Now()
	n := q.NumTiles()
	for pi, p := range ps {
		tex := t.texture(pi)
		for local := 0; local < p.NumViews(); local++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			v := t.Rig.View(p.FirstView+local, n, e.calib.ViewCone)
			if err := e.Backend.RenderView(tex, p.ViewRects[local], v); err != nil {
				return fmt.Errorf("render view %d: %w", v.Index, err)
			}
		}
	}
	e.Last.RenderMS = ms(time.Since(renderStart))

	blitStart := time.Now()
	grid := t.Grid()
	placements := make([]image.Rectangle, n)
	for pi, p := range ps {
		tex := t.texture(pi)
		for local := 0; local < p.NumViews(); local++ {
			view := p.FirstView + local
			placements[view] = grid.Placement(view, t.Order)
			if err := e.Backend.Blit(e.quilt, placements[view], tex, p.UV(local)); err != nil {
				return fmt.Errorf("blit view %d: %w", view, err)
			}
		}
	}
	e.Last.BlitMS = ms(time.Since(blitStart))

	if !e.Sink.IsRendering() {
		if err := e.Sink.StartRendering(); err != nil {
			return fmt.Errorf("start rendering: %w", err)
		}
	}
	if err := e.Sink.DrawTexture(e.quilt, q.TilesX, q.TilesY, t.Rig.Aspect); err != nil {
		return fmt.Errorf("draw quilt: %w", err)
	}

	e.frame++
	e.publish(t, placements)
	e.Last.TotalMS = ms(time.Since(start))
	log.Debug().
		Uint64("frame", e.frame).
		Int("views", n).
		Int("pages", len(ps)).
		Float64("total_ms", e.Last.TotalMS).
		Msg("quilt frame")
	return updErr
}

// Render2D renders the centre view alone at w x h, or at the display
// resolution when either is <= 0.
func (e *Engine) Render2D(ctx context.Context, w, h int) (Texture, error) {
	e.drain()
	if err := e.Update(); err != nil {
		return nil, err
	}
	t, ok := e.Registry.Current()
	if !ok {
		return nil, ErrNoTarget
	}
	if w <= 0 || h <= 0 {
		w, h = e.calib.Width, e.calib.Height
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var err error
	switch {
	case e.flat == nil:
		e.flat, err = e.Backend.Allocate(w, h)
	case e.flatW != w || e.flatH != h:
		e.flat, err = e.Backend.Resize(e.flat, w, h)
	}
	if err != nil {
		return nil, err
	}
	e.flatW, e.flatH = w, h
	if err := e.Backend.RenderView(e.flat, image.Rect(0, 0, w, h), t.Rig.Center()); err != nil {
		return nil, err
	}
	return e.flat, nil
}

func (e *Engine) ensureQuilt(w, h int) error {
	var err error
	switch {
	case e.quilt == nil:
		e.quilt, err = e.Backend.Allocate(w, h)
	case e.quiltW != w || e.quiltH != h:
		e.quilt, err = e.Backend.Resize(e.quilt, w, h)
	default:
		return nil
	}
	if err != nil {
		return fmt.Errorf("quilt %dx%d: %w", w, h, err)
	}
	e.quiltW, e.quiltH = w, h
	return nil
}

// Snapshot copies the most recent quilt on the frame goroutine. It blocks
// until the next RenderOnce runs or ctx is done.
func (e *Engine) Snapshot(ctx context.Context) (*image.RGBA, Plan, error) {
	type result struct {
		img  *image.RGBA
		plan Plan
		err  error
	}
	ch := make(chan result, 1)
	e.Post(func(e *Engine) {
		img, err := readTexture(e.quilt)
		ch <- result{img: img, plan: e.Plan(), err: err}
	})
	select {
	case r := <-ch:
		return r.img, r.plan, r.err
	case <-ctx.Done():
		return nil, Plan{}, ctx.Err()
	}
}

// Snapshot2D renders the centre view at w x h on the frame goroutine and
// returns a copy. Non-positive sizes use the display resolution.
func (e *Engine) Snapshot2D(ctx context.Context, w, h int) (*image.RGBA, error) {
	type result struct {
		img *image.RGBA
		err error
	}
	ch := make(chan result, 1)
	e.Post(func(e *Engine) {
		tex, err := e.Render2D(ctx, w, h)
		if err != nil {
			ch <- result{err: err}
			return
		}
		img, err := readTexture(tex)
		ch <- result{img: img, err: err}
	})
	select {
	case r := <-ch:
		return r.img, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func readTexture(tex Texture) (*image.RGBA, error) {
	src, ok := tex.(image.Image)
	if !ok || src == nil {
		return nil, errors.New("render: texture is not readable")
	}
	dst := image.NewRGBA(image.Rect(0, 0, src.Bounds().Dx(), src.Bounds().Dy()))
	draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)
	return dst, nil
}

// Stop stops sink rendering and releases every texture.
func (e *Engine) Stop() {
	if e.Sink.IsRendering() {
		if err := e.Sink.StopRendering(); err != nil {
			log.Warn().Err(err).Msg("stop rendering")
		}
	}
	for _, t := range e.Registry.All() {
		t.Release()
	}
	if e.quilt != nil {
		e.Backend.Release(e.quilt)
		e.quilt, e.quiltW, e.quiltH = nil, 0, 0
	}
	if e.flat != nil {
		e.Backend.Release(e.flat)
		e.flat, e.flatW, e.flatH = nil, 0, 0
	}
}

// Close stops rendering and shuts the sink down.
func (e *Engine) Close() error {
	e.Stop()
	return e.Sink.Shutdown()
}

func ms(d time.Duration) float64 { return float64(d.Microseconds()) / 1000.0 }

// Plan is a read-only view of the layout used by the last frame.
type Plan struct {
	Target     string            `json:"target"`
	Preset     tiling.Preset     `json:"preset"`
	Effective  tiling.Preset     `json:"effective"`
	Override   bool              `json:"override"`
	Quality    tiling.Quality    `json:"quality"`
	Order      layout.Order      `json:"order"`
	SingleView bool              `json:"singleView"`
	Aspect     float64           `json:"aspect"`
	Serial     string            `json:"serial"`
	Pages      []pages.Page      `json:"pages"`
	Placements []image.Rectangle `json:"placements"`
	Frame      uint64            `json:"frame"`
}

func (e *Engine) publish(t *Target, placements []image.Rectangle) {
	p := Plan{
		Target:     t.Name,
		Preset:     t.Preset,
		Effective:  e.Resolver.Effective(t.Preset, e.calib.Serial),
		Override:   e.Resolver.Override.IsActive(),
		Quality:    t.Quality(),
		Order:      t.Order,
		SingleView: t.SingleView,
		Aspect:     t.Rig.Aspect,
		Serial:     e.calib.Serial,
		Pages:      t.Pages(),
		Placements: placements,
		Frame:      e.frame,
	}
	e.pmu.Lock()
	e.plan = p
	e.pmu.Unlock()
}

// Plan returns the layout of the last composed frame. Safe for concurrent use.
func (e *Engine) Plan() Plan {
	e.pmu.RLock()
	defer e.pmu.RUnlock()
	return e.plan
}
