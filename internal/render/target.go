package render

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/coreman2200/holoquilt/internal/camera"
	"github.com/coreman2200/holoquilt/internal/device"
	"github.com/coreman2200/holoquilt/internal/layout"
	"github.com/coreman2200/holoquilt/internal/pages"
	"github.com/coreman2200/holoquilt/internal/tiling"
)

// Kind tags where a capture target lives.
type Kind int

const (
	Runtime Kind = iota
	Editor
)

func Kinds() []Kind { return []Kind{Runtime, Editor} }

func (k Kind) String() string {
	if k == Editor {
		return "editor"
	}
	return "runtime"
}

// Target is one capture target: a camera rig plus the tiling it renders
// and the page textures that back it.
type Target struct {
	Name       string
	Kind       Kind
	Preset     tiling.Preset
	Custom     tiling.Quality
	SingleView bool
	Order      layout.Order
	Rig        camera.Rig

	quality  tiling.Quality
	pages    *pages.Set
	textures []Texture
	backend  Backend
	seenGen  uint64
	resolved bool
	dirty    bool
}

func NewTarget(name string, kind Kind, preset tiling.Preset) *Target {
	custom, _ := tiling.DefaultTable().For(tiling.Custom)
	return &Target{
		Name:   name,
		Kind:   kind,
		Preset: preset,
		Custom: custom,
		Order:  layout.DefaultOrder,
		Rig:    camera.DefaultRig(),
		dirty:  true,
	}
}

func (t *Target) SetPreset(p tiling.Preset) {
	t.Preset = p
	t.dirty = true
}

// SetCustom replaces the user-editable values used by the Custom preset.
func (t *Target) SetCustom(q tiling.Quality) {
	q.Setup()
	t.Custom = q
	t.dirty = true
}

func (t *Target) SetSingleView(on bool) {
	t.SingleView = on
	t.dirty = true
}

func (t *Target) Invalidate() { t.dirty = true }

func (t *Target) Quality() tiling.Quality { return t.quality }

func (t *Target) Grid() layout.Grid { return layout.GridFor(t.quality) }

func (t *Target) Pages() []pages.Page {
	if t.pages == nil {
		return nil
	}
	return t.pages.Pages()
}

// NeedsUpdate reports whether the target must re-resolve, given the
// current override generation.
func (t *Target) NeedsUpdate(gen uint64) bool {
	return t.dirty || !t.resolved || gen != t.seenGen
}

// Update resolves the tiling against calib and rebuilds pages through b
// when the geometry changed.
func (t *Target) Update(b Backend, res *tiling.Resolver, calib device.Calibration, maxViews, maxDim int) (bool, error) {
	if t.pages == nil || t.backend != b {
		if t.pages != nil {
			t.pages.Release()
		}
		t.backend = b
		t.pages = pages.NewSet(&pageTextures{t: t})
	}
	if maxViews > 0 {
		t.pages.MaxViewsPerPage = maxViews
	}
	if maxDim > 0 {
		t.pages.MaxTextureDim = maxDim
	}

	q, gen, err := res.Resolve(t.Preset, t.Custom, calib.Serial)
	if err != nil {
		return false, fmt.Errorf("target %s: %w", t.Name, err)
	}
	rebuilt, err := t.pages.Build(q, t.SingleView)
	if err != nil {
		return false, fmt.Errorf("target %s: %w", t.Name, err)
	}
	t.quality = q
	t.Rig.Aspect = q.CameraAspect(calib.DisplayAspect())
	t.seenGen = gen
	t.resolved = true
	t.dirty = false
	log.Debug().
		Str("target", t.Name).
		Str("quality", q.Name).
		Int("tiles_x", q.TilesX).
		Int("tiles_y", q.TilesY).
		Float64("aspect", t.Rig.Aspect).
		Bool("rebuilt", rebuilt).
		Msg("target updated")
	return rebuilt, nil
}

// Release frees the page textures. The next Update rebuilds them.
func (t *Target) Release() {
	if t.pages != nil {
		t.pages.Release()
	}
	t.dirty = true
}

func (t *Target) texture(page int) Texture {
	if page < 0 || page >= len(t.textures) {
		return nil
	}
	return t.textures[page]
}

// pageTextures backs a page set with backend textures.
type pageTextures struct{ t *Target }

func (a *pageTextures) Allocate(i int, p pages.Page) error {
	tex, err := a.t.backend.Allocate(p.Width, p.Height)
	if err != nil {
		return err
	}
	for len(a.t.textures) <= i {
		a.t.textures = append(a.t.textures, nil)
	}
	a.t.textures[i] = tex
	return nil
}

func (a *pageTextures) Release(i int, p pages.Page) {
	if i < len(a.t.textures) && a.t.textures[i] != nil {
		a.t.backend.Release(a.t.textures[i])
		a.t.textures[i] = nil
	}
}
