// Package soft is a CPU render backend over image.RGBA textures.
package soft

import (
	"fmt"
	"image"
	"image/color"
	"sync"

	"golang.org/x/image/draw"

	"github.com/coreman2200/holoquilt/internal/camera"
	"github.com/coreman2200/holoquilt/internal/pages"
	"github.com/coreman2200/holoquilt/internal/render"
)

// Scene draws one camera view into dst. dst.Bounds() is the view rect.
type Scene interface {
	Render(dst *image.RGBA, v camera.View)
}

// SceneFunc adapts a function to Scene.
type SceneFunc func(dst *image.RGBA, v camera.View)

func (f SceneFunc) Render(dst *image.RGBA, v camera.View) { f(dst, v) }

// Backend renders scenes on the CPU. Blits scale with Interp, which
// defaults to nearest neighbour so same-size copies are exact.
type Backend struct {
	Interp draw.Interpolator

	mu       sync.Mutex
	scene    Scene
	allocs   int
	releases int
	live     int
}

var _ render.Backend = (*Backend)(nil)

func New(s Scene) *Backend {
	return &Backend{Interp: draw.NearestNeighbor, scene: s}
}

// SetScene swaps the scene used by later RenderView calls.
func (b *Backend) SetScene(s Scene) {
	b.mu.Lock()
	b.scene = s
	b.mu.Unlock()
}

func (b *Backend) Scene() Scene {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.scene
}

func (b *Backend) Allocate(w, h int) (render.Texture, error) {
	if w < 1 || h < 1 {
		return nil, fmt.Errorf("soft: invalid texture size %dx%d", w, h)
	}
	b.mu.Lock()
	b.allocs++
	b.live++
	b.mu.Unlock()
	return image.NewRGBA(image.Rect(0, 0, w, h)), nil
}

func (b *Backend) Resize(tex render.Texture, w, h int) (render.Texture, error) {
	if img, ok := tex.(*image.RGBA); ok && img.Bounds().Dx() == w && img.Bounds().Dy() == h {
		return img, nil
	}
	b.Release(tex)
	return b.Allocate(w, h)
}

func (b *Backend) Release(tex render.Texture) {
	if tex == nil {
		return
	}
	b.mu.Lock()
	b.releases++
	b.live--
	b.mu.Unlock()
}

// Stats returns allocation counters.
func (b *Backend) Stats() (allocs, releases, live int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.allocs, b.releases, b.live
}

func rgba(tex render.Texture) (*image.RGBA, error) {
	img, ok := tex.(*image.RGBA)
	if !ok || img == nil {
		return nil, fmt.Errorf("soft: unsupported texture %T", tex)
	}
	return img, nil
}

func (b *Backend) RenderView(dst render.Texture, rect image.Rectangle, v camera.View) error {
	img, err := rgba(dst)
	if err != nil {
		return err
	}
	if !rect.In(img.Bounds()) {
		return fmt.Errorf("soft: view rect %v outside texture %v", rect, img.Bounds())
	}
	sub := img.SubImage(rect).(*image.RGBA)
	s := b.Scene()
	if s == nil {
		draw.Draw(sub, rect, image.NewUniform(color.Black), image.Point{}, draw.Src)
		return nil
	}
	s.Render(sub, v)
	return nil
}

func (b *Backend) Blit(dst render.Texture, dstRect image.Rectangle, src render.Texture, uv pages.UV) error {
	d, err := rgba(dst)
	if err != nil {
		return err
	}
	s, err := rgba(src)
	if err != nil {
		return err
	}
	sr := uv.Rect(s.Bounds().Dx(), s.Bounds().Dy()).Add(s.Bounds().Min)
	b.Interp.Scale(d, dstRect, s, sr, draw.Src, nil)
	return nil
}
