package pattern

import (
	"fmt"
	"image"
	"image/color"
	"sync"

	"golang.org/x/image/draw"

	"github.com/coreman2200/holoquilt/internal/camera"
)

type Kind string

const (
	None      Kind = ""
	ViewSweep Kind = "view_sweep"
	RGBTest   Kind = "rgb_channels"
	HueRamp   Kind = "hue_ramp"
	IndexMap  Kind = "index_map"
	Depth     Kind = "parallax"
)

func Kinds() []Kind { return []Kind{ViewSweep, RGBTest, HueRamp, IndexMap, Depth} }

func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds() {
		if string(k) == s {
			return k, nil
		}
	}
	return None, fmt.Errorf("pattern: unknown pattern %q", s)
}

// Runner is a stepped test pattern. Step advances it once per frame;
// Render draws the current step for any view.
type Runner struct {
	mu    sync.Mutex
	kind  Kind
	step  int
	views int
}

// NewRunner starts kind over a quilt of views views. ViewSweep lights one
// view per step and finishes after the last one.
func NewRunner(kind Kind, views int) *Runner { return &Runner{kind: kind, views: views} }

func (r *Runner) Kind() Kind { return r.kind }

// Step advances the pattern; it returns false once the pattern is done.
func (r *Runner) Step() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.kind {
	case ViewSweep:
		if r.step >= r.views {
			return false
		}
	case RGBTest, HueRamp, IndexMap, Depth:
	default:
		return false
	}
	r.step++
	return true
}

func (r *Runner) current() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.step
}

func (r *Runner) Render(dst *image.RGBA, v camera.View) {
	step := r.current()
	switch r.kind {
	case ViewSweep:
		c := color.RGBA{A: 255}
		if v.Index == step-1 {
			c = color.RGBA{R: 255, G: 255, B: 255, A: 255}
		}
		Solid{C: c}.Render(dst, v)
	case RGBTest:
		c := color.RGBA{A: 255}
		switch step % 3 {
		case 0:
			c.R = 255
		case 1:
			c.G = 255
		case 2:
			c.B = 255
		}
		Solid{C: c}.Render(dst, v)
	case HueRamp:
		ViewHue{}.Render(dst, v)
	case IndexMap:
		ViewIndex{}.Render(dst, v)
	case Depth:
		Parallax{}.Render(dst, v)
	default:
		draw.Draw(dst, dst.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
	}
}
