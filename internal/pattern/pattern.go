package pattern

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"

	"github.com/coreman2200/holoquilt/internal/camera"
)

// Solid fills every view with one colour.
type Solid struct{ C color.RGBA }

func (s Solid) Render(dst *image.RGBA, _ camera.View) {
	draw.Draw(dst, dst.Bounds(), image.NewUniform(s.C), image.Point{}, draw.Src)
}

// ViewHue colours each view by its position across the view cone, so the
// quilt reads as a rainbow in scan order.
type ViewHue struct{}

func (ViewHue) Render(dst *image.RGBA, v camera.View) {
	draw.Draw(dst, dst.Bounds(), image.NewUniform(HueColor(v.Lerp+0.5)), image.Point{}, draw.Src)
}

// IndexColor is a distinct colour per view index.
func IndexColor(index int) color.RGBA {
	return color.RGBA{R: uint8(index * 37), G: uint8(index * 91), B: uint8(255 - index*13), A: 255}
}

// ViewIndex paints each view with IndexColor, for checking placement.
type ViewIndex struct{}

func (ViewIndex) Render(dst *image.RGBA, v camera.View) {
	draw.Draw(dst, dst.Bounds(), image.NewUniform(IndexColor(v.Index)), image.Point{}, draw.Src)
}

// Parallax draws two vertical bars: one on the focal plane, which stays put
// in every view, and one in front of it, which drifts with the projection
// offset.
type Parallax struct {
	Depth float64 // fraction of the view width the near bar moves per unit offset
}

func (p Parallax) Render(dst *image.RGBA, v camera.View) {
	b := dst.Bounds()
	draw.Draw(dst, b, image.NewUniform(color.RGBA{A: 255}), image.Point{}, draw.Src)
	w := b.Dx()
	bar := max(1, w/24)
	depth := p.Depth
	if depth == 0 {
		depth = 0.5
	}
	focal := b.Min.X + w/2 - bar/2
	near := focal - int(v.ProjOffsetX*depth*float64(w))
	fill(dst, image.Rect(focal, b.Min.Y, focal+bar, b.Max.Y), color.RGBA{R: 255, G: 255, B: 255, A: 255})
	fill(dst, image.Rect(near, b.Min.Y+b.Dy()/4, near+bar, b.Max.Y-b.Dy()/4), color.RGBA{R: 255, G: 64, A: 255})
}

func fill(dst *image.RGBA, r image.Rectangle, c color.RGBA) {
	r = r.Intersect(dst.Bounds())
	if r.Empty() {
		return
	}
	draw.Draw(dst, r, image.NewUniform(c), image.Point{}, draw.Src)
}

// HueColor maps h in [0,1] to a saturated RGB colour.
func HueColor(h float64) color.RGBA {
	h = math.Mod(h, 1)
	if h < 0 {
		h++
	}
	r, g, b := hsvToRGB(h, 1, 1)
	return color.RGBA{R: uint8(r * 255), G: uint8(g * 255), B: uint8(b * 255), A: 255}
}

func hsvToRGB(h, s, v float64) (float64, float64, float64) {
	i := int(h * 6.0)
	f := h*6.0 - float64(i)
	p := v * (1.0 - s)
	q := v * (1.0 - f*s)
	t := v * (1.0 - (1.0-f)*s)
	switch i % 6 {
	case 0:
		return v, t, p
	case 1:
		return q, v, p
	case 2:
		return p, v, t
	case 3:
		return p, q, v
	case 4:
		return t, p, v
	default:
		return v, p, q
	}
}
