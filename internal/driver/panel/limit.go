package panel

import (
	"image"
	"math"
)

// Limiter keeps an LED frame inside a power envelope.
//
//   - WhiteCap caps R+G+B per pixel, as a fraction of full white (0 or >=1 disables).
//   - BudgetmA is the strip's current budget; 0 disables it.
//   - ChanmA is the draw of one channel at full scale (WS2812 is about 20).
//   - Knee is the fraction of the budget where soft scaling begins.
type Limiter struct {
	WhiteCap float64
	BudgetmA float64
	ChanmA   float64
	Knee     float64
}

// EstimatemA returns the estimated current of img in mA.
func (l Limiter) EstimatemA(img *image.RGBA) float64 {
	chanmA := l.ChanmA
	if chanmA <= 0 {
		chanmA = 20
	}
	var sum float64
	for i := 0; i+2 < len(img.Pix); i += 4 {
		sum += float64(img.Pix[i]) + float64(img.Pix[i+1]) + float64(img.Pix[i+2])
	}
	return sum / 255 * chanmA
}

// Apply scales img in place.
func (l Limiter) Apply(img *image.RGBA) {
	if l.WhiteCap > 0 && l.WhiteCap < 1 {
		limit := l.WhiteCap * 3 * 255
		for i := 0; i+2 < len(img.Pix); i += 4 {
			s := float64(img.Pix[i]) + float64(img.Pix[i+1]) + float64(img.Pix[i+2])
			if s > limit {
				scalePixel(img.Pix[i:i+3], limit/s)
			}
		}
	}
	if l.BudgetmA <= 0 {
		return
	}
	total := l.EstimatemA(img)
	if total <= 0 {
		return
	}
	knee := l.Knee
	if knee <= 0 || knee >= 1 {
		knee = 0.9
	}
	ratio := total / l.BudgetmA
	if ratio <= knee {
		return
	}
	// above the knee, compress toward the budget without reaching it
	x := (ratio - knee) / (1 - knee)
	out := knee + (1-knee)*(1-math.Exp(-x))
	s := out / ratio
	for i := 0; i+2 < len(img.Pix); i += 4 {
		scalePixel(img.Pix[i:i+3], s)
	}
}

func scalePixel(px []uint8, s float64) {
	for c := range px {
		px[c] = uint8(float64(px[c]) * s)
	}
}

// Matrix maps a W x H LED grid onto a strip wired row by row. With
// Serpentine set, odd rows run right to left.
type Matrix struct {
	W, H       int
	Serpentine bool
}

func (m Matrix) Len() int { return m.W * m.H }

// Index is the strip position of grid cell (x, y), y=0 being the top row.
func (m Matrix) Index(x, y int) int {
	if m.Serpentine && y%2 == 1 {
		x = m.W - 1 - x
	}
	return y*m.W + x
}

// Strip copies the W x H grid into a strip image of Len() x 1 pixels.
func (m Matrix) Strip(grid *image.RGBA, strip *image.RGBA) {
	gb := grid.Bounds()
	for y := 0; y < m.H; y++ {
		for x := 0; x < m.W; x++ {
			i := m.Index(x, y)
			if i >= strip.Bounds().Dx() {
				continue
			}
			strip.SetRGBA(strip.Bounds().Min.X+i, strip.Bounds().Min.Y, grid.RGBAAt(gb.Min.X+x, gb.Min.Y+y))
		}
	}
}
