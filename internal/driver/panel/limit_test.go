package panel

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/draw"
)

func white(n int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, n, 1))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	return img
}

func TestLimiterBudgetClamp(t *testing.T) {
	// 10 white pixels draw 600 mA at 20 mA per channel
	img := white(10)
	l := Limiter{BudgetmA: 300, ChanmA: 20, Knee: 0.9}
	assert.InDelta(t, 600, l.EstimatemA(img), 1e-9)
	l.Apply(img)
	assert.LessOrEqual(t, l.EstimatemA(img), 300.1)
}

func TestLimiterSoftKnee(t *testing.T) {
	img := white(10)
	l := Limiter{BudgetmA: 620, ChanmA: 20, Knee: 0.9}
	l.Apply(img)
	got := l.EstimatemA(img)
	assert.Less(t, got, 600.0)
	assert.Greater(t, got, 560.0)

	img = white(10)
	Limiter{BudgetmA: 1000}.Apply(img)
	assert.Equal(t, uint8(255), img.Pix[0])
}

func TestLimiterWhiteCap(t *testing.T) {
	img := white(1)
	Limiter{WhiteCap: 0.5}.Apply(img)
	sum := int(img.Pix[0]) + int(img.Pix[1]) + int(img.Pix[2])
	assert.LessOrEqual(t, sum, 383)
	assert.Equal(t, uint8(255), img.Pix[3])
}

func TestMatrixSerpentine(t *testing.T) {
	m := Matrix{W: 3, H: 2, Serpentine: true}
	assert.Equal(t, 6, m.Len())
	assert.Equal(t, 0, m.Index(0, 0))
	assert.Equal(t, 2, m.Index(2, 0))
	assert.Equal(t, 5, m.Index(0, 1))
	assert.Equal(t, 3, m.Index(2, 1))
	assert.Equal(t, 4, Matrix{W: 3, H: 2}.Index(1, 1))

	grid := image.NewRGBA(image.Rect(0, 0, 3, 2))
	red := color.RGBA{R: 255, A: 255}
	grid.SetRGBA(0, 1, red)
	strip := image.NewRGBA(image.Rect(0, 0, 6, 1))
	m.Strip(grid, strip)
	assert.Equal(t, red, strip.RGBAAt(5, 0))
	assert.Equal(t, color.RGBA{}, strip.RGBAAt(3, 0))
}

func TestDrawTextureThroughMatrix(t *testing.T) {
	rd := &stripDrawer{bounds: image.Rect(0, 0, 4, 1)}
	d := NewDrawer(rd)
	d.Matrix = Matrix{W: 2, H: 2, Serpentine: true}
	d.Limit = Limiter{WhiteCap: 0.5}

	quilt := image.NewRGBA(image.Rect(0, 0, 20, 20))
	draw.Draw(quilt, image.Rect(0, 10, 10, 20), image.NewUniform(color.White), image.Point{}, draw.Src)
	require.NoError(t, d.DrawTexture(quilt, 2, 2, 1))

	// bottom-left cell is strip index 3 on a serpentine 2x2
	lit := rd.last.RGBAAt(3, 0)
	assert.NotZero(t, lit.R)
	assert.LessOrEqual(t, int(lit.R)+int(lit.G)+int(lit.B), 383)
	assert.Zero(t, rd.last.RGBAAt(0, 0).R)
}

type stripDrawer struct {
	bounds image.Rectangle
	last   *image.RGBA
}

func (s *stripDrawer) String() string          { return "strip" }
func (s *stripDrawer) Halt() error             { return nil }
func (s *stripDrawer) ColorModel() color.Model { return color.RGBAModel }
func (s *stripDrawer) Bounds() image.Rectangle { return s.bounds }
func (s *stripDrawer) Draw(dst image.Rectangle, src image.Image, sp image.Point) error {
	img := image.NewRGBA(dst)
	draw.Draw(img, dst, src, sp, draw.Src)
	s.last = img
	return nil
}
