package tiling

import (
	"errors"
	"fmt"
)

// ErrDegenerateTiling is returned when a quality yields no usable tile pixels.
var ErrDegenerateTiling = errors.New("tiling: degenerate tiling")

const (
	MinAspect = 0.05
	MaxAspect = 20.0
)

// Quality is the tile grid of one quilt. The exported size fields are
// inputs; TileSizeX/Y and PortionX/Y are derived by Setup.
type Quality struct {
	Name   string  `yaml:"name,omitempty" json:"name,omitempty"`
	TilesX int     `yaml:"tiles_x" json:"tilesX"`
	TilesY int     `yaml:"tiles_y" json:"tilesY"`
	QuiltW int     `yaml:"quilt_w" json:"quiltW"`
	QuiltH int     `yaml:"quilt_h" json:"quiltH"`
	Aspect float64 `yaml:"aspect" json:"aspect"` // 0 derives from the device

	TileSizeX int     `yaml:"-" json:"tileSizeX"`
	TileSizeY int     `yaml:"-" json:"tileSizeY"`
	PortionX  float64 `yaml:"-" json:"portionX"`
	PortionY  float64 `yaml:"-" json:"portionY"`
}

// New returns a Quality with derived fields computed.
func New(name string, tilesX, tilesY, quiltW, quiltH int, aspect float64) Quality {
	q := Quality{Name: name, TilesX: tilesX, TilesY: tilesY, QuiltW: quiltW, QuiltH: quiltH, Aspect: aspect}
	q.Setup()
	return q
}

// Setup recomputes the derived fields. Call it after changing any input.
func (q *Quality) Setup() {
	q.TileSizeX, q.TileSizeY = 0, 0
	q.PortionX, q.PortionY = 0, 0
	if q.TilesX > 0 {
		q.TileSizeX = q.QuiltW / q.TilesX
	}
	if q.TilesY > 0 {
		q.TileSizeY = q.QuiltH / q.TilesY
	}
	if q.QuiltW > 0 {
		q.PortionX = float64(q.TilesX*q.TileSizeX) / float64(q.QuiltW)
	}
	if q.QuiltH > 0 {
		q.PortionY = float64(q.TilesY*q.TileSizeY) / float64(q.QuiltH)
	}
}

func (q Quality) NumTiles() int { return q.TilesX * q.TilesY }

// PaddingY is the quilt height left over below a whole number of tile rows.
func (q Quality) PaddingY() int { return q.QuiltH - q.TilesY*q.TileSizeY }

// Equal reports whether two qualities share the same tile geometry.
// Aspect is not compared.
func (q Quality) Equal(o Quality) bool {
	return q.TilesX == o.TilesX &&
		q.TilesY == o.TilesY &&
		q.QuiltW == o.QuiltW &&
		q.QuiltH == o.QuiltH
}

// Validate checks that Setup has produced at least one pixel per tile.
func (q Quality) Validate() error {
	if q.TilesX < 1 || q.TilesY < 1 {
		return fmt.Errorf("%w: %dx%d tiles", ErrDegenerateTiling, q.TilesX, q.TilesY)
	}
	if q.TileSizeX < 1 || q.TileSizeY < 1 {
		return fmt.Errorf("%w: %dx%d tiles over %dx%d px", ErrDegenerateTiling, q.TilesX, q.TilesY, q.QuiltW, q.QuiltH)
	}
	return nil
}

// CameraAspect returns the aspect the camera rig should use: the quality's
// own aspect, or the display aspect when it is unset, clamped to
// [MinAspect, MaxAspect].
func (q Quality) CameraAspect(displayAspect float64) float64 {
	a := q.Aspect
	if a <= 0 {
		a = displayAspect
	}
	return ClampAspect(a)
}

func ClampAspect(a float64) float64 {
	if a < MinAspect {
		return MinAspect
	}
	if a > MaxAspect {
		return MaxAspect
	}
	return a
}

// ScreenshotSuffix is the quilt file-name tag readers use to recover the grid.
func (q Quality) ScreenshotSuffix(aspect float64) string {
	return fmt.Sprintf("_qs%dx%da%.2f", q.TilesX, q.TilesY, aspect)
}
