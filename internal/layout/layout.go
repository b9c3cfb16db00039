package layout

import (
	"fmt"
	"image"

	"github.com/coreman2200/holoquilt/internal/tiling"
)

// Order is the scan order that maps a view index onto a quilt tile.
type Order int

const (
	TopLeftToBottomRight Order = iota
	BottomLeftToTopRight
	TopRightToBottomLeft
	BottomRightToTopLeft
)

// DefaultOrder is the legacy quilt order: view 0 at the bottom left.
const DefaultOrder = BottomLeftToTopRight

var orderNames = [...]string{
	TopLeftToBottomRight: "top-left",
	BottomLeftToTopRight: "bottom-left",
	TopRightToBottomLeft: "top-right",
	BottomRightToTopLeft: "bottom-right",
}

func Orders() []Order {
	return []Order{TopLeftToBottomRight, BottomLeftToTopRight, TopRightToBottomLeft, BottomRightToTopLeft}
}

func (o Order) String() string {
	if o < 0 || int(o) >= len(orderNames) {
		return fmt.Sprintf("order(%d)", int(o))
	}
	return orderNames[o]
}

func ParseOrder(s string) (Order, error) {
	for i, n := range orderNames {
		if n == s {
			return Order(i), nil
		}
	}
	return DefaultOrder, fmt.Errorf("layout: unknown order %q", s)
}

func (o Order) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

func (o *Order) UnmarshalText(b []byte) error {
	v, err := ParseOrder(string(b))
	if err != nil {
		return err
	}
	*o = v
	return nil
}

// Grid is the quilt tile grid. Row 0 is the top row in image space.
type Grid struct {
	TilesX, TilesY int
	TileW, TileH   int
	QuiltH         int
}

func GridFor(q tiling.Quality) Grid {
	return Grid{TilesX: q.TilesX, TilesY: q.TilesY, TileW: q.TileSizeX, TileH: q.TileSizeY, QuiltH: q.QuiltH}
}

func (g Grid) Count() int { return g.TilesX * g.TilesY }

func (g Grid) PaddingY() int { return g.QuiltH - g.TilesY*g.TileH }

// Cell maps view index -> (col,row).
func (g Grid) Cell(index int, o Order) (col, row int) {
	switch o {
	case BottomLeftToTopRight:
		ri := g.Count() - 1 - index
		return index % g.TilesX, ri / g.TilesX
	case TopRightToBottomLeft:
		return g.TilesX - 1 - index%g.TilesX, index / g.TilesX
	case BottomRightToTopLeft:
		return g.TilesX - 1 - index%g.TilesX, g.TilesY - 1 - index/g.TilesX
	default:
		return index % g.TilesX, index / g.TilesX
	}
}

// Index is the inverse of Cell. It returns -1 for cells outside the grid.
func (g Grid) Index(col, row int, o Order) int {
	if col < 0 || row < 0 || col >= g.TilesX || row >= g.TilesY {
		return -1
	}
	switch o {
	case BottomLeftToTopRight:
		return (g.TilesY-1-row)*g.TilesX + col
	case TopRightToBottomLeft:
		return row*g.TilesX + (g.TilesX - 1 - col)
	case BottomRightToTopLeft:
		return (g.TilesY-1-row)*g.TilesX + (g.TilesX - 1 - col)
	default:
		return row*g.TilesX + col
	}
}

// Placement is the destination rectangle of view index in quilt pixels.
func (g Grid) Placement(index int, o Order) image.Rectangle {
	col, row := g.Cell(index, o)
	min := image.Pt(col*g.TileW, row*g.TileH+g.PaddingY())
	return image.Rectangle{Min: min, Max: min.Add(image.Pt(g.TileW, g.TileH))}
}

// Placement is Grid.Placement over explicit grid parameters.
func Placement(index, tilesX, tilesY, tileW, tileH, quiltH int, o Order) image.Rectangle {
	return Grid{TilesX: tilesX, TilesY: tilesY, TileW: tileW, TileH: tileH, QuiltH: quiltH}.Placement(index, o)
}
