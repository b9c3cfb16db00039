package pages

import (
	"errors"
	"fmt"
	"image"
)

const (
	DefaultMaxViewsPerPage     = 45
	DefaultMaxTextureDimension = 16384
)

var ErrInvalidPlan = errors.New("pages: invalid plan")

// Page is one render target holding a contiguous run of views laid out in
// its own ViewRows x ViewColumns grid.
type Page struct {
	FirstView   int               `json:"firstView"`
	LastView    int               `json:"lastView"`
	ViewRows    int               `json:"viewRows"`
	ViewColumns int               `json:"viewColumns"`
	Width       int               `json:"width"`
	Height      int               `json:"height"`
	ViewRects   []image.Rectangle `json:"-"`
}

func (p Page) NumViews() int { return p.LastView - p.FirstView + 1 }

func (p Page) Contains(view int) bool { return view >= p.FirstView && view <= p.LastView }

// Bounds is the full page texture rectangle.
func (p Page) Bounds() image.Rectangle { return image.Rect(0, 0, p.Width, p.Height) }

// UV is the normalized source region of a local view, as [u0,u1) x [v0,v1).
type UV struct{ U0, V0, U1, V1 float64 }

// Rect maps the UV region onto a w x h texture.
func (uv UV) Rect(w, h int) image.Rectangle {
	return image.Rect(
		int(uv.U0*float64(w)+0.5), int(uv.V0*float64(h)+0.5),
		int(uv.U1*float64(w)+0.5), int(uv.V1*float64(h)+0.5),
	)
}

func (p Page) UV(local int) UV {
	su := 1 / float64(p.ViewColumns)
	sv := 1 / float64(p.ViewRows)
	u := float64(local%p.ViewColumns) * su
	v := float64(local/p.ViewColumns) * sv
	return UV{U0: u, V0: v, U1: u + su, V1: v + sv}
}

// newPage lays out views first..last. A page stays one row wide unless
// that would exceed maxDim, then wraps into as few rows as fit.
func newPage(first, last, tileW, tileH, maxDim int) (Page, error) {
	n := last - first + 1
	if tileW >= maxDim || tileH >= maxDim {
		return Page{}, fmt.Errorf("%w: tile %dx%d exceeds texture limit %d", ErrInvalidPlan, tileW, tileH, maxDim)
	}
	rows := 1
	if tileW*n > maxDim {
		perRow := maxDim / tileW
		rows = (n + perRow - 1) / perRow
	}
	cols := (n + rows - 1) / rows
	p := Page{
		FirstView:   first,
		LastView:    last,
		ViewRows:    rows,
		ViewColumns: cols,
		Width:       tileW * cols,
		Height:      tileH * rows,
		ViewRects:   make([]image.Rectangle, n),
	}
	if p.Height > maxDim {
		return Page{}, fmt.Errorf("%w: page %d..%d needs %dpx height over limit %d", ErrInvalidPlan, first, last, p.Height, maxDim)
	}
	for i := range p.ViewRects {
		p.ViewRects[i] = ViewRect(i, cols, tileW, tileH)
	}
	return p, nil
}

// ViewRect is the pixel rectangle of local view i in a page of cols columns.
func ViewRect(i, cols, tileW, tileH int) image.Rectangle {
	min := image.Pt((i%cols)*tileW, (i/cols)*tileH)
	return image.Rectangle{Min: min, Max: min.Add(image.Pt(tileW, tileH))}
}

// Build partitions numTiles views into pages of at most maxViewsPerPage
// views, filled greedily in index order.
func Build(numTiles, maxViewsPerPage, tileW, tileH, maxDim int) ([]Page, error) {
	if numTiles < 1 || maxViewsPerPage < 1 || tileW < 1 || tileH < 1 || maxDim < 1 {
		return nil, fmt.Errorf("%w: tiles=%d maxViews=%d tile=%dx%d maxDim=%d",
			ErrInvalidPlan, numTiles, maxViewsPerPage, tileW, tileH, maxDim)
	}
	want := (numTiles + maxViewsPerPage - 1) / maxViewsPerPage
	out := make([]Page, 0, want)
	first := 0
	for v := 0; v < numTiles; v++ {
		if (v+1)%maxViewsPerPage == 0 || v+1 == numTiles {
			p, err := newPage(first, v, tileW, tileH, maxDim)
			if err != nil {
				return nil, err
			}
			out = append(out, p)
			first = v + 1
		}
	}
	if len(out) == 0 || len(out) != want {
		panic(fmt.Sprintf("pages: built %d pages for %d views, expected %d", len(out), numTiles, want))
	}
	return out, nil
}

// Locate finds the page and local index holding a global view.
func Locate(ps []Page, view int) (page, local int, ok bool) {
	for i, p := range ps {
		if p.Contains(view) {
			return i, view - p.FirstView, true
		}
	}
	return -1, -1, false
}
