package fake

import (
	"image"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/coreman2200/holoquilt/internal/device"
	"github.com/coreman2200/holoquilt/internal/render"
)

// Draw records the arguments of one DrawTexture call.
type Draw struct {
	Tex            render.Texture
	TilesX, TilesY int
	Aspect         float64
}

// Driver is a display sink for machines without a lightfield display. It
// logs a compact summary of each quilt and keeps counters for tests.
type Driver struct {
	Displays []device.Calibration
	ListErr  error
	Quiet    bool

	mu          sync.Mutex
	initialized bool
	rendering   bool
	Count       int
	Starts      int
	Stops       int
	ListCalls   int
	last        Draw
}

var _ render.Sink = (*Driver)(nil)

func New(displays ...device.Calibration) *Driver { return &Driver{Displays: displays} }

func (d *Driver) Initialize() error {
	d.mu.Lock()
	d.initialized = true
	d.mu.Unlock()
	log.Info().Int("displays", len(d.Displays)).Msg("fake sink initialized")
	return nil
}

func (d *Driver) Shutdown() error {
	d.mu.Lock()
	d.initialized = false
	d.rendering = false
	d.mu.Unlock()
	return nil
}

func (d *Driver) ListDisplays() ([]device.Calibration, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ListCalls++
	if d.ListErr != nil {
		return nil, d.ListErr
	}
	out := make([]device.Calibration, len(d.Displays))
	copy(out, d.Displays)
	return out, nil
}

// SetDisplays replaces the simulated display list.
func (d *Driver) SetDisplays(ds []device.Calibration) {
	d.mu.Lock()
	d.Displays = ds
	d.mu.Unlock()
}

func (d *Driver) StartRendering() error {
	d.mu.Lock()
	d.rendering = true
	d.Starts++
	d.mu.Unlock()
	return nil
}

func (d *Driver) StopRendering() error {
	d.mu.Lock()
	d.rendering = false
	d.Stops++
	d.mu.Unlock()
	return nil
}

func (d *Driver) IsRendering() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rendering
}

func (d *Driver) DrawTexture(tex render.Texture, tilesX, tilesY int, aspect float64) error {
	d.mu.Lock()
	d.Count++
	d.last = Draw{Tex: tex, TilesX: tilesX, TilesY: tilesY, Aspect: aspect}
	n := d.Count
	d.mu.Unlock()

	if d.Quiet {
		return nil
	}
	ev := log.Debug().Int("frame", n).Int("tiles_x", tilesX).Int("tiles_y", tilesY).Float64("aspect", aspect)
	if img, ok := tex.(image.Image); ok {
		b := img.Bounds()
		r, g, bl, _ := img.At(b.Min.X, b.Min.Y).RGBA()
		ev = ev.Int("w", b.Dx()).Int("h", b.Dy()).Uints32("first", []uint32{r >> 8, g >> 8, bl >> 8})
	}
	ev.Msg("fake sink draw")
	return nil
}

// Last returns the most recent draw.
func (d *Driver) Last() Draw {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}
