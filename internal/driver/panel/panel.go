package panel

import (
	"fmt"
	"image"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/nrzled"
	"periph.io/x/extra/devices/screen"
	"periph.io/x/host/v3"

	"github.com/coreman2200/holoquilt/internal/device"
	"github.com/coreman2200/holoquilt/internal/render"
)

// RefreshRate is the LED refresh used to derive the SPI clock.
const RefreshRate physic.Frequency = 800

// Opts configures the LED panel.
type Opts struct {
	Port   string // spireg name; "" picks the first port
	Pixels int
	Matrix Matrix // zero treats the strip as one row
	Limit  Limiter
}

// Driver shows a thumbnail of each quilt on an addressable LED strip
// driven over SPI, or on the console when no SPI port is present.
type Driver struct {
	Displays []device.Calibration
	Matrix   Matrix
	Limit    Limiter

	mu        sync.Mutex
	drawer    display.Drawer
	port      spi.PortCloser
	rendering bool
	thumb     *image.RGBA
	grid      *image.RGBA
	SPI       bool
}

var _ render.Sink = (*Driver)(nil)

// Open initializes the host drivers and the SPI port, falling back to the
// console screen.
func Open(o Opts) (*Driver, error) {
	if o.Pixels <= 0 {
		o.Pixels = 100
		if o.Matrix.Len() > 0 {
			o.Pixels = o.Matrix.Len()
		}
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("panel: host init: %w", err)
	}
	p, err := spireg.Open(o.Port)
	if err != nil {
		log.Warn().Err(err).Str("port", o.Port).Msg("failed to find a SPI port; printing at the console")
		d := NewDrawer(screen.New(o.Pixels))
		d.Matrix, d.Limit = o.Matrix, o.Limit
		return d, nil
	}
	d, err := NewSPI(p, o.Pixels)
	if err != nil {
		_ = p.Close()
		return nil, err
	}
	d.Matrix, d.Limit = o.Matrix, o.Limit
	return d, nil
}

// NewSPI drives an nrzled strip of pixels LEDs on p.
func NewSPI(p spi.PortCloser, pixels int) (*Driver, error) {
	opts := nrzled.Opts{
		NumPixels: pixels,
		Channels:  3,
		Freq:      ((RefreshRate * 3) + 100) * physic.KiloHertz,
	}
	d, err := nrzled.NewSPI(p, &opts)
	if err != nil {
		return nil, fmt.Errorf("panel: nrzled: %w", err)
	}
	if err := d.Halt(); err != nil {
		return nil, err
	}
	drv := NewDrawer(d)
	drv.port = p
	drv.SPI = true
	return drv, nil
}

// NewDrawer wraps any periph display.
func NewDrawer(d display.Drawer) *Driver { return &Driver{drawer: d} }

func (d *Driver) String() string { return d.drawer.String() }

func (d *Driver) Initialize() error {
	log.Info().Str("drawer", d.drawer.String()).Bool("spi", d.SPI).Msg("panel sink initialized")
	return nil
}

func (d *Driver) Shutdown() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	err := d.drawer.Halt()
	d.rendering = false
	if d.port != nil {
		if cerr := d.port.Close(); err == nil {
			err = cerr
		}
		d.port = nil
	}
	return err
}

func (d *Driver) ListDisplays() ([]device.Calibration, error) { return d.Displays, nil }

func (d *Driver) StartRendering() error {
	d.mu.Lock()
	d.rendering = true
	d.mu.Unlock()
	return nil
}

func (d *Driver) StopRendering() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rendering = false
	return d.drawer.Halt()
}

func (d *Driver) IsRendering() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rendering
}

// DrawTexture scales the quilt down to the panel and draws it. With a
// Matrix the quilt is scaled to the grid and rewired into strip order.
func (d *Driver) DrawTexture(tex render.Texture, tilesX, tilesY int, aspect float64) error {
	img, ok := tex.(image.Image)
	if !ok {
		return fmt.Errorf("panel: unsupported texture %T", tex)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	b := d.drawer.Bounds()
	if d.thumb == nil || d.thumb.Bounds() != b {
		d.thumb = image.NewRGBA(b)
	}
	if n := d.Matrix.Len(); n > 0 {
		gb := image.Rect(0, 0, d.Matrix.W, d.Matrix.H)
		if d.grid == nil || d.grid.Bounds() != gb {
			d.grid = image.NewRGBA(gb)
		}
		draw.ApproxBiLinear.Scale(d.grid, gb, img, img.Bounds(), draw.Src, nil)
		d.Limit.Apply(d.grid)
		d.Matrix.Strip(d.grid, d.thumb)
	} else {
		draw.ApproxBiLinear.Scale(d.thumb, b, img, img.Bounds(), draw.Src, nil)
		d.Limit.Apply(d.thumb)
	}
	if err := d.drawer.Draw(b, d.thumb, b.Min); err != nil {
		return fmt.Errorf("panel: draw: %w", err)
	}
	return nil
}
