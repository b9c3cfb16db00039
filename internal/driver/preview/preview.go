package preview

import (
	"encoding/base64"
	"image"
	"sync"
	"time"

	"golang.org/x/image/draw"

	"github.com/coreman2200/holoquilt/internal/device"
	"github.com/coreman2200/holoquilt/internal/render"
)

// Frame is the payload sent to preview clients.
type Frame struct {
	TilesX int     `json:"tilesX"`
	TilesY int     `json:"tilesY"`
	Aspect float64 `json:"aspect"`
	W      int     `json:"w"`
	H      int     `json:"h"`
	RGB    string  `json:"rgb"` // base64, 3 bytes per pixel
}

// Publisher receives throttled preview frames.
type Publisher interface {
	PublishFrame(f Frame)
}

// Driver is a sink that forwards to Next, if any, and publishes a
// downscaled copy of each quilt at most once per throttle interval.
type Driver struct {
	Next     render.Sink
	MaxWidth int

	pub       Publisher
	throttle  time.Duration
	lastEmit  time.Time
	rendering bool
	mu        sync.Mutex
	buf       *image.RGBA
}

var _ render.Sink = (*Driver)(nil)

func New(pub Publisher, next render.Sink) *Driver {
	return &Driver{
		Next:     next,
		MaxWidth: 512,
		pub:      pub,
		throttle: 50 * time.Millisecond, // ~20 FPS to UI
	}
}

// SetThrottle changes the minimum interval between published frames.
func (d *Driver) SetThrottle(t time.Duration) {
	d.mu.Lock()
	d.throttle = t
	d.mu.Unlock()
}

func (d *Driver) Initialize() error {
	if d.Next != nil {
		return d.Next.Initialize()
	}
	return nil
}

func (d *Driver) Shutdown() error {
	if d.Next != nil {
		return d.Next.Shutdown()
	}
	return nil
}

func (d *Driver) ListDisplays() ([]device.Calibration, error) {
	if d.Next != nil {
		return d.Next.ListDisplays()
	}
	return nil, nil
}

func (d *Driver) StartRendering() error {
	d.mu.Lock()
	d.rendering = true
	d.mu.Unlock()
	if d.Next != nil {
		return d.Next.StartRendering()
	}
	return nil
}

func (d *Driver) StopRendering() error {
	d.mu.Lock()
	d.rendering = false
	d.mu.Unlock()
	if d.Next != nil {
		return d.Next.StopRendering()
	}
	return nil
}

func (d *Driver) IsRendering() bool {
	if d.Next != nil {
		return d.Next.IsRendering()
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rendering
}

func (d *Driver) DrawTexture(tex render.Texture, tilesX, tilesY int, aspect float64) error {
	if d.Next != nil {
		if err := d.Next.DrawTexture(tex, tilesX, tilesY, aspect); err != nil {
			return err
		}
	}
	img, ok := tex.(image.Image)
	if !ok || d.pub == nil {
		return nil
	}

	d.mu.Lock()
	now := time.Now()
	if d.lastEmit.Add(d.throttle).After(now) {
		d.mu.Unlock()
		return nil // throttle UI updates
	}
	d.lastEmit = now
	small := d.downscale(img)
	rgb := make([]byte, 0, small.Bounds().Dx()*small.Bounds().Dy()*3)
	for i := 0; i+3 < len(small.Pix); i += 4 {
		rgb = append(rgb, small.Pix[i], small.Pix[i+1], small.Pix[i+2])
	}
	f := Frame{
		TilesX: tilesX,
		TilesY: tilesY,
		Aspect: aspect,
		W:      small.Bounds().Dx(),
		H:      small.Bounds().Dy(),
		RGB:    base64.StdEncoding.EncodeToString(rgb),
	}
	d.mu.Unlock()

	d.pub.PublishFrame(f)
	return nil
}

func (d *Driver) downscale(img image.Image) *image.RGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if d.MaxWidth > 0 && w > d.MaxWidth {
		h = max(1, h*d.MaxWidth/w)
		w = d.MaxWidth
	}
	if d.buf == nil || d.buf.Bounds().Dx() != w || d.buf.Bounds().Dy() != h {
		d.buf = image.NewRGBA(image.Rect(0, 0, w, h))
	}
	draw.ApproxBiLinear.Scale(d.buf, d.buf.Bounds(), img, b, draw.Src, nil)
	return d.buf
}
