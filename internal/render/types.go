package render

import (
	"image"

	"github.com/coreman2200/holoquilt/internal/camera"
	"github.com/coreman2200/holoquilt/internal/device"
	"github.com/coreman2200/holoquilt/internal/pages"
)

// Texture is an opaque backend texture handle.
type Texture interface{}

// Backend abstracts the render API (GPU, software, ...).
type Backend interface {
	Allocate(w, h int) (Texture, error)
	Resize(tex Texture, w, h int) (Texture, error)
	Release(tex Texture)
	// RenderView draws one camera view into rect of dst.
	RenderView(dst Texture, rect image.Rectangle, v camera.View) error
	// Blit copies the uv region of src into dstRect of dst.
	Blit(dst Texture, dstRect image.Rectangle, src Texture, uv pages.UV) error
}

// Sink is the display driver that consumes finished quilts.
type Sink interface {
	Initialize() error
	Shutdown() error
	ListDisplays() ([]device.Calibration, error)
	StartRendering() error
	StopRendering() error
	IsRendering() bool
	DrawTexture(tex Texture, tilesX, tilesY int, aspect float64) error
}
