package camera

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Rig is the multi-view camera. Size is the width of the focal plane in
// world units; FOV is in degrees.
type Rig struct {
	Size           float64 `yaml:"size" json:"size"`
	FOV            float64 `yaml:"fov" json:"fov"`
	NearClipFactor float64 `yaml:"near_clip_factor" json:"nearClipFactor"`
	FarClipFactor  float64 `yaml:"far_clip_factor" json:"farClipFactor"`
	UseFarClip     bool    `yaml:"use_far_clip" json:"useFarClip"`
	Aspect         float64 `yaml:"-" json:"aspect"`
}

func DefaultRig() Rig {
	return Rig{
		Size:           500,
		FOV:            14,
		NearClipFactor: 1.5,
		FarClipFactor:  4,
		UseFarClip:     false,
		Aspect:         0.5625,
	}
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }

// CameraDistance places the camera so a plane of width Size fills the view.
func (r Rig) CameraDistance() float64 {
	return r.Size / math.Tan(radians(r.FOV/2))
}

// ClipPlanes returns near and far distances derived from Size.
func (r Rig) ClipPlanes() (near, far float64) { return r.clipPlanes(r.CameraDistance()) }

func (r Rig) clipPlanes(d float64) (near, far float64) {
	near = d - r.NearClipFactor*r.Size
	if near < 1 {
		near = 1
	}
	if near > d {
		near = d
	}
	far = d + math.Max(r.FarClipFactor, 0)*r.Size
	return near, far
}

// ViewConeSweep is the lateral distance spanned by the whole view cone.
func (r Rig) ViewConeSweep(viewConeDeg float64) float64 {
	return sweep(r.CameraDistance(), viewConeDeg)
}

func sweep(distance, viewConeDeg float64) float64 {
	return distance * math.Tan(radians(viewConeDeg))
}

// Projection builds the sheared perspective matrix. offX/offY are the
// projection-space offsets; rows follow the row-vector convention with a
// reversed depth range.
func (r Rig) Projection(offX, offY float64) mgl32.Mat4 {
	return r.projection(offX, offY, r.CameraDistance())
}

func (r Rig) projection(offX, offY, distance float64) mgl32.Mat4 {
	near, far := r.clipPlanes(distance)
	var maxZ, minZ float64
	if r.UseFarClip {
		if near == far {
			maxZ, minZ = 0, near
		} else {
			maxZ = near / (near - far)
			minZ = -far * near / (near - far)
		}
	} else {
		minZ = near
	}
	t := math.Tan(radians(r.FOV) / 2)
	return mgl32.Mat4FromRows(
		mgl32.Vec4{float32(1 / t), 0, 0, 0},
		mgl32.Vec4{0, float32(r.Aspect / t), 0, 0},
		mgl32.Vec4{float32(offX), float32(offY), float32(maxZ), 1},
		mgl32.Vec4{0, 0, float32(minZ), 0},
	)
}

// ViewLerp is the view's position across the cone in [-0.5, 0.5]. A single
// view sits at the centre.
func ViewLerp(index, numTiles int) float64 {
	if numTiles <= 1 {
		return 0
	}
	return float64(index)/float64(numTiles-1) - 0.5
}

// View is the camera for one quilt view.
type View struct {
	Index       int
	Lerp        float64
	OffsetX     float64
	ProjOffsetX float64
	Projection  mgl32.Mat4
}

func (r Rig) View(index, numTiles int, viewConeDeg float64) View {
	return r.viewAt(index, numTiles, viewConeDeg, r.CameraDistance())
}

func (r Rig) viewAt(index, numTiles int, viewConeDeg, distance float64) View {
	lerp := ViewLerp(index, numTiles)
	off := lerp * sweep(distance, viewConeDeg)
	v := View{Index: index, Lerp: lerp, OffsetX: off}
	if r.Size != 0 {
		v.ProjOffsetX = off / r.Size
	}
	v.Projection = r.projection(v.ProjOffsetX, 0, distance)
	return v
}

// Center is the single undistorted view used for 2D output.
func (r Rig) Center() View {
	return View{Projection: r.Projection(0, 0)}
}

// Params evaluates one view for explicit rig parameters. cameraDistance
// drives the view-cone sweep and the clip planes; the default clip factors
// apply.
func Params(index, numTiles int, viewConeDeg, cameraDistance, size, fovDeg, aspect float64) (offsetX float64, proj mgl32.Mat4) {
	r := DefaultRig()
	r.Size, r.FOV, r.Aspect = size, fovDeg, aspect
	v := r.viewAt(index, numTiles, viewConeDeg, cameraDistance)
	return v.OffsetX, v.Projection
}
