package camera

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCameraDistanceFillsFocalPlane(t *testing.T) {
	r := Rig{Size: 100, FOV: 90}
	assert.InDelta(t, 100, r.CameraDistance(), 1e-9)

	r = DefaultRig()
	d := r.CameraDistance()
	extent := d * math.Tan(radians(r.FOV/2))
	assert.InDelta(t, r.Size, extent, 1e-9)
}

func TestClipPlanes(t *testing.T) {
	r := Rig{Size: 100, FOV: 90, NearClipFactor: 0.5, FarClipFactor: 2}
	near, far := r.ClipPlanes()
	assert.InDelta(t, 50, near, 1e-9)
	assert.InDelta(t, 300, far, 1e-9)

	r.NearClipFactor = 5
	near, _ = r.ClipPlanes()
	assert.Equal(t, 1.0, near)

	r.NearClipFactor = -3
	r.FarClipFactor = -1
	near, far = r.ClipPlanes()
	assert.InDelta(t, r.CameraDistance(), near, 1e-9)
	assert.InDelta(t, r.CameraDistance(), far, 1e-9)
}

func TestViewLerp(t *testing.T) {
	assert.Equal(t, 0.0, ViewLerp(0, 1))
	assert.Equal(t, -0.5, ViewLerp(0, 11))
	assert.Equal(t, 0.5, ViewLerp(10, 11))
	assert.InDelta(t, 0, ViewLerp(5, 11), 1e-12)
	for i := 0; i < 11; i++ {
		assert.InDelta(t, -ViewLerp(i, 11), ViewLerp(10-i, 11), 1e-12)
	}
}

func TestSingleViewHasNoOffset(t *testing.T) {
	v := DefaultRig().View(0, 1, 54)
	assert.Equal(t, 0.0, v.OffsetX)
	assert.Equal(t, float32(0), v.Projection.At(2, 0))
}

func TestViewOffsetShearsProjection(t *testing.T) {
	r := Rig{Size: 100, FOV: 90, NearClipFactor: 0.5, FarClipFactor: 2, Aspect: 0.5}
	v := r.View(0, 11, 45)
	// sweep = 100 * tan(45deg) = 100
	assert.InDelta(t, -50, v.OffsetX, 1e-9)
	assert.InDelta(t, -0.5, v.ProjOffsetX, 1e-9)
	assert.InDelta(t, -0.5, v.Projection.At(2, 0), 1e-6)
	assert.InDelta(t, 1, v.Projection.At(0, 0), 1e-6)
	assert.InDelta(t, 0.5, v.Projection.At(1, 1), 1e-6)
	assert.Equal(t, float32(1), v.Projection.At(2, 3))
	assert.InDelta(t, 50, v.Projection.At(3, 2), 1e-4, "min z is the near plane without far clip")
	assert.Equal(t, float32(0), v.Projection.At(2, 2))

	off, proj := Params(0, 11, 45, r.CameraDistance(), 100, 90, 0.5)
	assert.InDelta(t, v.OffsetX, off, 1e-9)
	assert.InDelta(t, v.ProjOffsetX, proj.At(2, 0), 1e-6)
}

func TestParamsUsesGivenDistance(t *testing.T) {
	// doubling the distance doubles the sweep and moves the near plane out
	off, proj := Params(10, 11, 45, 200, 100, 90, 1)
	assert.InDelta(t, 100, off, 1e-9)
	assert.InDelta(t, 1, proj.At(2, 0), 1e-6)
	// near = 200 - 1.5*100 with the default near factor
	assert.InDelta(t, 50, proj.At(3, 2), 1e-4)

	off, _ = Params(5, 11, 45, 200, 100, 90, 1)
	assert.InDelta(t, 0, off, 1e-9)
}

func TestFarClipDepthTerms(t *testing.T) {
	r := Rig{Size: 100, FOV: 90, NearClipFactor: 0.5, FarClipFactor: 2, UseFarClip: true, Aspect: 1}
	near, far := r.ClipPlanes()
	m := r.Projection(0, 0)
	assert.InDelta(t, near/(near-far), m.At(2, 2), 1e-6)
	assert.InDelta(t, -far*near/(near-far), m.At(3, 2), 1e-3)

	// near == far collapses to the plain near term.
	r = Rig{Size: 100, FOV: 90, NearClipFactor: 0, FarClipFactor: 0, UseFarClip: true, Aspect: 1}
	m = r.Projection(0, 0)
	assert.Equal(t, float32(0), m.At(2, 2))
	assert.InDelta(t, 100, m.At(3, 2), 1e-4)
}
