package preview

import (
	"encoding/base64"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/draw"

	"github.com/coreman2200/holoquilt/internal/driver/fake"
)

type capture struct{ frames []Frame }

func (c *capture) PublishFrame(f Frame) { c.frames = append(c.frames, f) }

func TestPreviewThrottlesAndForwards(t *testing.T) {
	pub := &capture{}
	next := fake.New()
	next.Quiet = true
	d := New(pub, next)
	d.SetThrottle(time.Hour)

	img := image.NewRGBA(image.Rect(0, 0, 1024, 512))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{R: 10, G: 20, B: 30, A: 255}), image.Point{}, draw.Src)

	require.NoError(t, d.StartRendering())
	assert.True(t, d.IsRendering())
	require.NoError(t, d.DrawTexture(img, 11, 6, 0.5625))
	require.NoError(t, d.DrawTexture(img, 11, 6, 0.5625))

	assert.Equal(t, 2, next.Count)
	require.Len(t, pub.frames, 1)
	f := pub.frames[0]
	assert.Equal(t, 512, f.W)
	assert.Equal(t, 256, f.H)
	assert.Equal(t, 11, f.TilesX)

	rgb, err := base64.StdEncoding.DecodeString(f.RGB)
	require.NoError(t, err)
	assert.Len(t, rgb, 512*256*3)
	assert.Equal(t, []byte{10, 20, 30}, rgb[:3])
}

func TestPreviewWithoutNext(t *testing.T) {
	pub := &capture{}
	d := New(pub, nil)
	d.SetThrottle(0)
	ds, err := d.ListDisplays()
	assert.NoError(t, err)
	assert.Empty(t, ds)

	img := image.NewRGBA(image.Rect(0, 0, 4, 2))
	require.NoError(t, d.DrawTexture(img, 2, 1, 1))
	require.NoError(t, d.DrawTexture("not an image", 2, 1, 1))
	require.Len(t, pub.frames, 1)
	assert.Equal(t, 4, pub.frames[0].W)
	assert.False(t, d.IsRendering())
}
