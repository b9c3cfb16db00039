package ws

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/holoquilt/internal/app"
	"github.com/coreman2200/holoquilt/internal/config"
	diag "github.com/coreman2200/holoquilt/internal/diagnostics"
	"github.com/coreman2200/holoquilt/internal/driver/fake"
	"github.com/coreman2200/holoquilt/internal/driver/preview"
	"github.com/coreman2200/holoquilt/internal/layout"
	"github.com/coreman2200/holoquilt/internal/render"
	"github.com/coreman2200/holoquilt/internal/tiling"
)

type server struct {
	st   *State
	srv  *httptest.Server
	path string
}

func newServer(t *testing.T) server {
	t.Helper()
	hub := NewHub()
	base := fake.New()
	base.Quiet = true
	pv := preview.New(hub, base)
	pv.SetThrottle(0)

	cfg := config.Default()
	cfg.FPS = 60
	cfg.Tiling.Preset = tiling.Custom
	cfg.Tiling.Custom = tiling.New("Custom", 4, 2, 80, 40, 0)
	path := filepath.Join(t.TempDir(), "config.yaml")
	core, err := app.InitCore(context.Background(), cfg, app.Options{Sink: pv, ConfigPath: path, OnDiag: hub.PushDiag})
	require.NoError(t, err)

	st := NewState(core, hub, "sim")
	mux := http.NewServeMux()
	st.Routes(mux)
	srv := httptest.NewServer(mux)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- core.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
		srv.Close()
		_ = core.Close()
	})
	return server{st: st, srv: srv, path: path}
}

func (s server) dial(t *testing.T, route string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.srv.URL, "http") + route
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func (s server) waitFrames(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool { return s.st.Core.Eng.Plan().Frame > 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestHealth(t *testing.T) {
	s := newServer(t)
	s.waitFrames(t)

	resp, err := http.Get(s.srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	var h map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&h))
	assert.Equal(t, "sim", h["driver"])
	assert.Equal(t, float64(60), h["fps"])
	assert.Greater(t, h["frame_id"], float64(0))
	assert.Equal(t, false, h["override"])
	assert.Equal(t, []any{app.TargetName}, h["targets"])
	assert.Equal(t, map[string]any{"runtime": app.TargetName}, h["current"])
}

func TestPlan(t *testing.T) {
	s := newServer(t)
	s.waitFrames(t)

	resp, err := http.Get(s.srv.URL + "/plan")
	require.NoError(t, err)
	defer resp.Body.Close()
	var p render.Plan
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&p))
	assert.Equal(t, app.TargetName, p.Target)
	assert.Equal(t, tiling.Custom, p.Effective)
	assert.Equal(t, 4, p.Quality.TilesX)
	require.Len(t, p.Placements, 8)
	require.Len(t, p.Pages, 1)
	assert.Equal(t, 8, p.Pages[0].NumViews())
}

func TestSnapshot(t *testing.T) {
	s := newServer(t)
	s.waitFrames(t)

	resp, err := http.Get(s.srv.URL + "/snapshot")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "quilt_qs4x2a")

	img, err := png.Decode(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, 80, img.Bounds().Dx())
	assert.Equal(t, 40, img.Bounds().Dy())
}

func TestSnapshotCentreView(t *testing.T) {
	s := newServer(t)
	s.waitFrames(t)

	resp, err := http.Get(s.srv.URL + "/snapshot?mode=2d&w=32&h=18")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "view_32x18.png")
	img, err := png.Decode(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, 32, img.Bounds().Dx())
	assert.Equal(t, 18, img.Bounds().Dy())

	for _, q := range []string{"?mode=2d&w=x", "?mode=stereo"} {
		resp, err := http.Get(s.srv.URL + "/snapshot" + q)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, q)
	}
}

func TestFramesStream(t *testing.T) {
	s := newServer(t)
	conn := s.dial(t, "/ws")

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var f frameMsg
	require.NoError(t, json.Unmarshal(data, &f))
	assert.Equal(t, 4, f.TilesX)
	assert.Equal(t, 2, f.TilesY)
	assert.Equal(t, 80, f.W)
	rgb, err := base64.StdEncoding.DecodeString(f.RGB)
	require.NoError(t, err)
	assert.Len(t, rgb, 80*40*3)
	assert.NotZero(t, f.FrameID)
}

func TestControl(t *testing.T) {
	s := newServer(t)
	dconn := s.dial(t, "/diag")
	require.Eventually(t, func() bool {
		_, d := s.st.Hub.Clients()
		return d == 1
	}, 5*time.Second, 10*time.Millisecond)

	conn := s.dial(t, "/control")
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	require.NoError(t, err)

	require.NoError(t, conn.WriteJSON(map[string]any{
		"order":  "top-left",
		"size":   600,
		"preset": "holodeck",
	}))
	var status map[string]any
	require.NoError(t, conn.ReadJSON(&status))
	assert.Equal(t, "top-left", status["order"])
	assert.Equal(t, "custom", status["preset"])
	assert.Equal(t, 600.0, s.st.Core.Config().Camera.Size)

	require.NoError(t, dconn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var d diag.Diagnostic
		require.NoError(t, dconn.ReadJSON(&d))
		if d.Code == "CONTROL.BAD_VALUE" {
			assert.Equal(t, "preset", d.Evidence["key"])
			break
		}
	}

	assert.Eventually(t, func() bool {
		return s.st.Core.Eng.Plan().Order == layout.TopLeftToBottomRight
	}, 5*time.Second, 10*time.Millisecond)

	saved, err := os.ReadFile(s.path)
	require.NoError(t, err)
	assert.Contains(t, string(saved), "order: top-left")

	require.NoError(t, conn.WriteJSON(map[string]any{"override": "nope", "clearOverride": true}))
	require.NoError(t, conn.ReadJSON(&status))
	assert.Equal(t, false, status["override"])

	loaded, err := config.Load(s.path)
	require.NoError(t, err)
	assert.Equal(t, 600.0, loaded.Camera.Size)
}
