package ws

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/holoquilt/internal/app"
	diag "github.com/coreman2200/holoquilt/internal/diagnostics"
	"github.com/coreman2200/holoquilt/internal/layout"
	"github.com/coreman2200/holoquilt/internal/pattern"
	"github.com/coreman2200/holoquilt/internal/render"
	"github.com/coreman2200/holoquilt/internal/sequence"
	"github.com/coreman2200/holoquilt/internal/tiling"
)

// SnapshotTimeout bounds how long /snapshot waits for the next frame.
var SnapshotTimeout = 2 * time.Second

// State serves the control surface of a running core.
type State struct {
	Core          *app.Core
	Hub           *Hub
	CurrentDriver string

	startTime time.Time
	up        websocket.Upgrader
}

func NewState(core *app.Core, hub *Hub, driver string) *State {
	return &State{
		Core:          core,
		Hub:           hub,
		CurrentDriver: driver,
		startTime:     time.Now(),
		up:            websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
}

// Routes registers every endpoint on mux.
func (s *State) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", s.Hub.HandleFramesWS)
	mux.HandleFunc("/diag", s.Hub.HandleDiagWS)
	mux.HandleFunc("/control", s.HandleControlWS)
	mux.HandleFunc("/health", s.HandleHealth)
	mux.HandleFunc("/plan", s.HandlePlan)
	mux.HandleFunc("/snapshot", s.HandleSnapshot)
}

func (s *State) HandleControlWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	s.sendStatus(conn)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg map[string]any
		if err := json.Unmarshal(data, &msg); err != nil {
			s.Hub.PushDiag(diag.Diagnostic{Severity: diag.Warn, Code: "CONTROL.BAD_JSON", Summary: "Control message is not JSON", Detail: err.Error()})
			continue
		}
		s.applyControl(msg)
		s.sendStatus(conn)
	}
}

func (s *State) HandleHealth(w http.ResponseWriter, r *http.Request) {
	eng := s.Core.Eng
	plan := eng.Plan()
	frames, diags := s.Hub.Clients()
	cfg := s.Core.Config()
	current := map[string]string{}
	for _, k := range render.Kinds() {
		if t, ok := eng.Registry.CurrentOf(k); ok {
			current[k.String()] = t.Name
		}
	}
	resp := map[string]any{
		"frame_id":     plan.Frame,
		"uptime_s":     time.Since(s.startTime).Seconds(),
		"fps":          cfg.FPS,
		"driver":       s.CurrentDriver,
		"serial":       plan.Serial,
		"override":     eng.Resolver.Override.IsActive(),
		"published":    s.Hub.Published(),
		"frameClients": frames,
		"diagClients":  diags,
		"pattern":      string(s.Core.Pattern()),
		"targets":      eng.Registry.List(),
		"current":      current,
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// HandlePlan serves the page plan and view placements of the last frame.
func (s *State) HandlePlan(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.Core.Eng.Plan())
}

// HandleSnapshot serves the next composed quilt as a PNG. With mode=2d it
// serves the centre view alone at w x h (display resolution by default).
func (s *State) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), SnapshotTimeout)
	defer cancel()
	q := r.URL.Query()
	var (
		img  image.Image
		name string
	)
	switch q.Get("mode") {
	case "", "quilt":
		quilt, plan, err := s.Core.Eng.Snapshot(ctx)
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		img = quilt
		name = "quilt" + plan.Quality.ScreenshotSuffix(plan.Aspect) + ".png"
	case "2d":
		vw, err1 := queryInt(q.Get("w"))
		vh, err2 := queryInt(q.Get("h"))
		if err1 != nil || err2 != nil {
			http.Error(w, "w and h must be integers", http.StatusBadRequest)
			return
		}
		flat, err := s.Core.Eng.Snapshot2D(ctx, vw, vh)
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		img = flat
		name = fmt.Sprintf("view_%dx%d.png", flat.Bounds().Dx(), flat.Bounds().Dy())
	default:
		http.Error(w, fmt.Sprintf("unknown mode %q", q.Get("mode")), http.StatusBadRequest)
		return
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	_, _ = w.Write(buf.Bytes())
}

func queryInt(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

func (s *State) applyControl(msg map[string]any) {
	c := s.Core
	var errs []error
	bad := func(key string, err error) {
		errs = append(errs, err)
		s.Hub.PushDiag(diag.Diagnostic{
			Severity: diag.Warn, Code: "CONTROL.BAD_VALUE", Summary: "Control value rejected",
			Detail: err.Error(), Evidence: map[string]any{"key": key, "value": msg[key]},
		})
	}

	if v, ok := msg["preset"].(string); ok {
		if p, err := tiling.ParsePreset(v); err != nil {
			bad("preset", err)
		} else if err := c.SetPreset(p); err != nil {
			bad("preset", err)
		}
	}
	if v, ok := msg["override"].(string); ok {
		if p, err := tiling.ParsePreset(v); err != nil {
			bad("override", err)
		} else {
			c.SetOverride(p)
		}
	}
	if v, ok := msg["clearOverride"].(bool); ok && v {
		c.ClearOverride()
	}
	if v, ok := msg["order"].(string); ok {
		if o, err := layout.ParseOrder(v); err != nil {
			bad("order", err)
		} else {
			c.SetOrder(o)
		}
	}
	if v, ok := msg["singleView"].(bool); ok {
		c.SetSingleView(v)
	}
	for _, name := range []string{"size", "fov"} {
		if v, ok := msg[name].(float64); ok {
			if err := c.SetParam(name, v); err != nil {
				bad(name, err)
			}
		}
	}
	if v, ok := msg["fps"].(float64); ok {
		if err := c.SetFPS(int(v)); err != nil {
			bad("fps", err)
		}
	}
	if v, ok := msg["custom"]; ok {
		var q tiling.Quality
		b, _ := json.Marshal(v)
		if err := json.Unmarshal(b, &q); err != nil {
			bad("custom", err)
		} else if err := c.SetCustom(q); err != nil {
			bad("custom", err)
		}
	}
	if v, ok := msg["runPattern"].(string); ok {
		if k, err := pattern.ParseKind(v); err != nil {
			bad("runPattern", err)
		} else {
			s.Hub.PushDiag(diag.Diagnostic{Severity: diag.Info, Code: "PATTERN.RUNNING", Summary: "Running pattern", Detail: v})
			c.RunPattern(k)
		}
	}
	if v, ok := msg["tour"].(string); ok {
		switch v {
		case "all":
			if err := c.PlayTour(sequence.TourAll(3)); err != nil {
				bad("tour", err)
			}
		case "stop":
			c.StopTour()
		default:
			bad("tour", fmt.Errorf("unknown tour command %q", v))
		}
	}

	// Persist config after any change
	if err := c.Save(); err != nil {
		log.Warn().Err(err).Msg("save config")
	}
	if len(errs) > 0 {
		log.Debug().Int("rejected", len(errs)).Msg("control message")
	}
}

func (s *State) sendStatus(conn *websocket.Conn) {
	cfg := s.Core.Config()
	st := map[string]any{
		"preset":     cfg.Tiling.Preset,
		"order":      cfg.Tiling.Order,
		"singleView": cfg.Tiling.SingleView,
		"custom":     cfg.Tiling.Custom,
		"camera":     cfg.Camera,
		"fps":        cfg.FPS,
		"override":   s.Core.Eng.Resolver.Override.IsActive(),
		"driver":     s.CurrentDriver,
		"presets":    tiling.Presets(),
		"orders":     layout.Orders(),
		"patterns":   pattern.Kinds(),
	}
	b, err := json.Marshal(st)
	if err != nil {
		return
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = conn.WriteMessage(websocket.TextMessage, b)
}
