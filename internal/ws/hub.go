package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	diag "github.com/coreman2200/holoquilt/internal/diagnostics"
	"github.com/coreman2200/holoquilt/internal/driver/preview"
)

const writeWait = 200 * time.Millisecond

// Hub fans preview frames and diagnostics out to websocket clients. It is
// the preview.Publisher of the running sink.
type Hub struct {
	mu          sync.RWMutex
	clients     map[*websocket.Conn]bool
	diagClients map[*websocket.Conn]bool
	frames      uint64
	up          websocket.Upgrader
}

var _ preview.Publisher = (*Hub)(nil)

func NewHub() *Hub {
	return &Hub{
		clients:     map[*websocket.Conn]bool{},
		diagClients: map[*websocket.Conn]bool{},
		up:          websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
}

type frameMsg struct {
	T       int64  `json:"t"`
	FrameID uint64 `json:"frame_id"`
	preview.Frame
}

// PublishFrame sends f to every frame client.
func (h *Hub) PublishFrame(f preview.Frame) {
	h.mu.Lock()
	h.frames++
	id := h.frames
	h.mu.Unlock()

	b, err := json.Marshal(frameMsg{T: time.Now().UnixNano(), FrameID: id, Frame: f})
	if err != nil {
		log.Debug().Err(err).Msg("encode frame")
		return
	}
	h.broadcast(h.clients, b, "write frame")
}

// PushDiag sends d to every diagnostics client.
func (h *Hub) PushDiag(d diag.Diagnostic) {
	b, err := json.Marshal(d)
	if err != nil {
		return
	}
	h.broadcast(h.diagClients, b, "write diag")
}

// Published is the number of frames sent so far.
func (h *Hub) Published() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.frames
}

// Clients reports connected frame and diagnostics clients.
func (h *Hub) Clients() (frames, diags int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients), len(h.diagClients)
}

func (h *Hub) broadcast(set map[*websocket.Conn]bool, b []byte, what string) {
	// Writes hold the lock so a connection never sees concurrent writers.
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range set {
		_ = c.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.WriteMessage(websocket.TextMessage, b); err != nil {
			log.Debug().Err(err).Msg(what)
		}
	}
}

func (h *Hub) HandleFramesWS(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, h.clients)
}

func (h *Hub) HandleDiagWS(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, h.diagClients)
}

func (h *Hub) serve(w http.ResponseWriter, r *http.Request, set map[*websocket.Conn]bool) {
	conn, err := h.up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	h.mu.Lock()
	set[conn] = true
	h.mu.Unlock()

	go func() {
		defer func() {
			h.mu.Lock()
			delete(set, conn)
			h.mu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
