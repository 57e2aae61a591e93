package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// HandleSessionEvents attaches a WebSocket client to a session's event
// stream. One client per session: a new attachment replaces the previous
// one. Events missed while detached are not replayed; clients resync from
// the session state endpoint.
func (h *Handlers) HandleSessionEvents(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnf("WebSocket upgrade failed: session=%s err=%v", sessionID, err)
		return
	}
	defer func() { _ = conn.Close() }()

	ch, detach := h.manager.Events().Subscribe(sessionID)
	defer detach()

	h.log.Infof("Event stream attached: session=%s remote=%s", sessionID, conn.RemoteAddr())

	// Reader drains control frames and signals disconnect.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case ev, ok := <-ch:
			if !ok {
				// Replaced by a newer subscriber or session closed
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(ev); err != nil {
				h.log.Debugf("Event write failed, detaching: session=%s err=%v", sessionID, err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
