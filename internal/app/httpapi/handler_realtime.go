package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/letsbefriends/platform/internal/app/realtime"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = streamPongWait * 9 / 10
	// Clients only send pongs and close frames.
	streamMaxInbound = 512
)

// eventReady is the first frame on every stream; events published after it
// are delivered.
const eventReady = "ready"

func newUpgrader(allowed func(origin string) bool) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || allowed(origin)
		},
	}
}

// stream upgrades to a websocket and relays the user's realtime events
// until either side goes away.
func (h *handler) stream(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered the request.
		h.log.WithContext(r.Context()).WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	sub := h.app.Realtime.Subscribe(userID)
	defer sub.Close()

	gone := make(chan struct{})
	go drain(conn, gone)

	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	if err := conn.WriteJSON(realtime.Event{Type: eventReady, Payload: map[string]string{"user_id": userID}, At: time.Now().UTC()}); err != nil {
		return
	}

	ticker := time.NewTicker(streamPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case ev, open := <-sub.Events():
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if !open {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				return
			}
		case <-gone:
			return
		}
	}
}

// drain reads until the peer disconnects or stops answering pings.
func drain(conn *websocket.Conn, gone chan<- struct{}) {
	defer close(gone)
	conn.SetReadLimit(streamMaxInbound)
	_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
