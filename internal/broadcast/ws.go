package broadcast

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
	wsPongWait     = 60 * time.Second
)

// WSHandler exposes the hub over a websocket endpoint. Each connection gets
// its own subscriber; the connection is dropped on any write failure.
type WSHandler struct {
	hub      *Hub
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

// NewWSHandler builds the websocket handler for price updates.
func NewWSHandler(hub *Hub, logger zerolog.Logger) *WSHandler {
	return &WSHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Observers are read-only; no cross-origin credentials involved.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger.With().Str("component", "broadcast_ws").Logger(),
	}
}

// ServeHTTP upgrades the connection and streams updates until the client
// disconnects.
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	sub := h.hub.Subscribe()
	h.logger.Debug().Str("remote", conn.RemoteAddr().String()).Msg("subscriber connected")

	go h.readLoop(conn, sub)
	h.writeLoop(conn, sub)
}

// readLoop discards inbound frames and unsubscribes when the peer goes away.
func (h *WSHandler) readLoop(conn *websocket.Conn, sub *Subscriber) {
	defer h.hub.Unsubscribe(sub)

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *WSHandler) writeLoop(conn *websocket.Conn, sub *Subscriber) {
	ticker := time.NewTicker(wsPingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case update, ok := <-sub.C():
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteJSON(update); err != nil {
				h.logger.Debug().Err(err).Msg("subscriber write failed")
				h.hub.Unsubscribe(sub)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.hub.Unsubscribe(sub)
				return
			}
		}
	}
}
