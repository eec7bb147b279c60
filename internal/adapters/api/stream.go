package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mikey/scan-insights/internal/core"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // Allow non-browser clients
		}
		host := r.Host
		return origin == "http://"+host || origin == "https://"+host
	},
}

// alertEvent is one frame on the alert stream
type alertEvent struct {
	Type      string       `json:"type"`
	Timestamp time.Time    `json:"timestamp"`
	Alerts    []core.Alert `json:"alerts"`
}

// streamAlerts upgrades to a WebSocket and pushes the full alert list
// on every change. Each connection subscribes to the engine; slow
// clients drop frames rather than block the publisher.
func (s *Server) streamAlerts(c *gin.Context) {
	userID := c.Param("userID")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	send := make(chan []byte, 8)
	unsubscribe := s.engine.SubscribeAlerts(userID, func(alerts []core.Alert) {
		payload, err := json.Marshal(alertEvent{
			Type:      "alerts",
			Timestamp: time.Now(),
			Alerts:    alerts,
		})
		if err != nil {
			s.logger.Error("Failed to serialize alert event", zap.Error(err))
			return
		}
		select {
		case send <- payload:
		default:
			// Slow client; the next publish carries the full list anyway.
		}
	})

	go s.writePump(conn, send, userID)
	go s.readPump(conn, unsubscribe, userID)
}

// writePump pushes alert frames and pings until a write fails, which
// also covers the connection being closed by readPump
func (s *Server) writePump(conn *websocket.Conn, send <-chan []byte, userID string) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case payload := <-send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards inbound frames and tears the subscription down on
// disconnect
func (s *Server) readPump(conn *websocket.Conn, unsubscribe func(), userID string) {
	defer func() {
		unsubscribe()
		conn.Close()
	}()

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				s.logger.Debug("WebSocket closed unexpectedly",
					zap.Error(err), zap.String("user_id", userID))
			}
			return
		}
	}
}
