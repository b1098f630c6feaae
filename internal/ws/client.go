package ws

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/kiwari-pos/floorops/internal/auth"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10 // must be less than pongWait

	// Subscribers send nothing but control frames.
	maxMessageSize = 512

	// Events buffered per subscriber before the hub drops it.
	sendBuffer = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // sessions are checked against the JWT, not the origin
	},
}

// Client is one subscriber connection bound to a single tenant.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	tenantID uuid.UUID
	send     chan []byte
}

// readPump discards inbound frames. Floor and kitchen screens only listen,
// so reads exist to service pongs and notice disconnects.
func (c *Client) readPump() {
	defer func() {
		c.hub.leave(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.WithError(err).WithField("tenant_id", c.tenantID).Warn("websocket read error")
			}
			return
		}
	}
}

// writePump writes each event as its own text frame so subscribers can
// decode one JSON document per message.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.hub.log.WithError(err).WithField("tenant_id", c.tenantID).Debug("websocket write failed")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// bearerToken reads the session token from the query string, falling back to
// the Authorization header for non-browser subscribers.
func bearerToken(r *http.Request) string {
	if tok := r.URL.Query().Get("token"); tok != "" {
		return tok
	}
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return h[7:]
	}
	return ""
}

// Handler serves WebSocket subscriptions to a tenant's domain events.
// Endpoint: WS /ws/restaurants/{rid}/events?token=JWT
func Handler(hub *Hub, jwtSecret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenStr := bearerToken(r)
		if tokenStr == "" {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}

		claims, err := auth.ValidateToken(jwtSecret, tokenStr)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		tenantID, err := uuid.Parse(chi.URLParam(r, "rid"))
		if err != nil {
			http.Error(w, "invalid restaurant id", http.StatusBadRequest)
			return
		}
		if claims.TenantID != tenantID {
			http.Error(w, "restaurant access denied", http.StatusForbidden)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			hub.log.WithError(err).Warn("websocket upgrade failed")
			return
		}

		client := &Client{
			hub:      hub,
			conn:     conn,
			tenantID: tenantID,
			send:     make(chan []byte, sendBuffer),
		}
		if !hub.join(client) {
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			conn.Close()
			return
		}
		hub.log.WithFields(logrus.Fields{
			"tenant_id": tenantID,
			"user_id":   claims.UserID,
			"role":      claims.Role,
		}).Debug("websocket subscriber connected")

		go client.writePump()
		go client.readPump()
	}
}
