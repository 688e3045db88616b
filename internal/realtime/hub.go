// Package realtime pushes appointment events to connected websocket clients.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wolfman30/homevisit-scheduler/internal/events"
	httpmiddleware "github.com/wolfman30/homevisit-scheduler/internal/http/middleware"
	"github.com/wolfman30/homevisit-scheduler/internal/identity"
	"github.com/wolfman30/homevisit-scheduler/pkg/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 16
)

type client struct {
	conn   *websocket.Conn
	send   chan []byte
	userID int64
	role   identity.Role
}

// Hub tracks websocket connections by user. A user may hold several.
type Hub struct {
	mu       sync.RWMutex
	byUser   map[int64]map[*client]struct{}
	admins   map[*client]struct{}
	upgrader websocket.Upgrader
	logger   *logging.Logger
}

func NewHub(logger *logging.Logger) *Hub {
	if logger == nil {
		logger = logging.Default()
	}
	return &Hub{
		byUser: make(map[int64]map[*client]struct{}),
		admins: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// ServeWS upgrades an authenticated request and streams events until the
// client goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	principal, ok := httpmiddleware.PrincipalFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("realtime: upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer), userID: principal.UserID, role: principal.Role}
	h.register(c)
	h.logger.Info("realtime: client connected", "user_id", c.userID, "role", c.role)

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.role == identity.RoleAdmin {
		h.admins[c] = struct{}{}
		return
	}
	set, ok := h.byUser[c.userID]
	if !ok {
		set = make(map[*client]struct{})
		h.byUser[c.userID] = set
	}
	set[c] = struct{}{}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.admins[c]; ok {
		delete(h.admins, c)
		close(c.send)
		return
	}
	set, ok := h.byUser[c.userID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.byUser, c.userID)
	}
}

// readPump drains client frames so pongs and close frames are processed.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		_ = c.conn.Close()
		h.logger.Info("realtime: client disconnected", "user_id", c.userID)
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Publish sends the event to the patient, the professional and every
// admin connection. Slow clients drop the message instead of blocking.
func (h *Hub) Publish(_ context.Context, evt events.AppointmentEventV1) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("realtime: marshal event: %w", err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	targets := make([]*client, 0, len(h.admins)+2)
	for _, id := range []int64{evt.PatientID, evt.ProfessionalID} {
		for c := range h.byUser[id] {
			targets = append(targets, c)
		}
	}
	for c := range h.admins {
		targets = append(targets, c)
	}
	for _, c := range targets {
		select {
		case c.send <- payload:
		default:
			h.logger.Warn("realtime: dropping event for slow client", "user_id", c.userID, "event_id", evt.EventID)
		}
	}
	return nil
}

// Connections counts open connections.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := len(h.admins)
	for _, set := range h.byUser {
		n += len(set)
	}
	return n
}

var _ events.Publisher = (*Hub)(nil)
