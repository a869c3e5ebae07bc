package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

type envelope struct {
	Name    string      `json:"event"`
	Payload interface{} `json:"payload"`
	At      time.Time   `json:"at"`
}

// AdminHub keeps websocket connections of back-office admins and pushes
// verification events to all of them.
type AdminHub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu    sync.RWMutex
	conns map[string]*websocket.Conn
	locks map[string]*sync.Mutex
}

// NewAdminHub constructs the hub.
func NewAdminHub(logger *slog.Logger) *AdminHub {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminHub{
		logger: logger.With("component", "admin_hub"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		conns: make(map[string]*websocket.Conn),
		locks: make(map[string]*sync.Mutex),
	}
}

// ServeWS upgrades the request. The admin id is read from the X-Admin-Id
// header, which the authenticated route sets from the caller's token.
func (h *AdminHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.Header.Get("X-Admin-Id"))
	if id == "" {
		http.Error(w, "missing admin id", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws upgrade failed", "admin_id", id, "error", err)
		return
	}

	h.mu.Lock()
	if old, ok := h.conns[id]; ok {
		_ = old.Close()
	}
	h.conns[id] = conn
	if _, ok := h.locks[id]; !ok {
		h.locks[id] = &sync.Mutex{}
	}
	h.mu.Unlock()

	h.logger.Info("admin connected", "admin_id", id)
	go h.pingLoop(id, conn)
	go h.readLoop(id, conn)
}

// Connected returns the number of live connections.
func (h *AdminHub) Connected() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *AdminHub) pingLoop(id string, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for range ticker.C {
		h.mu.RLock()
		alive := h.conns[id] == conn
		h.mu.RUnlock()
		if !alive {
			return
		}
		h.safeWrite(id, func(c *websocket.Conn) error {
			return c.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
		})
	}
}

func (h *AdminHub) readLoop(id string, conn *websocket.Conn) {
	defer h.closeConn(id, conn)

	conn.SetReadLimit(4 << 10)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		mt, message, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		if mt == websocket.TextMessage && strings.EqualFold(strings.TrimSpace(string(message)), "ping") {
			h.safeWrite(id, func(c *websocket.Conn) error {
				return c.WriteMessage(websocket.TextMessage, []byte("pong"))
			})
		}
	}
}

func (h *AdminHub) closeConn(id string, conn *websocket.Conn) {
	_ = conn.Close()
	h.mu.Lock()
	if current, ok := h.conns[id]; ok && current == conn {
		delete(h.conns, id)
		delete(h.locks, id)
		h.logger.Info("admin disconnected", "admin_id", id)
	}
	h.mu.Unlock()
}

func (h *AdminHub) safeWrite(id string, fn func(*websocket.Conn) error) {
	h.mu.RLock()
	conn := h.conns[id]
	mu := h.locks[id]
	h.mu.RUnlock()
	if conn == nil || mu == nil {
		return
	}

	mu.Lock()
	defer mu.Unlock()

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := fn(conn); err != nil {
		h.logger.Warn("ws write failed", "admin_id", id, "error", err)
		h.closeConn(id, conn)
	}
}

// BroadcastRaw writes data to every connected admin.
func (h *AdminHub) BroadcastRaw(data []byte) {
	h.mu.RLock()
	ids := make([]string, 0, len(h.conns))
	for id := range h.conns {
		ids = append(ids, id)
	}
	h.mu.RUnlock()
	for _, id := range ids {
		h.safeWrite(id, func(conn *websocket.Conn) error {
			return conn.WriteMessage(websocket.TextMessage, data)
		})
	}
}

// Emit broadcasts an event envelope to every connected admin.
func (h *AdminHub) Emit(_ context.Context, name string, payload interface{}) error {
	data, err := json.Marshal(envelope{Name: name, Payload: payload, At: time.Now().UTC()})
	if err != nil {
		return err
	}
	h.BroadcastRaw(data)
	return nil
}

// Relay forwards every message published on channel to connected admins
// until ctx is done.
func (h *AdminHub) Relay(ctx context.Context, rdb *redis.Client, channel string) {
	sub := rdb.Subscribe(ctx, channel)
	defer sub.Close()
	ch := sub.Channel()
	h.logger.Info("relaying events", "channel", channel)
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.BroadcastRaw([]byte(msg.Payload))
		}
	}
}
