// Package broadcaster implements the status_change WebSocket fan-out (spec
// §4.9): devices and alerts flowing through the scheduler's OnTransition
// hook and the alert engine are coalesced into short windows and pushed to
// every connected client, rather than requiring clients to poll.
package broadcaster

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/fleetwatch/monitor/internal/domain/device"
	"github.com/fleetwatch/monitor/internal/platform/logger"
	"github.com/fleetwatch/monitor/internal/platform/metrics"
	"github.com/fleetwatch/monitor/internal/platform/ratelimit"
)

// Config controls heartbeat cadence and handshake throttling.
type Config struct {
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
	HandshakesPerMin  int
	CoalesceWindow    time.Duration
}

func (c Config) withDefaults() Config {
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 30 * time.Second
	}
	if c.HeartbeatTimeout <= 0 {
		c.HeartbeatTimeout = 60 * time.Second
	}
	if c.HandshakesPerMin <= 0 {
		c.HandshakesPerMin = 60
	}
	if c.CoalesceWindow <= 0 {
		c.CoalesceWindow = time.Second
	}
	return c
}

// Event is one coalesced update pushed to every connected client.
type Event struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// Hub tracks connected clients and coalesces events within a short window
// before fanning them out, so a burst of transitions (e.g. a branch-wide
// outage) produces one batched message per window instead of one per
// device.
type Hub struct {
	cfg      Config
	upgrade  websocket.Upgrader
	limiter  *ratelimit.Limiter
	metrics  *metrics.Metrics
	log      *logger.Logger
	registry device.Registry

	mu      sync.Mutex
	clients map[*client]struct{}

	pending        []Event
	pendingChanges map[uuid.UUID]*statusChangeItem
	changeOrder    []uuid.UUID
	pendingMu      sync.Mutex
	flush          *time.Timer
}

// New constructs a Hub. registry resolves a transition's device id to the
// ip/hostname the status_change wire contract carries (spec §4.9); it may
// be nil in tests that only exercise alert events. Call Run in its own
// goroutine before ServeHTTP starts receiving connections.
func New(cfg Config, registry device.Registry, m *metrics.Metrics, log *logger.Logger) *Hub {
	cfg = cfg.withDefaults()
	h := &Hub{
		cfg:            cfg,
		upgrade:        websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 4096, CheckOrigin: func(*http.Request) bool { return true }},
		limiter:        ratelimit.New(cfg.HandshakesPerMin),
		metrics:        m,
		log:            log,
		registry:       registry,
		clients:        make(map[*client]struct{}),
		pendingChanges: make(map[uuid.UUID]*statusChangeItem),
	}
	return h
}

// Publish queues a non-transition event (alert_fired/alert_resolved) for
// delivery within the next coalescing window.
func (h *Hub) Publish(eventType string, payload interface{}) {
	h.pendingMu.Lock()
	defer h.pendingMu.Unlock()
	h.pending = append(h.pending, Event{Type: eventType, Payload: payload, Timestamp: time.Now().UTC()})
	h.scheduleFlushLocked()
}

// queueChange merges item into the pending status_change set: multiple
// transitions for the same device within the coalescing window collapse to
// the most recent (spec §4.9 "may be merged into the final state").
func (h *Hub) queueChange(item statusChangeItem) {
	h.pendingMu.Lock()
	defer h.pendingMu.Unlock()
	if existing, ok := h.pendingChanges[item.DeviceID]; ok {
		*existing = item
	} else {
		cp := item
		h.pendingChanges[item.DeviceID] = &cp
		h.changeOrder = append(h.changeOrder, item.DeviceID)
	}
	h.scheduleFlushLocked()
}

func (h *Hub) scheduleFlushLocked() {
	if h.flush == nil {
		h.flush = time.AfterFunc(h.cfg.CoalesceWindow, h.flushPending)
	}
}

func (h *Hub) flushPending() {
	h.pendingMu.Lock()
	batch := h.pending
	h.pending = nil
	order := h.changeOrder
	changes := h.pendingChanges
	h.changeOrder = nil
	h.pendingChanges = make(map[uuid.UUID]*statusChangeItem)
	h.flush = nil
	h.pendingMu.Unlock()

	if len(order) > 0 {
		items := make([]statusChangeItem, 0, len(order))
		for _, id := range order {
			items = append(items, *changes[id])
		}
		// Wire shape is exactly {type, changes} (spec §4.9) — no generic
		// Event wrapper, since status_change is the contract clients parse.
		h.broadcast(statusChangeMessage{Type: "status_change", Changes: items})
	}
	if len(batch) > 0 {
		h.broadcast(Event{Type: "batch", Payload: batch, Timestamp: time.Now().UTC()})
	}
}

func (h *Hub) broadcast(evt interface{}) {
	body, err := json.Marshal(evt)
	if err != nil {
		h.log.With("error", err).Warn("broadcaster: failed to marshal event")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- body:
		default:
			// Slow consumer: drop the connection rather than block the
			// whole hub on one client's backlog.
			h.removeLocked(c)
		}
	}
}

// ServeHTTP upgrades the connection after handshake rate limiting admits
// it, then registers the client and starts its read/write pumps.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)
	if !h.limiter.Allow(ip) {
		http.Error(w, "too many connection attempts", http.StatusTooManyRequests)
		return
	}

	conn, err := h.upgrade.Upgrade(w, r, nil)
	if err != nil {
		h.log.With("error", err).Debug("broadcaster: upgrade failed")
		return
	}

	c := &client{hub: h, conn: conn, send: make(chan []byte, 32)}
	h.add(c)
	if h.metrics != nil {
		h.metrics.WSConnections.Inc()
	}

	go c.writePump()
	go c.readPump()
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	c.conn.Close()
	if h.metrics != nil {
		h.metrics.WSConnections.Dec()
	}
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	return r.RemoteAddr
}
