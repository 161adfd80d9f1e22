// Package snapshot publishes point-in-time views of the estimator state
// for visualization: a non-blocking broadcast channel and a WebSocket
// fan-out to connected clients.
package snapshot

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/asgard/huginn/internal/slamstate"
)

// Snapshot is a point-in-time, read-only view of the estimator,
// carrying the ground-truth pose alongside the estimate for visualization.
type Snapshot struct {
	Timestamp time.Time                `json:"timestamp"`
	Pose      [3]float64               `json:"pose"` // x, y, theta
	Landmarks []slamstate.LandmarkInfo `json:"landmarks"`
	RealPoseX float64                  `json:"real_pose_x"`
	RealPoseY float64                  `json:"real_pose_y"`
}

// Sink receives snapshots. TryPublish must not block: a sink that cannot
// accept a snapshot immediately drops it rather than stalling the
// estimator: the estimator never stalls on the visualizer.
type Sink interface {
	TryPublish(s Snapshot) bool
}

// ChannelSink is a non-blocking, bounded-buffer Sink backed by a Go
// channel, for in-process consumers.
type ChannelSink struct {
	ch chan Snapshot
}

// NewChannelSink returns a ChannelSink with the given buffer capacity.
func NewChannelSink(capacity int) *ChannelSink {
	return &ChannelSink{ch: make(chan Snapshot, capacity)}
}

// TryPublish attempts a non-blocking send; it drops the oldest buffered
// snapshot to make room rather than dropping the newest, since the
// newest is the more useful one to a visualizer.
func (c *ChannelSink) TryPublish(s Snapshot) bool {
	select {
	case c.ch <- s:
		return true
	default:
		select {
		case <-c.ch:
		default:
		}
		select {
		case c.ch <- s:
			return true
		default:
			return false
		}
	}
}

// Snapshots exposes the receive side for consumers that want to drain
// the channel directly.
func (c *ChannelSink) Snapshots() <-chan Snapshot {
	return c.ch
}

// WebSocketSink broadcasts snapshots to connected WebSocket clients.
type WebSocketSink struct {
	mu        sync.RWMutex
	clients   map[*wsClient]bool
	broadcast chan Snapshot
	upgrader  websocket.Upgrader
	logger    *logrus.Logger

	published uint64
	dropped   uint64
}

type wsClient struct {
	conn *websocket.Conn
	send chan Snapshot
}

// NewWebSocketSink builds a WebSocketSink with the given broadcast
// buffer capacity.
func NewWebSocketSink(capacity int, logger *logrus.Logger) *WebSocketSink {
	if logger == nil {
		logger = logrus.New()
	}
	return &WebSocketSink{
		clients:   make(map[*wsClient]bool),
		broadcast: make(chan Snapshot, capacity),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// TryPublish attempts a non-blocking send onto the internal broadcast
// channel, dropping the oldest buffered snapshot to make room.
func (w *WebSocketSink) TryPublish(s Snapshot) bool {
	select {
	case w.broadcast <- s:
		w.published++
		return true
	default:
		select {
		case <-w.broadcast:
			w.dropped++
		default:
		}
		select {
		case w.broadcast <- s:
			w.published++
			return true
		default:
			w.dropped++
			return false
		}
	}
}

// Run drains the broadcast channel and fans snapshots out to clients
// until ctx is canceled.
func (w *WebSocketSink) Run(ctx context.Context) error {
	w.logger.Info("snapshot websocket sink started")
	for {
		select {
		case <-ctx.Done():
			w.closeAll()
			return ctx.Err()
		case s := <-w.broadcast:
			w.fanOut(s)
		}
	}
}

func (w *WebSocketSink) fanOut(s Snapshot) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for c := range w.clients {
		select {
		case c.send <- s:
		default:
			// Client buffer full, skip this snapshot for this client.
		}
	}
}

// HandleWebSocket upgrades an HTTP request to a WebSocket connection and
// registers the client for snapshot delivery.
func (w *WebSocketSink) HandleWebSocket(rw http.ResponseWriter, r *http.Request) {
	conn, err := w.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		w.logger.WithError(err).Error("failed to upgrade websocket")
		return
	}

	client := &wsClient{conn: conn, send: make(chan Snapshot, 16)}
	w.mu.Lock()
	w.clients[client] = true
	w.mu.Unlock()

	go w.writePump(client)
}

func (w *WebSocketSink) writePump(c *wsClient) {
	defer func() {
		w.mu.Lock()
		delete(w.clients, c)
		w.mu.Unlock()
		c.conn.Close()
	}()

	for s := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		data, err := json.Marshal(s)
		if err != nil {
			continue
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}

func (w *WebSocketSink) closeAll() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for c := range w.clients {
		close(c.send)
		delete(w.clients, c)
	}
}
