// Package websocket serves the canvas protocol to browsers over gorilla
// WebSocket connections, and to API Gateway WebSocket clients.
package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/panel-extensions/panel-reactflow/domain/messages"
	"github.com/panel-extensions/panel-reactflow/domain/store"
)

// outbound is an encoded message for one client, or for all when target is nil.
type outbound struct {
	target *Client
	data   []byte
}

// Hub fans graph messages out to the connected canvases of one graph. It
// implements store.Sender so a Flow can push into it directly.
type Hub struct {
	graphID string

	mu      sync.RWMutex
	clients map[*Client]struct{}

	queue  chan outbound
	logger *zap.Logger

	metrics HubMetrics
}

// HubMetrics counts hub activity.
type HubMetrics struct {
	ActiveConnections atomic.Int64
	MessagesSent      atomic.Int64
	MessagesDropped   atomic.Int64
}

// HubStats is a point-in-time copy of HubMetrics.
type HubStats struct {
	ActiveConnections int64 `json:"activeConnections"`
	MessagesSent      int64 `json:"messagesSent"`
	MessagesDropped   int64 `json:"messagesDropped"`
}

var _ store.Sender = (*Hub)(nil)

func NewHub(graphID string, logger *zap.Logger) *Hub {
	return &Hub{
		graphID: graphID,
		clients: make(map[*Client]struct{}),
		queue:   make(chan outbound, 1024),
		logger:  logger.With(zap.String("graph_id", graphID)),
	}
}

// Run delivers queued messages until ctx is done, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case out := <-h.queue:
			h.deliver(out)
		}
	}
}

// Send broadcasts msg to every client. It never blocks; when the queue is
// full the message is dropped and the next state push resynchronizes.
func (h *Hub) Send(msg messages.Message) {
	h.enqueue(nil, msg)
}

// SendTo queues msg for one client.
func (h *Hub) SendTo(c *Client, msg messages.Message) {
	h.enqueue(c, msg)
}

func (h *Hub) enqueue(target *Client, msg messages.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to marshal message", zap.Error(err), zap.String("type", msg.Type()))
		return
	}
	select {
	case h.queue <- outbound{target: target, data: data}:
	default:
		h.metrics.MessagesDropped.Add(1)
		h.logger.Warn("Hub queue full, dropping message", zap.String("type", msg.Type()))
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.metrics.ActiveConnections.Add(1)
	h.logger.Info("Client registered",
		zap.String("connectionID", c.id),
		zap.String("userID", c.userID),
	)
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if !ok {
		return
	}
	c.closeSend()
	h.metrics.ActiveConnections.Add(-1)
	h.logger.Info("Client unregistered", zap.String("connectionID", c.id))
}

func (h *Hub) deliver(out outbound) {
	var slow []*Client
	h.mu.RLock()
	if out.target != nil {
		if _, ok := h.clients[out.target]; ok && !out.target.offer(out.data) {
			slow = append(slow, out.target)
		}
	} else {
		for c := range h.clients {
			if !c.offer(out.data) {
				slow = append(slow, c)
			}
		}
	}
	h.mu.RUnlock()

	if n := len(slow); n > 0 {
		h.metrics.MessagesDropped.Add(int64(n))
	}
	for _, c := range slow {
		h.logger.Warn("Closing slow client", zap.String("connectionID", c.id))
		h.unregister(c)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*Client]struct{})
	h.mu.Unlock()
	for c := range clients {
		c.closeSend()
	}
	h.metrics.ActiveConnections.Store(0)
	h.logger.Info("All connections closed")
}

// Stats returns current counters.
func (h *Hub) Stats() HubStats {
	return HubStats{
		ActiveConnections: h.metrics.ActiveConnections.Load(),
		MessagesSent:      h.metrics.MessagesSent.Load(),
		MessagesDropped:   h.metrics.MessagesDropped.Load(),
	}
}

// ConnectionCount returns the number of registered clients.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
