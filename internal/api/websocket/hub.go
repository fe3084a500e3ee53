// Package websocket delivers pushed samples to consumer applications over
// a persistent connection: a Hub tracking live Client connections, a
// register/unregister lifecycle, and per-client read/write pumps.
// Deliveries are routed per-subscription rather than broadcast: each
// Client owns one handler.Ref registered against a single resource path,
// so a sample reaches only the clients that asked for it.
package websocket

import (
	"context"
	"sync"

	"github.com/jtchitty/legatoDataHub/internal/metrics"
)

// Hub tracks the set of live WebSocket connections for metrics and for an
// orderly shutdown; message delivery itself happens directly from the push
// engine's handler callback into a Client's send channel.
type Hub struct {
	mu      sync.Mutex
	clients map[*Client]struct{}

	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub creates a WebSocket connection hub bound to parent's lifetime.
func NewHub(parent context.Context) *Hub {
	ctx, cancel := context.WithCancel(parent)
	return &Hub{clients: make(map[*Client]struct{}), ctx: ctx, cancel: cancel}
}

// Register adds c to the live set and updates the connection gauge.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	metrics.WebSocketConnectionsActive.Set(float64(len(h.clients)))
}

// Unregister removes c from the live set, runs its cleanup (removing its
// push-handler registration from the Data Hub) and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	metrics.WebSocketConnectionsActive.Set(float64(len(h.clients)))
	c.cleanup()
	close(c.send)
}

// Stop tears down every live connection, e.g. during graceful process
// shutdown, so no handler registration outlives the transport.
func (h *Hub) Stop() {
	h.cancel()
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.cleanup()
		close(c.send)
		delete(h.clients, c)
	}
}

// Count returns the number of live connections (test/diagnostic helper).
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Done returns the hub's shutdown context, closed once Stop is called.
func (h *Hub) Done() <-chan struct{} { return h.ctx.Done() }
