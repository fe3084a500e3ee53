package websocket

import (
	"context"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jtchitty/legatoDataHub/internal/metrics"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// pongWait is the time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second
	// pingPeriod must stay below pongWait so the peer never times us out.
	pingPeriod = (pongWait * 9) / 10
	// maxMessageSize bounds a single inbound message.
	maxMessageSize = 4 * 1024
	// sendBuffer is the depth of a client's outbound queue; a slow consumer
	// that falls behind by this many samples is dropped rather than let the
	// push engine's synchronous fan-out block on it.
	sendBuffer = 256
)

// Client is one subscriber connection: a push-handler registration on a
// single resource path delivered over a WebSocket, split into the usual
// ReadPump/WritePump pair.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub
	log  *slog.Logger

	id   string
	path string

	ctx    context.Context
	cancel context.CancelFunc

	cleanupFn func()
}

// newClient wraps conn as a tracked subscriber. cleanup runs exactly once,
// when the connection is torn down, and is responsible for removing the
// client's push-handler registration from the Data Hub.
func newClient(parent context.Context, hub *Hub, conn *websocket.Conn, id, path string, log *slog.Logger, cleanup func()) *Client {
	ctx, cancel := context.WithCancel(parent)
	return &Client{
		conn:      conn,
		send:      make(chan []byte, sendBuffer),
		hub:       hub,
		log:       log,
		id:        id,
		path:      path,
		ctx:       ctx,
		cancel:    cancel,
		cleanupFn: cleanup,
	}
}

func (c *Client) cleanup() {
	c.cancel()
	if c.cleanupFn != nil {
		c.cleanupFn()
	}
}

// enqueue attempts a non-blocking send of a pushed sample's encoding;
// a full queue means the client is too slow and its connection is dropped,
// never the push engine's synchronous delivery. The drop happens
// on a separate goroutine: enqueue runs inside the push fan-out, which
// already holds the hub's operation lock, and Unregister's cleanup removes
// the client's handler registration through that same lock.
func (c *Client) enqueue(payload []byte) {
	select {
	case c.send <- payload:
	default:
		c.log.Warn("websocket client send buffer full, dropping connection", "client_id", c.id, "path", c.path)
		go c.hub.Unregister(c)
	}
}

// ReadPump discards inbound frames (this transport is push-only) but keeps
// the read deadline alive so a dead peer is detected via its missed pongs.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Debug("websocket read error", "client_id", c.id, "error", err)
			}
			return
		}
	}
}

// WritePump drains c.send to the connection and keeps it alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.ctx.Done():
			return
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
			metrics.WebSocketMessagesSentTotal.Inc()
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
