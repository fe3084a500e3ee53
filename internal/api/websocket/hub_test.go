package websocket

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHub_RegisterUnregister_TracksCount(t *testing.T) {
	h := NewHub(context.Background())
	assert.Equal(t, 0, h.Count())

	cleaned := false
	c := &Client{send: make(chan []byte, 1), cleanupFn: func() { cleaned = true }}
	c.ctx, c.cancel = context.WithCancel(context.Background())

	h.Register(c)
	assert.Equal(t, 1, h.Count())

	h.Unregister(c)
	assert.Equal(t, 0, h.Count())
	assert.True(t, cleaned)

	// Unregistering an already-removed client is a no-op, not a double-close.
	assert.NotPanics(t, func() { h.Unregister(c) })
}

func TestHub_Stop_CleansUpAllClients(t *testing.T) {
	h := NewHub(context.Background())
	var cleanedCount int
	for i := 0; i < 3; i++ {
		c := &Client{send: make(chan []byte, 1), cleanupFn: func() { cleanedCount++ }}
		c.ctx, c.cancel = context.WithCancel(context.Background())
		h.Register(c)
	}
	assert.Equal(t, 3, h.Count())

	h.Stop()
	assert.Equal(t, 3, cleanedCount)

	select {
	case <-h.Done():
	default:
		t.Fatal("expected hub context to be cancelled after Stop")
	}
}
