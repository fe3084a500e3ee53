// Package session implements the per-session namespace cache: on first
// use, a session's app name is resolved and /app/<app-name> is ensured to
// exist and memoised, so every later call from that session resolves its
// relative paths under that entry without repeating the identity lookup.
package session

import (
	"sync"

	"github.com/jtchitty/legatoDataHub/internal/identity"
	"github.com/jtchitty/legatoDataHub/internal/ipcerr"
	"github.com/jtchitty/legatoDataHub/internal/tree"
)

// Cache memoises the namespace entry for each active session.
type Cache struct {
	mu       sync.Mutex
	tr       *tree.Tree
	resolver identity.Resolver
	entries  map[string]*tree.Entry
}

// NewCache creates a namespace cache backed by tr and resolver.
func NewCache(tr *tree.Tree, resolver identity.Resolver) *Cache {
	return &Cache{tr: tr, resolver: resolver, entries: make(map[string]*tree.Entry)}
}

// Namespace returns sessionID's /app/<app-name> entry, resolving and
// creating it on first use. Returns ipcerr.KillClient if the identity
// service rejects the session.
func (c *Cache) Namespace(sessionID string) (*tree.Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[sessionID]; ok {
		return e, nil
	}

	appName, err := c.resolver.AppName(sessionID)
	if err != nil {
		return nil, ipcerr.Kill("identity service rejected session: " + err.Error())
	}

	entry, err := c.tr.GetOrCreate(c.tr.Root(), "app/"+appName)
	if err != nil {
		return nil, ipcerr.Kill(err.Error())
	}
	c.entries[sessionID] = entry
	return entry, nil
}

// Has reports whether sessionID already has a memoised namespace entry,
// i.e. whether Namespace has previously succeeded for it and Close hasn't
// since been called.
func (c *Cache) Has(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[sessionID]
	return ok
}

// Close invalidates the memoised namespace for sessionID on session close.
func (c *Cache) Close(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, sessionID)
}
