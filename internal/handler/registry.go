// Package handler implements the handler registry: it binds client
// callbacks to resources, issuing opaque references that can be removed
// safely even after the underlying resource has been deleted or the slot
// reused, and bulk-removes every handler owned by a session when that
// session ends.
package handler

import (
	"sync"
	"sync/atomic"

	"github.com/jtchitty/legatoDataHub/internal/sample"
	"github.com/jtchitty/legatoDataHub/internal/tree"
)

// Ref is an opaque handle returned by Add and consumed by Remove. Its
// numeric value carries no meaning to callers.
type Ref uint64

type location struct {
	entry      *tree.Entry
	slot       int
	generation uint32
	sessionID  string
}

// Registry tracks the mapping from opaque Ref to (entry, slot, generation)
// and indexes refs by owning session so a session's handlers can all be
// removed in one pass when it closes.
type Registry struct {
	mu        sync.Mutex
	nextRef   uint64
	locations map[Ref]location
	bySession map[string]map[Ref]struct{}
}

// New creates an empty handler registry.
func New() *Registry {
	return &Registry{
		locations: make(map[Ref]location),
		bySession: make(map[string]map[Ref]struct{}),
	}
}

// Add registers a callback on entry for samples of dataType, under
// sessionID, and returns the opaque ref used to remove it later. Handlers on
// the same resource are delivered in slot order (see
// tree.Entry.HandlersInOrder): registration order, except that a handler
// that reuses a freed slot takes that slot's position.
func (r *Registry) Add(entry *tree.Entry, dataType sample.Type, sessionID string, ctx any, deliver func(sample.Sample)) Ref {
	slot, gen := entry.AddHandlerSlot(tree.HandlerRecord{
		SessionID: sessionID,
		DataType:  dataType,
		Context:   ctx,
		Deliver:   deliver,
	})

	ref := Ref(atomic.AddUint64(&r.nextRef, 1))

	r.mu.Lock()
	defer r.mu.Unlock()
	r.locations[ref] = location{entry: entry, slot: slot, generation: gen, sessionID: sessionID}
	if r.bySession[sessionID] == nil {
		r.bySession[sessionID] = make(map[Ref]struct{})
	}
	r.bySession[sessionID][ref] = struct{}{}
	return ref
}

// Remove frees the handler identified by ref, reporting whether it was still
// registered. Removing an unknown or already-removed ref is a silent no-op.
func (r *Registry) Remove(ref Ref) bool {
	r.mu.Lock()
	loc, ok := r.locations[ref]
	if !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.locations, ref)
	if set := r.bySession[loc.sessionID]; set != nil {
		delete(set, ref)
		if len(set) == 0 {
			delete(r.bySession, loc.sessionID)
		}
	}
	r.mu.Unlock()

	loc.entry.RemoveHandlerSlot(loc.slot, loc.generation)
	return true
}

// RemoveAllForSession frees every handler registered by sessionID, wherever
// in the tree it was registered, and reports how many were removed.
func (r *Registry) RemoveAllForSession(sessionID string) int {
	r.mu.Lock()
	set := r.bySession[sessionID]
	delete(r.bySession, sessionID)
	refs := make([]Ref, 0, len(set))
	locs := make([]location, 0, len(set))
	for ref := range set {
		loc := r.locations[ref]
		delete(r.locations, ref)
		refs = append(refs, ref)
		locs = append(locs, loc)
	}
	r.mu.Unlock()

	for _, loc := range locs {
		loc.entry.RemoveHandlerSlot(loc.slot, loc.generation)
	}
	return len(locs)
}

// Count returns the number of live handlers tracked for sessionID (test /
// diagnostic helper).
func (r *Registry) Count(sessionID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bySession[sessionID])
}
