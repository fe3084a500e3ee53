package tree

import (
	"github.com/jtchitty/legatoDataHub/internal/sample"
)

// Kind is the role an Entry plays in the tree. Kind transitions are
// restricted to namespace -> placeholder and placeholder/namespace ->
// input|output|observation. The one way back is DegradeToPlaceholder, which
// turns a deleted Input or Output that still has observations bound to it
// into a placeholder; Observations never change kind.
type Kind int

const (
	KindNamespace Kind = iota
	KindPlaceholder
	KindInput
	KindOutput
	KindObservation
)

func (k Kind) String() string {
	switch k {
	case KindNamespace:
		return "namespace"
	case KindPlaceholder:
		return "placeholder"
	case KindInput:
		return "input"
	case KindOutput:
		return "output"
	case KindObservation:
		return "observation"
	default:
		return "unknown"
	}
}

// HandlerRecord is one registered push-callback binding for a resource.
type HandlerRecord struct {
	SessionID string
	DataType  sample.Type
	Context   any
	Deliver   func(s sample.Sample)
}

// handlerSlot is one entry of a resource's generation-indexed handler slot
// table. Slots are never compacted or reordered, so a (slot, generation)
// pair issued by AddHandlerSlot either still refers to the same registration
// or -- once freed and possibly reused -- safely fails to match.
type handlerSlot struct {
	generation uint32
	occupied   bool
	rec        HandlerRecord
}

// Entry is a node in the resource tree. Namespace entries use only name,
// parent and children; the resource fields below are meaningful once Kind
// is one of Input/Output/Observation/Placeholder.
type Entry struct {
	name     string
	parent   *Entry
	children map[string]*Entry
	kind     Kind

	dataType   sample.Type
	units      string
	current    *sample.Sample
	hasDefault bool
	defaultVal sample.Sample
	isOptional bool

	handlerSlots []handlerSlot

	// observation-only state; nil unless kind == KindObservation.
	obsState any

	// boundObservations lists the Observation entries bound to this entry
	// as their source. Observations live under /obs/ as their own tree
	// entries and are bound to a source by reference, not nested under it.
	// Populated on whichever entry is the source; consulted by the push
	// engine to recurse into downstream observations.
	boundObservations []*Entry

	// ownerSession is the session that created this resource; producer-owned
	// resources are reclaimed when that session ends.
	ownerSession string
}

func (e *Entry) Name() string   { return e.name }
func (e *Entry) Parent() *Entry { return e.parent }
func (e *Entry) Kind() Kind     { return e.kind }
func (e *Entry) DataType() sample.Type { return e.dataType }
func (e *Entry) Units() string  { return e.units }
func (e *Entry) IsOptional() bool { return e.isOptional }
func (e *Entry) OwnerSession() string { return e.ownerSession }

// IsResource reports whether the entry occupies a leaf resource role
// (Input, Output or Observation); namespaces and placeholders are not
// leaves, and GetOrCreate walks through either of them.
func (e *Entry) IsResource() bool {
	return e.kind == KindInput || e.kind == KindOutput || e.kind == KindObservation
}

// Path returns the absolute, slash-joined path to this entry from the root.
func (e *Entry) Path() string {
	if e.parent == nil {
		return "/"
	}
	segs := []string{}
	for cur := e; cur.parent != nil; cur = cur.parent {
		segs = append([]string{cur.name}, segs...)
	}
	out := "/"
	for i, s := range segs {
		if i > 0 {
			out += "/"
		}
		out += s
	}
	return out
}

// Children returns a snapshot slice of this entry's children.
func (e *Entry) Children() []*Entry {
	out := make([]*Entry, 0, len(e.children))
	for _, c := range e.children {
		out = append(out, c)
	}
	return out
}

// ChildByName looks up an immediate child.
func (e *Entry) ChildByName(name string) (*Entry, bool) {
	c, ok := e.children[name]
	return c, ok
}

// SetRole transitions a namespace or placeholder entry in place into an
// Input, Output or Observation with the given type and units, preserving any
// accumulated handler list and default value. Upgrading in place keeps
// existing child and handler references valid: the kind changes but the
// entry never moves.
func (e *Entry) SetRole(kind Kind, dataType sample.Type, units, ownerSession string) {
	e.kind = kind
	e.dataType = dataType
	e.units = units
	e.ownerSession = ownerSession
}

// BecomePlaceholder marks a childless namespace entry as a placeholder:
// the state consumer-side activity (handler registration, route
// declaration) creates before the producer has made the corresponding
// input or output. Grouping namespaces with children and entries that
// already hold a resource role are left alone.
func (e *Entry) BecomePlaceholder() {
	if e.kind == KindNamespace && len(e.children) == 0 {
		e.kind = KindPlaceholder
	}
}

// DegradeToPlaceholder turns a deleted Input/Output that still has
// observations bound to it back into a placeholder, preserving its
// handler list.
func (e *Entry) DegradeToPlaceholder() {
	e.kind = KindPlaceholder
	e.current = nil
	e.isOptional = false
	e.ownerSession = ""
}

// MarkOptional marks an Output as not required for "healthy" status.
// Idempotent.
func (e *Entry) MarkOptional() { e.isOptional = true }

// SetDefault records the resource's default value the first time it is
// called; subsequent calls are ignored, the first default wins. Returns
// false if this call was ignored.
func (e *Entry) SetDefault(s sample.Sample) bool {
	if e.hasDefault {
		return false
	}
	e.hasDefault = true
	e.defaultVal = s
	return true
}

// Default returns the resource's default sample, if any.
func (e *Entry) Default() (sample.Sample, bool) {
	return e.defaultVal, e.hasDefault
}

// CurrentValue returns the resource's current sample, if any.
func (e *Entry) CurrentValue() (sample.Sample, bool) {
	if e.current == nil {
		return sample.Sample{}, false
	}
	return *e.current, true
}

// SetCurrentValue replaces the resource's current sample. Placeholder and
// observation entries have no declared type of their own, so their data
// type tracks the most recent push.
func (e *Entry) SetCurrentValue(s sample.Sample) {
	cp := s
	e.current = &cp
	if e.kind == KindPlaceholder || e.kind == KindObservation {
		e.dataType = s.Type()
	}
}

// AddHandlerSlot registers rec in the first free slot (reusing a freed slot
// when available, bumping its generation) and returns the (slot,
// generation) pair that identifies this exact registration for removal.
func (e *Entry) AddHandlerSlot(rec HandlerRecord) (slot int, generation uint32) {
	for i := range e.handlerSlots {
		if !e.handlerSlots[i].occupied {
			e.handlerSlots[i].occupied = true
			e.handlerSlots[i].generation++
			e.handlerSlots[i].rec = rec
			return i, e.handlerSlots[i].generation
		}
	}
	e.handlerSlots = append(e.handlerSlots, handlerSlot{occupied: true, generation: 1, rec: rec})
	return len(e.handlerSlots) - 1, 1
}

// RemoveHandlerSlot frees the slot if it is still occupied by the
// registration identified by generation. Returns false (a safe no-op) if
// the slot was already freed or since reused by a newer registration, so
// a double remove never tears down someone else's handler.
func (e *Entry) RemoveHandlerSlot(slot int, generation uint32) bool {
	if slot < 0 || slot >= len(e.handlerSlots) {
		return false
	}
	s := &e.handlerSlots[slot]
	if !s.occupied || s.generation != generation {
		return false
	}
	s.occupied = false
	s.rec = HandlerRecord{}
	return true
}

// HandlersInOrder returns the occupied handler records in slot order. That
// is registration order, except that a handler which took over a freed slot
// is listed at that slot's position, ahead of handlers registered earlier in
// later slots.
func (e *Entry) HandlersInOrder() []HandlerRecord {
	out := make([]HandlerRecord, 0, len(e.handlerSlots))
	for _, s := range e.handlerSlots {
		if s.occupied {
			out = append(out, s.rec)
		}
	}
	return out
}

// HasHandlers reports whether any slot is currently occupied.
func (e *Entry) HasHandlers() bool {
	for _, s := range e.handlerSlots {
		if s.occupied {
			return true
		}
	}
	return false
}

// RemoveHandlersForSession frees every slot on this entry owned by
// sessionID.
func (e *Entry) RemoveHandlersForSession(sessionID string) {
	for i := range e.handlerSlots {
		if e.handlerSlots[i].occupied && e.handlerSlots[i].rec.SessionID == sessionID {
			e.handlerSlots[i].occupied = false
			e.handlerSlots[i].rec = HandlerRecord{}
		}
	}
}

// ObservationState returns the opaque per-observation state pointer stored
// on this entry by SetObservationState, or nil if none has been set.
func (e *Entry) ObservationState() any { return e.obsState }

// SetObservationState installs the opaque per-observation state pointer.
func (e *Entry) SetObservationState(v any) { e.obsState = v }

// BindObservation records obs as bound to this entry as its source. The
// push engine recurses into every bound observation after delivering to
// this entry's own handlers. Re-binding an already-bound observation
// (e.g. on reconfiguration) is a no-op, so a sample is never delivered to
// the same observation twice.
func (e *Entry) BindObservation(obs *Entry) {
	for _, o := range e.boundObservations {
		if o == obs {
			return
		}
	}
	e.boundObservations = append(e.boundObservations, obs)
}

// UnbindObservation removes obs from this entry's bound-observations list,
// e.g. when the observation is deleted.
func (e *Entry) UnbindObservation(obs *Entry) {
	for i, o := range e.boundObservations {
		if o == obs {
			e.boundObservations = append(e.boundObservations[:i], e.boundObservations[i+1:]...)
			return
		}
	}
}

// BoundObservations returns the Observation entries bound to this entry as
// their source.
func (e *Entry) BoundObservations() []*Entry {
	return e.boundObservations
}
