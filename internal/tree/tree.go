// Package tree implements the resource tree: the hierarchical,
// per-client-isolated namespace of Entry nodes that the rest of the Data
// Hub is built on top of.
package tree

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// segmentPattern is the path grammar: each segment matches [A-Za-z0-9_.-]+;
// empty segments and ".." are rejected, and embedded "/" cannot occur since
// splitting on "/" already isolates segments.
var segmentPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// ErrBadPath is returned when a path fails the segment grammar.
type ErrBadPath struct {
	Path string
}

func (e *ErrBadPath) Error() string { return fmt.Sprintf("tree: invalid path %q", e.Path) }

// ErrResourceIsLeaf is returned when GetOrCreate walks through an existing
// Input/Output/Observation as though it were an intermediate namespace.
// Resources are leaves.
type ErrResourceIsLeaf struct {
	Path string
}

func (e *ErrResourceIsLeaf) Error() string {
	return fmt.Sprintf("tree: %q is a resource, not a namespace", e.Path)
}

// Tree is the process-wide resource namespace. The whole tree is meant to
// be touched only by a single logical executor (the hub facade), so Tree's
// own methods perform no locking of their own -- GetOrCreate, Find and
// Delete routinely call each other (and are called in sequence across a
// single hub operation such as push fan-out), and a self-locking mutex
// here would deadlock on that composition. Lock/Unlock expose one mutex
// callers hold across a whole multi-step operation so it appears atomic to
// other goroutines (e.g. concurrent transport connections).
type Tree struct {
	mu   sync.Mutex
	root *Entry
}

// New creates an empty tree with a root namespace entry.
func New() *Tree {
	return &Tree{root: &Entry{name: "", kind: KindNamespace, children: map[string]*Entry{}}}
}

// Root returns the tree's root namespace entry.
func (t *Tree) Root() *Entry { return t.root }

// Lock/Unlock let a caller (the hub facade) hold the tree's mutex across a
// multi-step operation it performs against this Tree, so that operation
// appears atomic to any other goroutine that also takes the lock before
// touching the tree.
func (t *Tree) Lock()   { t.mu.Lock() }
func (t *Tree) Unlock() { t.mu.Unlock() }

func splitPath(path string) ([]string, error) {
	if path == "" {
		return nil, &ErrBadPath{Path: path}
	}
	// A single leading "/" is allowed; any other empty segment (a trailing
	// or doubled slash) is rejected.
	segs := strings.Split(strings.TrimPrefix(path, "/"), "/")
	out := make([]string, 0, len(segs))
	for _, s := range segs {
		if s == "" || s == ".." || !segmentPattern.MatchString(s) {
			return nil, &ErrBadPath{Path: path}
		}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil, &ErrBadPath{Path: path}
	}
	return out, nil
}

// GetOrCreate walks path (relative to parent), creating namespace entries as
// needed, and returns the final entry (namespace or resource). It never
// creates resource entries itself, only namespaces.
func (t *Tree) GetOrCreate(parent *Entry, path string) (*Entry, error) {
	segs, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	return getOrCreateLocked(parent, segs)
}

func getOrCreateLocked(parent *Entry, segs []string) (*Entry, error) {
	cur := parent
	for i, seg := range segs {
		next, ok := cur.children[seg]
		if !ok {
			next = &Entry{name: seg, parent: cur, kind: KindNamespace, children: map[string]*Entry{}}
			cur.children[seg] = next
		} else if next.IsResource() && i != len(segs)-1 {
			return nil, &ErrResourceIsLeaf{Path: strings.Join(segs[:i+1], "/")}
		}
		cur = next
	}
	return cur, nil
}

// Find performs a segment-by-segment, non-creating lookup of path relative
// to parent. Returns nil if any segment is missing.
func (t *Tree) Find(parent *Entry, path string) (*Entry, error) {
	segs, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	return findLocked(parent, segs), nil
}

func findLocked(parent *Entry, segs []string) *Entry {
	cur := parent
	for _, seg := range segs {
		next, ok := cur.children[seg]
		if !ok {
			return nil
		}
		cur = next
	}
	return cur
}

// FindAbsolute resolves a path that must begin with "/"; the first segment
// selects a top-level namespace such as "app" or "obs".
func (t *Tree) FindAbsolute(path string) (*Entry, error) {
	if !strings.HasPrefix(path, "/") {
		return nil, &ErrBadPath{Path: path}
	}
	return t.Find(t.root, path[1:])
}

// Delete recursively destroys entry. It is a silent no-op if entry is a
// namespace that still has children not owned by the caller's session --
// callers determine ownership before calling Delete; this method enforces
// only the structural rule that a namespace with live children is not
// removed.
func (t *Tree) Delete(entry *Entry) {
	if entry == nil || entry.parent == nil {
		return // root is never deleted
	}
	deleteLocked(entry)
}

func deleteLocked(entry *Entry) {
	if entry.kind == KindNamespace && len(entry.children) > 0 {
		return
	}
	parent := entry.parent
	if parent == nil {
		return
	}
	delete(parent.children, entry.name)
	// Reclaim now-childless, role-less ancestors.
	for p := parent; p != nil && p.parent != nil; p = p.parent {
		if p.kind != KindNamespace || len(p.children) > 0 {
			break
		}
		gp := p.parent
		delete(gp.children, p.name)
	}
}
