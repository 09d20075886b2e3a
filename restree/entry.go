// Package restree implements the hub's resource tree: a hierarchical,
// path-addressable registry of named entries through which timestamped
// sensor and control data flow, plus the concrete Resource collaborator
// each non-Namespace entry owns.
package restree

import "sync/atomic"

// Kind is an entry's position in the state machine. KindNone is a sentinel
// returned by lookups that find nothing; it is never stored on an entry.
type Kind int

const (
	KindNone Kind = iota
	Namespace
	Placeholder
	Input
	Output
	Observation
)

func (k Kind) String() string {
	switch k {
	case Namespace:
		return "namespace"
	case Placeholder:
		return "placeholder"
	case Input:
		return "input"
	case Output:
		return "output"
	case Observation:
		return "observation"
	default:
		return "none"
	}
}

// nsFlags is the bitset carried by Namespace entries.
type nsFlags uint8

const (
	flagNew       nsFlags = 1 << 0
	flagRelevant  nsFlags = 1 << 1
	flagClearNew  nsFlags = 1 << 2
	flagDeleted   nsFlags = 1 << 3
)

// placeholderFlavor distinguishes the two admin-setting schemas a
// Placeholder may eventually refine into.
type placeholderFlavor int

const (
	flavorIO placeholderFlavor = iota
	flavorObservation
)

// Entry is a node in the resource tree. Exactly one of {flags is
// meaningful, resource is non-nil} holds, discriminated by kind.
type Entry struct {
	name     string
	parent   *Entry
	children []*Entry

	kind  Kind
	flags nsFlags // valid iff kind == Namespace

	resource *Resource // valid iff kind != Namespace
	flavor   placeholderFlavor

	// generation is bumped every time this name slot is resurrected from a
	// tombstone, so stale handles held across a delete+recreate cycle can be
	// told apart in tests and diagnostics.
	generation uint32
}

var entrySeq atomic.Uint64

// newNamespaceEntry constructs a fresh Namespace entry with NEW set, the
// initial state for any newly materialized entry. Used directly only for
// the tree's permanent root; every other entry is drawn from the tree's
// entry pool via (*Tree).allocNamespace.
func newNamespaceEntry(name string, parent *Entry) *Entry {
	return &Entry{
		name:   name,
		parent: parent,
		kind:   Namespace,
		flags:  flagNew,
	}
}

// reset clears an entry to its zero state before it re-enters the entry
// pool's free list.
func (e *Entry) reset() {
	e.name = ""
	e.parent = nil
	e.children = nil
	e.kind = KindNone
	e.flags = 0
	e.resource = nil
	e.flavor = flavorIO
	e.generation = 0
}

// Name returns the entry's own path segment.
func (e *Entry) Name() string { return e.name }

// Parent returns the entry's parent, or nil for the root.
func (e *Entry) Parent() *Entry { return e.parent }

// Kind returns the entry's current state-machine kind.
func (e *Entry) Kind() Kind { return e.kind }

// Resource returns the entry's resource handle, or nil for a Namespace.
func (e *Entry) Resource() *Resource { return e.resource }

// IsDeleted reports whether this Namespace entry is a tombstone.
func (e *Entry) IsDeleted() bool {
	return e.kind == Namespace && e.flags&flagDeleted != 0
}

// IsNew reports whether this Namespace entry has never been observed by a
// snapshot flush.
func (e *Entry) IsNew() bool {
	return e.kind == Namespace && e.flags&flagNew != 0
}

func (e *Entry) setDeleted() {
	e.flags |= flagDeleted
}

func (e *Entry) clearNewFlag() {
	e.flags &^= flagNew
}

// findChild returns the live (non-tombstone) child named name, or nil.
func (e *Entry) findChild(name string) *Entry {
	for _, c := range e.children {
		if c.name == name && !c.IsDeleted() {
			return c
		}
	}
	return nil
}

// findChildEx returns any child named name, live or tombstoned, or nil.
func (e *Entry) findChildEx(name string) *Entry {
	for _, c := range e.children {
		if c.name == name {
			return c
		}
	}
	return nil
}

// detach removes this entry from its parent's children list. It is the
// rollback/release primitive used by autoprovisioning failure and by
// tombstone flush.
func (e *Entry) detach() {
	if e.parent == nil {
		return
	}
	siblings := e.parent.children
	for i, c := range siblings {
		if c == e {
			e.parent.children = append(siblings[:i], siblings[i+1:]...)
			break
		}
	}
	e.parent = nil
}

// FirstChild returns the first live child in insertion order, skipping
// tombstones.
func (e *Entry) FirstChild() *Entry {
	for _, c := range e.children {
		if !c.IsDeleted() {
			return c
		}
	}
	return nil
}

// FirstChildEx returns the first child in insertion order, including
// tombstones.
func (e *Entry) FirstChildEx() *Entry {
	if len(e.children) == 0 {
		return nil
	}
	return e.children[0]
}

// NextSibling returns the next live sibling after e in its parent's
// insertion order, skipping tombstones.
func (e *Entry) NextSibling() *Entry {
	siblings, idx := e.siblingIndex()
	if idx < 0 {
		return nil
	}
	for i := idx + 1; i < len(siblings); i++ {
		if !siblings[i].IsDeleted() {
			return siblings[i]
		}
	}
	return nil
}

// NextSiblingEx returns the next sibling after e, including tombstones.
func (e *Entry) NextSiblingEx() *Entry {
	siblings, idx := e.siblingIndex()
	if idx < 0 || idx+1 >= len(siblings) {
		return nil
	}
	return siblings[idx+1]
}

func (e *Entry) siblingIndex() ([]*Entry, int) {
	if e.parent == nil {
		return nil, -1
	}
	siblings := e.parent.children
	for i, c := range siblings {
		if c == e {
			return siblings, i
		}
	}
	return siblings, -1
}
