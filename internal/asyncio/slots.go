// Package asyncio holds the three single-slot asynchronous operation
// handles described in spec.md §3: fetch, evict, and prefetch. Only one
// operation of each kind may be outstanding at a time.
package asyncio

import "fmt"

// Kind identifies which of the three slots an operation occupies.
type Kind int

const (
	Fetch Kind = iota
	Evict
	Prefetch
)

// Handle is an opaque transport-level handle for an in-flight
// operation; its concrete type is owned by the transport package.
type Handle any

// Slot is a single outstanding asynchronous operation.
type Slot struct {
	kind      Kind
	active    bool
	target    int64 // region-relative byte offset, or -1 if none
	handle    Handle
	scratch   []byte // page-sized scratch buffer
	finalProt int     // fetch: final protections to apply on completion
	dirty     bool    // evict: true if the victim was modified
}

// NewSlot creates an idle slot with a page-sized scratch buffer.
func NewSlot(kind Kind, pageSize int64) *Slot {
	return &Slot{
		kind:    kind,
		target:  -1,
		scratch: make([]byte, pageSize),
	}
}

// Active reports whether an operation is currently outstanding.
func (s *Slot) Active() bool { return s.active }

// Target returns the region-relative byte offset of the outstanding
// operation, or -1 if the slot is idle.
func (s *Slot) Target() int64 { return s.target }

// Scratch returns the slot's page-sized scratch buffer.
func (s *Slot) Scratch() []byte { return s.scratch }

// Begin marks the slot active for the given target and handle. It
// panics if an operation of this kind is already outstanding — the
// contract is strictly single-slot per kind.
func (s *Slot) Begin(target int64, handle Handle) {
	if s.active {
		panic(fmt.Sprintf("asyncio: slot %d already has an outstanding operation at %d", s.kind, s.target))
	}
	s.active = true
	s.target = target
	s.handle = handle
}

// Handle returns the transport handle of the outstanding operation.
func (s *Slot) Handle() Handle { return s.handle }

// SetFinalProt records the protections to install once a fetch
// completes.
func (s *Slot) SetFinalProt(prot int) { s.finalProt = prot }

// FinalProt returns the protections recorded by SetFinalProt.
func (s *Slot) FinalProt() int { return s.finalProt }

// SetDirty records whether an evict's victim was modified.
func (s *Slot) SetDirty(dirty bool) { s.dirty = dirty }

// Dirty reports whether the outstanding (or just-completed) evict is
// for a modified page.
func (s *Slot) Dirty() bool { return s.dirty }

// End clears the slot, making it available for the next Begin. It
// panics if the slot was already idle.
func (s *Slot) End() {
	if !s.active {
		panic(fmt.Sprintf("asyncio: End on already-idle slot %d", s.kind))
	}
	s.active = false
	s.target = -1
	s.handle = nil
}

// Discard clears the slot without requiring the caller to have
// consumed its result — used when a prefetch lands on the wrong page
// and must be thrown away (spec.md §4.4).
func (s *Slot) Discard() {
	if s.active {
		s.active = false
		s.target = -1
		s.handle = nil
	}
}
