// Package threads tracks every live thread that has touched the
// engine's core API: its OS thread id, lock-recursion depth, blocked-
// on-global-lock flag, signal-handler cancellation counter, and
// internal/freeable flags (spec.md §3's "per-thread state"). Records
// live in a slice arena addressed by index rather than linked by
// pointer, resolving the thread-record/lock-state cycle the same way
// pool_linux.go keeps its connection table in a map keyed by an opaque
// id instead of intrusive pointers.
package threads

import "sync"

// ID indexes a thread record in the Registry's arena.
type ID int32

// Record is one thread's core-API state.
type Record struct {
	OSThreadID  int
	BlockedOnLock bool
	LockDepth     int
	CancelCount   int
	Internal      bool
	Freeable      bool

	alive bool
}

// Registry is the process-wide thread table. All mutation happens
// under the engine's global lock; Registry itself adds a small mutex,
// taken by every method, because the handler's signal path may run
// concurrently with a non-faulting thread's first touch.
type Registry struct {
	mu      sync.Mutex
	arena   []Record
	free    []ID
	byOS    map[int]ID
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		byOS: make(map[int]ID),
	}
}

// Touch records first-touch of the core API by osThreadID, allocating
// a new arena slot (reusing a freed one if available) unless the
// thread is already registered.
func (r *Registry) Touch(osThreadID int, internal bool) ID {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byOS[osThreadID]; ok {
		return id
	}

	var id ID
	if n := len(r.free); n > 0 {
		id = r.free[n-1]
		r.free = r.free[:n-1]
		r.arena[id] = Record{OSThreadID: osThreadID, Internal: internal, alive: true, Freeable: true}
	} else {
		id = ID(len(r.arena))
		r.arena = append(r.arena, Record{OSThreadID: osThreadID, Internal: internal, alive: true, Freeable: true})
	}
	r.byOS[osThreadID] = id
	return id
}

// Get returns a copy of the record at id, or false if the slot is
// free.
func (r *Registry) Get(id ID) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if int(id) < 0 || int(id) >= len(r.arena) || !r.arena[id].alive {
		return Record{}, false
	}
	return r.arena[id], true
}

// Enter increments id's lock-recursion depth, returning the
// pre-increment depth so the caller can tell whether this is the
// thread's outermost acquisition.
func (r *Registry) Enter(id ID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := &r.arena[id]
	depth := rec.LockDepth
	rec.LockDepth++
	return depth
}

// Exit decrements id's lock-recursion depth.
func (r *Registry) Exit(id ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := &r.arena[id]
	if rec.LockDepth > 0 {
		rec.LockDepth--
	}
}

// SetBlocked updates whether id is currently blocked waiting to
// acquire the global lock — the signal that freeze-waiters poll for.
func (r *Registry) SetBlocked(id ID, blocked bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.arena[id].BlockedOnLock = blocked
}

// MarkCancel increments id's signal-handler cancellation counter, so
// that thread's next lock acquisition inside its own handler exits
// immediately rather than servicing a fault (spec.md §4.4 step 1).
func (r *Registry) MarkCancel(id ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.arena[id].CancelCount++
}

// ConsumeCancel decrements id's cancellation counter and reports
// whether it was nonzero (i.e. this entry should bail immediately).
func (r *Registry) ConsumeCancel(id ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := &r.arena[id]
	if rec.CancelCount > 0 {
		rec.CancelCount--
		return true
	}
	return false
}

// Remove frees id's slot, observed when a thread is found dead during
// a freeze wave.
func (r *Registry) Remove(id ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if int(id) < 0 || int(id) >= len(r.arena) || !r.arena[id].alive {
		return
	}
	osID := r.arena[id].OSThreadID
	delete(r.byOS, osID)
	r.arena[id] = Record{}
	r.free = append(r.free, id)
}

// Others returns the ids of every live, non-internal thread other
// than excludeID, for the freeze walk in spec.md §4.4 step 4.
func (r *Registry) Others(excludeID ID) []ID {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ID
	for i := range r.arena {
		id := ID(i)
		if id == excludeID {
			continue
		}
		rec := r.arena[i]
		if rec.alive && !rec.Internal {
			out = append(out, id)
		}
	}
	return out
}

// Len reports the number of live records, for tests.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for i := range r.arena {
		if r.arena[i].alive {
			n++
		}
	}
	return n
}
