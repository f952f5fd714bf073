package policy

import "github.com/dsmmcken/jumbomem/internal/pagetable"

// FIFO evicts the longest-resident page. Implemented as a circular
// array of page indices; the cursor advances on each eviction.
type FIFO struct {
	ring     []uint32
	occupied []bool
	cursor   int
	count    int
	capacity int
}

// NewFIFO creates a FIFO policy for a cache of the given capacity.
func NewFIFO(capacity int) *FIFO {
	return &FIFO{
		ring:     make([]uint32, capacity),
		occupied: make([]bool, capacity),
		capacity: capacity,
	}
}

func (f *FIFO) Name() string             { return "fifo" }
func (f *FIFO) SupportsPrefetch() bool    { return false }
func (f *FIFO) OnAccess(*pagetable.Table, uint32, bool) {}

func (f *FIFO) Admit(table *pagetable.Table, faulting uint32) Decision {
	d := Decision{NewProt: ReadWrite}

	if f.count < f.capacity {
		// Room to spare: admit without eviction.
		f.ring[f.cursor] = faulting
		f.occupied[f.cursor] = true
		f.cursor = (f.cursor + 1) % f.capacity
		f.count++
		table.Insert(faulting, pagetable.Payload{})
		return d
	}

	// Evict the page at the cursor — the oldest admission in the ring.
	victim := f.ring[f.cursor]
	table.Delete(victim)
	f.ring[f.cursor] = faulting
	table.Insert(faulting, pagetable.Payload{})
	f.cursor = (f.cursor + 1) % f.capacity

	d.HasVictim = true
	d.Victim = victim
	d.VictimIsClean = false
	return d
}
