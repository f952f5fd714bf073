// Package pagetable implements the master's residency map: a
// fixed-capacity, chained hash table from logical page index to a
// residency record with a stable slot identity.
//
// Capacity is fixed at construction (local_pages from spec.md §4.1).
// The table enforces a strict lifecycle invariant: a delete must be
// immediately followed by an insert that reuses the freed slot. This
// mirrors the replacement policy's own contract (evict one page, admit
// one page) and lets at_rank() address resident pages by a stable
// rank without a second index structure.
package pagetable

import "fmt"

// Two large primes for multiplicative hash mixing, the same shape as
// biscuit's hashtable (FNV avalanche + a large odd multiplier) but
// applied directly to the 32-bit page index since keys here are
// already small dense integers, not strings.
const (
	mixPrime1 = 2654435761
	mixPrime2 = 40507
)

// Payload is the policy-owned data attached to a residency record.
// FIFO carries none; NRU carries Referenced/Modified bits.
type Payload struct {
	Referenced bool
	Modified   bool
}

// entry is one chain link. slot is its position in the backing array,
// fixed for the entry's lifetime once allocated.
type entry struct {
	inUse   bool
	index   uint32
	payload Payload
	next    int32 // index into table.entries, -1 = end of chain
}

// Table is a fixed-capacity hash table mapping page index -> *Payload.
type Table struct {
	buckets     []int32 // bucket head -> entries index, -1 = empty
	entries     []entry
	capacity    int
	count       int
	freeSlot    int32 // slot freed by the most recent Delete, or -1
	deletedOnce bool  // tracks the "delete must be followed by insert" invariant
	highWater   int32 // slots [0, highWater) have been allocated at least once
	rankOrder   []uint32 // entries-index order for At(rank); rebuilt lazily
	rankDirty   bool
}

// New creates a Table that can hold at most capacity entries.
func New(capacity int) *Table {
	if capacity <= 0 {
		panic("pagetable: capacity must be positive")
	}
	numBuckets := capacity * 2
	if numBuckets < 1 {
		numBuckets = 1
	}
	t := &Table{
		buckets:  make([]int32, numBuckets),
		entries:  make([]entry, capacity),
		capacity: capacity,
		freeSlot: -1,
	}
	for i := range t.buckets {
		t.buckets[i] = -1
	}
	for i := range t.entries {
		t.entries[i].next = -1
	}
	return t
}

func (t *Table) hash(index uint32) int {
	h := (index * mixPrime1) ^ (index >> 13)
	h = h * mixPrime2
	return int(h % uint32(len(t.buckets)))
}

// Len returns the number of resident entries.
func (t *Table) Len() int { return t.count }

// Capacity returns the fixed maximum entry count.
func (t *Table) Capacity() int { return t.capacity }

// Find returns the payload for index, or nil if not present.
func (t *Table) Find(index uint32) *Payload {
	b := t.hash(index)
	for i := t.buckets[b]; i != -1; i = t.entries[i].next {
		if t.entries[i].inUse && t.entries[i].index == index {
			return &t.entries[i].payload
		}
	}
	return nil
}

// Insert adds index with the given payload. It panics if the table is
// at capacity and no slot was just freed by Delete, or if index is
// already present.
func (t *Table) Insert(index uint32, payload Payload) *Payload {
	if t.Find(index) != nil {
		panic(fmt.Sprintf("pagetable: insert of already-present index %d", index))
	}

	var slot int32
	if t.freeSlot != -1 {
		slot = t.freeSlot
		t.freeSlot = -1
		t.deletedOnce = false
	} else {
		if t.count >= t.capacity {
			panic("pagetable: insert exceeds fixed capacity with no freed slot")
		}
		slot = t.highWater
		t.highWater++
	}

	t.entries[slot].inUse = true
	t.entries[slot].index = index
	t.entries[slot].payload = payload

	b := t.hash(index)
	t.entries[slot].next = t.buckets[b]
	t.buckets[b] = slot

	t.count++
	t.rankDirty = true
	return &t.entries[slot].payload
}

// Delete removes index from the table. It panics if index is absent,
// or if two deletes occur back to back without an intervening insert
// (the reused-slot invariant from spec.md §4.2).
func (t *Table) Delete(index uint32) {
	if t.freeSlot != -1 {
		panic("pagetable: delete without a prior insert consuming the freed slot")
	}

	b := t.hash(index)
	var prev int32 = -1
	for i := t.buckets[b]; i != -1; i = t.entries[i].next {
		if t.entries[i].inUse && t.entries[i].index == index {
			if prev == -1 {
				t.buckets[b] = t.entries[i].next
			} else {
				t.entries[prev].next = t.entries[i].next
			}
			t.entries[i].inUse = false
			t.entries[i].next = -1
			t.freeSlot = i
			t.count--
			t.rankDirty = true
			return
		}
		prev = i
	}
	panic(fmt.Sprintf("pagetable: delete of absent index %d", index))
}

// At returns the (index, payload) of the rank-th resident page, where
// rank is in [0, Len()). Order is stable between mutations but is not
// meaningful across an Insert/Delete pair.
func (t *Table) At(rank int) (uint32, *Payload, error) {
	if rank < 0 || rank >= t.count {
		return 0, nil, fmt.Errorf("pagetable: rank %d out of range [0, %d)", rank, t.count)
	}
	if t.rankDirty {
		t.rebuildRankOrder()
	}
	slot := t.rankOrder[rank]
	return t.entries[slot].index, &t.entries[slot].payload, nil
}

func (t *Table) rebuildRankOrder() {
	order := t.rankOrder[:0]
	if cap(order) < t.count {
		order = make([]uint32, 0, t.count)
	}
	for i := range t.entries {
		if t.entries[i].inUse {
			order = append(order, uint32(i))
		}
	}
	t.rankOrder = order
	t.rankDirty = false
}

// Indices returns all resident page indices, in unspecified order.
func (t *Table) Indices() []uint32 {
	out := make([]uint32, 0, t.count)
	for i := range t.entries {
		if t.entries[i].inUse {
			out = append(out, t.entries[i].index)
		}
	}
	return out
}
