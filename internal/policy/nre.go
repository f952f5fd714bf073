package policy

import (
	"math/rand/v2"

	"github.com/dsmmcken/jumbomem/internal/pagetable"
)

// NRE (not-recently-evicted) is a uniform-random policy with up to R
// retries if the selection appears in the last K evictions' history.
type NRE struct {
	rng      *rand.Rand
	capacity int
	count    int

	history     []uint32 // bounded FIFO ring of the last K evicted indices
	historyPos  int
	historyFull bool
	k           int
	retries     int
}

// NewNRE creates an NRE policy with a K-entry eviction history and R
// retries per eviction decision.
func NewNRE(capacity, k, retries int, seed int64) *NRE {
	if k <= 0 {
		k = 1
	}
	return &NRE{
		rng:      rand.New(rand.NewPCG(uint64(seed), 0x4e524531)),
		capacity: capacity,
		history:  make([]uint32, k),
		k:        k,
		retries:  retries,
	}
}

func (n *NRE) Name() string          { return "nre" }
func (n *NRE) SupportsPrefetch() bool { return false }
func (n *NRE) OnAccess(*pagetable.Table, uint32, bool) {}

func (n *NRE) Admit(table *pagetable.Table, faulting uint32) Decision {
	d := Decision{NewProt: ReadWrite}

	if n.count < n.capacity {
		table.Insert(faulting, pagetable.Payload{})
		n.count++
		return d
	}

	victim := n.pickVictim(table)
	table.Delete(victim)
	table.Insert(faulting, pagetable.Payload{})
	n.recordEviction(victim)

	d.HasVictim = true
	d.Victim = victim
	d.VictimIsClean = false
	return d
}

func (n *NRE) pickVictim(table *pagetable.Table) uint32 {
	count := table.Len()
	var candidate uint32
	for attempt := 0; ; attempt++ {
		rank := int(n.rng.Uint64N(uint64(count)))
		idx, _, err := table.At(rank)
		if err != nil {
			continue
		}
		candidate = idx
		if attempt >= n.retries || !n.inHistory(idx) {
			return candidate
		}
	}
}

func (n *NRE) inHistory(idx uint32) bool {
	limit := n.k
	if !n.historyFull {
		limit = n.historyPos
	}
	for i := 0; i < limit; i++ {
		if n.history[i] == idx {
			return true
		}
	}
	return false
}

func (n *NRE) recordEviction(idx uint32) {
	n.history[n.historyPos] = idx
	n.historyPos++
	if n.historyPos >= n.k {
		n.historyPos = 0
		n.historyFull = true
	}
}
