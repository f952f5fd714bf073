package policy

import (
	"math/rand/v2"

	"github.com/dsmmcken/jumbomem/internal/pagetable"
)

// Random evicts a uniformly random resident page, excluding the page
// most recently admitted (to avoid thrashing two-page loops, per
// spec.md §4.3).
type Random struct {
	rng          *rand.Rand
	capacity     int
	count        int
	lastAdmitted uint32
	hasLast      bool
}

// NewRandom creates a Random policy seeded deterministically from seed
// (0 uses a fixed default so tests are reproducible).
func NewRandom(capacity int, seed int64) *Random {
	return &Random{
		rng:      rand.New(rand.NewPCG(uint64(seed), 0x6a756d626f)),
		capacity: capacity,
	}
}

func (r *Random) Name() string          { return "random" }
func (r *Random) SupportsPrefetch() bool { return false }
func (r *Random) OnAccess(*pagetable.Table, uint32, bool) {}

func (r *Random) Admit(table *pagetable.Table, faulting uint32) Decision {
	d := Decision{NewProt: ReadWrite}

	if r.count < r.capacity {
		table.Insert(faulting, pagetable.Payload{})
		r.count++
		r.lastAdmitted = faulting
		r.hasLast = true
		return d
	}

	victim := r.pickVictim(table)
	table.Delete(victim)
	table.Insert(faulting, pagetable.Payload{})
	r.lastAdmitted = faulting
	r.hasLast = true

	d.HasVictim = true
	d.Victim = victim
	d.VictimIsClean = false
	return d
}

func (r *Random) pickVictim(table *pagetable.Table) uint32 {
	n := table.Len()
	for {
		rank := int(r.rng.Uint64N(uint64(n)))
		idx, _, err := table.At(rank)
		if err != nil {
			continue
		}
		if r.hasLast && idx == r.lastAdmitted && n > 1 {
			continue
		}
		return idx
	}
}
