package policy

import (
	"math/rand/v2"
	"time"

	"github.com/dsmmcken/jumbomem/internal/pagetable"
)

// nruClass is one of the four (referenced, modified) buckets, ordered
// so that class 0 ((0,0)) is preferred for eviction.
type nruClass int

const (
	classClean     nruClass = iota // (0,0)
	classDirty                     // (0,1) -- written but its reference bit already cleared
	classRefOnly                   // (1,0)
	classRefDirty                  // (1,1)
	numNRUClasses
)

func classOf(referenced, modified bool) nruClass {
	switch {
	case !referenced && !modified:
		return classClean
	case !referenced && modified:
		return classDirty
	case referenced && !modified:
		return classRefOnly
	default:
		return classRefDirty
	}
}

// NRU (not-recently-used) admits new pages read-only (unless RW is
// forced), tracks referenced/modified bits, and periodically clears
// referenced bits on a lazy sweep. Eviction picks uniformly within the
// smallest nonempty class.
type NRU struct {
	rng      *rand.Rand
	capacity int
	count    int

	intervalMillis int
	rw             bool
	lastSweep      time.Time

	// No per-class buckets are stored: class membership lives in the
	// page table's Payload bits, and pickVictim re-derives the four
	// classes from them on each eviction.
}

// NewNRU creates an NRU policy. intervalMillis is the reference-bit
// sweep period; rw forces read+write admission (disabling the
// modified-bit distinction) when true.
func NewNRU(capacity, intervalMillis int, rw bool) *NRU {
	return &NRU{
		rng:            rand.New(rand.NewPCG(1, 2)),
		capacity:       capacity,
		intervalMillis: intervalMillis,
		rw:             rw,
		lastSweep:      time.Now(),
	}
}

func (p *NRU) Name() string { return "nru" }

// SupportsPrefetch is true only when pages are actually admitted
// read-only, since prefetch relies on distinguishing a first touch
// from a subsequent write (spec.md §4.3).
func (p *NRU) SupportsPrefetch() bool { return !p.rw }

func (p *NRU) Admit(table *pagetable.Table, faulting uint32) Decision {
	p.maybeSweep(table)

	prot := ReadWrite
	if !p.rw {
		prot = ReadOnly
	}
	d := Decision{NewProt: prot}

	payload := pagetable.Payload{Referenced: true, Modified: false}
	if p.rw {
		// With NRU_RW, the modified-bit distinction is disabled: every
		// admitted page is immediately writable, so treat it as
		// referenced+modified from the start.
		payload.Modified = true
	}

	if p.count < p.capacity {
		table.Insert(faulting, payload)
		p.count++
		return d
	}

	victim := p.pickVictim(table)
	victimPayload := table.Find(victim)
	clean := victimPayload == nil || !victimPayload.Modified
	table.Delete(victim)
	table.Insert(faulting, payload)

	d.HasVictim = true
	d.Victim = victim
	d.VictimIsClean = clean
	return d
}

// OnAccess handles the write-upgrade path: a write to an already
// resident read-only page re-enters the handler with a
// protection-change request. The policy marks referenced=modified=1
// and the caller applies read+write protections.
func (p *NRU) OnAccess(table *pagetable.Table, page uint32, write bool) {
	payload := table.Find(page)
	if payload == nil {
		return
	}
	payload.Referenced = true
	if write {
		payload.Modified = true
	}
}

// maybeSweep clears every resident page's referenced bit if at least
// intervalMillis has elapsed since the last sweep. Checked lazily on
// each fault, per spec.md §4.3.
func (p *NRU) maybeSweep(table *pagetable.Table) {
	if p.intervalMillis <= 0 {
		return
	}
	if time.Since(p.lastSweep) < time.Duration(p.intervalMillis)*time.Millisecond {
		return
	}
	p.lastSweep = time.Now()
	for _, idx := range table.Indices() {
		if payload := table.Find(idx); payload != nil {
			payload.Referenced = false
		}
	}
}

// pickVictim chooses uniformly at random within the smallest nonempty
// class among {(0,0), (0,1), (1,0), (1,1)}.
func (p *NRU) pickVictim(table *pagetable.Table) uint32 {
	var byClass [numNRUClasses][]uint32
	for _, idx := range table.Indices() {
		payload := table.Find(idx)
		if payload == nil {
			continue
		}
		c := classOf(payload.Referenced, payload.Modified)
		byClass[c] = append(byClass[c], idx)
	}

	for c := nruClass(0); c < numNRUClasses; c++ {
		if len(byClass[c]) > 0 {
			pick := int(p.rng.Uint64N(uint64(len(byClass[c]))))
			return byClass[c][pick]
		}
	}
	// Unreachable while the table is non-empty, but fall back to any
	// resident page rather than panic.
	idx, _, _ := table.At(0)
	return idx
}
