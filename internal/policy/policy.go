// Package policy implements the four page-replacement policies from
// spec.md §4.3: FIFO, Random, NRE (not-recently-evicted), and NRU
// (not-recently-used).
//
// Every policy shares one contract: given a faulting page, decide the
// protections for the newly admitted page, pick a victim (or none if
// the cache has spare capacity), and say whether that victim is clean
// (skip the network write-back) or dirty.
package policy

import "github.com/dsmmcken/jumbomem/internal/pagetable"

// Prot is the protection to apply to a freshly admitted page.
type Prot int

const (
	ReadWrite Prot = iota
	ReadOnly
)

// Decision is the outcome of servicing one fault.
type Decision struct {
	NewProt    Prot
	Victim     uint32 // only valid if HasVictim
	HasVictim  bool
	VictimIsClean bool
}

// Policy is implemented by each replacement strategy. Implementations
// are not safe for concurrent use; callers must hold the engine's
// global lock while invoking them, exactly as spec.md §5 requires for
// all page-table and policy-state mutation.
type Policy interface {
	// Admit is called when page F is about to become resident. It must
	// mutate internal bookkeeping as if F is now resident and any
	// returned victim is not, and insert/delete F/victim in table.
	Admit(table *pagetable.Table, faulting uint32) Decision

	// OnAccess is invoked for a read or write to an already-resident
	// page (the NRU write-upgrade path in particular). For policies
	// that don't distinguish access types this is a no-op.
	OnAccess(table *pagetable.Table, page uint32, write bool)

	// SupportsPrefetch reports whether admitted pages are ever
	// installed read-only, i.e. whether a subsequent write can be
	// distinguished from the initial admission. Only such policies can
	// safely support speculative prefetch (spec.md §4.3 "Policies that
	// do not track per-page bits ... do not support prefetching").
	SupportsPrefetch() bool

	// Name identifies the policy for logging and config round-trips.
	Name() string
}

// New constructs a Policy by name, using the given capacity and any
// policy-specific tuning. nreEntries/nreRetries are only consulted for
// "nre"; nruIntervalMillis/nruRW only for "nru".
func New(name string, capacity int, nreEntries, nreRetries, nruIntervalMillis int, nruRW bool, randSeed int64) (Policy, error) {
	switch name {
	case "fifo":
		return NewFIFO(capacity), nil
	case "random":
		return NewRandom(capacity, randSeed), nil
	case "nre":
		return NewNRE(capacity, nreEntries, nreRetries, randSeed), nil
	case "nru":
		return NewNRU(capacity, nruIntervalMillis, nruRW), nil
	default:
		return nil, errUnknownPolicy(name)
	}
}

type errUnknownPolicy string

func (e errUnknownPolicy) Error() string {
	return "policy: unknown replacement policy " + string(e)
}
