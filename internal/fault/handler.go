// Package fault implements the master's page-fault handler (spec.md
// §4.4), split the way e2b-dev-infra's userfaultfd.go separates a
// Serve loop's dispatch from its handleMissing/handleWriteProtected
// workers: Handler here is OS-agnostic orchestration — lock
// acquisition, reentrancy bookkeeping, policy invocation, the
// freeze/resume sequence, prefetch bookkeeping — fully unit-testable
// against a fake transport and capability layer. handler_linux.go
// supplies the real SIGSEGV/SIGBUS entry point that extracts a
// faulting address and calls Service.
package fault

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dsmmcken/jumbomem/internal/asyncio"
	"github.com/dsmmcken/jumbomem/internal/intercept"
	"github.com/dsmmcken/jumbomem/internal/pagetable"
	"github.com/dsmmcken/jumbomem/internal/policy"
	"github.com/dsmmcken/jumbomem/internal/region"
	"github.com/dsmmcken/jumbomem/internal/threads"
	"github.com/dsmmcken/jumbomem/internal/transport"
	"github.com/sirupsen/logrus"
)

// PrefetchMode selects the next-candidate rule from spec.md §4.4.
type PrefetchMode int

const (
	PrefetchNone PrefetchMode = iota
	PrefetchNext
	PrefetchDelta
)

// ErrOutsideRegion signals the faulting address fell outside the
// managed region; handler_linux.go restores the previous handler and
// re-raises in this case rather than treating it as a bug.
var ErrOutsideRegion = errors.New("fault: address outside managed region")

// ErrReentrantFault signals a fault for a different address arrived
// while one was already being serviced — an invariant violation per
// spec.md §7, fatal at the engine layer.
var ErrReentrantFault = errors.New("fault: reentrant fault on a different address")

// Handler is the OS-agnostic fault orchestration state.
type Handler struct {
	mu sync.Mutex

	Layout    region.Layout
	Table     *pagetable.Table
	Policy    policy.Policy
	Transport transport.Transport
	Threads   *threads.Registry
	Caps      intercept.Capabilities
	Signaler  threads.Signaler
	Log       *logrus.Entry

	// Memory is the managed region's backing bytes: a real mmap'd view
	// on Linux, a plain slice in tests.
	Memory []byte

	Fetch    *asyncio.Slot
	Evict    *asyncio.Slot
	Prefetch *asyncio.Slot

	PrefetchEnabled bool
	PrefetchMode    PrefetchMode
	FreezeTimeout   time.Duration

	// GoodPrefetches counts faults a prior prefetch satisfied (spec.md
	// §8 scenario 4). PagesReceived counts every page actually pulled
	// over the wire, on-demand or prefetched, exactly once per page.
	GoodPrefetches int64
	PagesReceived  int64

	servicing  int64 // page-base byte offset currently being serviced, -1 if idle
	lastFault  int64
	prevFault  int64
	haveLast   bool
}

// NewHandler builds a Handler over already-constructed subsystems.
func NewHandler(layout region.Layout, table *pagetable.Table, pol policy.Policy, tr transport.Transport,
	reg *threads.Registry, caps intercept.Capabilities, sig threads.Signaler, log *logrus.Entry, memory []byte) *Handler {
	return &Handler{
		Layout:        layout,
		Table:         table,
		Policy:        pol,
		Transport:     tr,
		Threads:       reg,
		Caps:          caps,
		Signaler:      sig,
		Log:           log,
		Memory:        memory,
		Fetch:         asyncio.NewSlot(asyncio.Fetch, layout.PageSize),
		Evict:         asyncio.NewSlot(asyncio.Evict, layout.PageSize),
		Prefetch:      asyncio.NewSlot(asyncio.Prefetch, layout.PageSize),
		FreezeTimeout: 50 * time.Millisecond,
		servicing:     -1,
	}
}

// Service runs the full fault sequence for one access to byteOffset
// (already page-unaligned is fine; Service rounds down). selfID is the
// calling thread's registry id; write reports whether the access that
// faulted was a store.
func (h *Handler) Service(ctx context.Context, selfID threads.ID, byteOffset int64, write bool) error {
	depth := h.Threads.Enter(selfID)
	if depth == 0 {
		h.Threads.SetBlocked(selfID, true)
		h.mu.Lock()
		h.Threads.SetBlocked(selfID, false)
	}
	defer func() {
		h.Threads.Exit(selfID)
		if depth == 0 {
			h.mu.Unlock()
		}
	}()

	// Step 1: bail immediately if this entry is a frozen thread leaving
	// the handler via its own cancel counter.
	if h.Threads.ConsumeCancel(selfID) {
		return nil
	}

	// Step 2: round down to a page boundary; reject out-of-region.
	pageBase := h.Layout.PageBase(byteOffset)
	if !h.Layout.Contains(pageBase) {
		return ErrOutsideRegion
	}
	pageIndex := h.Layout.PageIndex(pageBase)

	// Step 3: reject reentrant faults on a different address.
	if h.servicing != -1 && h.servicing != pageBase {
		return ErrReentrantFault
	}
	h.servicing = pageBase
	defer func() { h.servicing = -1 }()

	// Step 4: freeze peer threads.
	h.Threads.Freeze(h.Log, h.Signaler, selfID, h.FreezeTimeout)

	pageIdx32 := uint32(pageIndex)
	if payload := h.Table.Find(pageIdx32); payload != nil {
		// Step 5: already resident -- NRU write-upgrade path.
		h.Policy.OnAccess(h.Table, pageIdx32, write)
		prot := intercept.ProtRead
		if write || !h.Policy.SupportsPrefetch() {
			prot = intercept.ProtReadWrite
		}
		return h.Caps.Protect(h.pageAddr(pageBase), h.Layout.PageSize, prot)
	}

	// Step 6: complete any outstanding eviction before admitting a new
	// page, since spec.md §5 requires evictions and fetches on a given
	// page to stay strictly ordered.
	if err := h.drainEvict(ctx); err != nil {
		return err
	}

	decision := h.Policy.Admit(h.Table, pageIdx32)

	dst := h.pageBytes(pageBase)
	for i := range dst {
		dst[i] = 0
	}
	if err := h.Caps.Protect(h.pageAddr(pageBase), h.Layout.PageSize, intercept.ProtReadWrite); err != nil {
		return err
	}

	rank, holderOffset, err := h.Layout.Holder(pageIndex)
	if err != nil {
		return fmt.Errorf("fault: resolving holder for page %d: %w", pageIndex, err)
	}

	if !h.PrefetchEnabled {
		if err := h.fetchInto(ctx, pageBase, rank, holderOffset, dst); err != nil {
			return err
		}
		if decision.HasVictim {
			if err := h.beginEvictVictim(ctx, decision.Victim, decision.VictimIsClean); err != nil {
				return err
			}
		}
	} else {
		if h.Prefetch.Active() && h.Prefetch.Target() == pageBase {
			if err := h.drainPrefetchInto(dst); err != nil {
				return err
			}
		} else {
			if h.Prefetch.Active() {
				// The wrong-page prefetch's reply is still queued on its
				// holder's connection; read it into the scratch buffer so
				// the fetch below is paired with its own reply.
				for {
					done, err := h.Transport.FetchPoll(h.Prefetch.Handle(), h.Prefetch.Scratch())
					if err != nil {
						return fmt.Errorf("fault: draining discarded prefetch: %w", err)
					}
					if done {
						break
					}
				}
			}
			h.Prefetch.Discard()
			if err := h.fetchInto(ctx, pageBase, rank, holderOffset, dst); err != nil {
				return err
			}
		}
		if decision.HasVictim {
			if err := h.beginEvictVictim(ctx, decision.Victim, decision.VictimIsClean); err != nil {
				return err
			}
		}
		h.startPrefetch(ctx, pageIndex)
	}

	// Step 7: final protections.
	finalProt := intercept.ProtReadWrite
	if h.Policy.SupportsPrefetch() && !write {
		finalProt = intercept.ProtRead
	}
	if err := h.Caps.Protect(h.pageAddr(pageBase), h.Layout.PageSize, finalProt); err != nil {
		return err
	}

	h.prevFault, h.lastFault, h.haveLast = h.lastFault, pageBase, true
	return nil
}

func (h *Handler) drainEvict(ctx context.Context) error {
	if !h.Evict.Active() {
		return nil
	}
	for {
		done, err := h.Transport.EvictPoll(h.Evict.Handle())
		if err != nil {
			return fmt.Errorf("fault: draining outstanding evict: %w", err)
		}
		if done {
			h.Evict.End()
			return nil
		}
	}
}

func (h *Handler) beginEvictVictim(ctx context.Context, victim uint32, clean bool) error {
	rank, holderOffset, err := h.Layout.Holder(int64(victim))
	if err != nil {
		return fmt.Errorf("fault: resolving holder for victim %d: %w", victim, err)
	}
	victimBase := victim * uint32(h.Layout.PageSize)
	page := h.pageBytes(int64(victimBase))
	handle, err := h.Transport.EvictBegin(ctx, rank, holderOffset, page, !clean)
	if err != nil {
		return fmt.Errorf("fault: beginning evict for victim %d: %w", victim, err)
	}
	h.Evict.Begin(int64(victimBase), handle)
	h.Evict.SetDirty(!clean)
	// Lower the just-evicted page to read-only so concurrent writes
	// trap rather than silently racing the in-flight eviction
	// (spec.md §4.4's "Asynchronous evict is staged" note).
	return h.Caps.Protect(h.pageAddr(int64(victimBase)), h.Layout.PageSize, intercept.ProtRead)
}

func (h *Handler) fetchInto(ctx context.Context, pageBase int64, rank int, holderOffset int64, dst []byte) error {
	handle, err := h.Transport.FetchBegin(ctx, rank, holderOffset)
	if err != nil {
		return fmt.Errorf("fault: beginning fetch from rank %d: %w", rank, err)
	}
	h.Fetch.Begin(pageBase, handle)
	for {
		done, err := h.Transport.FetchPoll(handle, dst)
		if err != nil {
			h.Fetch.End()
			return fmt.Errorf("fault: fetch from rank %d failed: %w", rank, err)
		}
		if done {
			h.Fetch.End()
			h.PagesReceived++
			return nil
		}
	}
}

func (h *Handler) startPrefetch(ctx context.Context, currentIndex int64) {
	candidate := h.nextPrefetchCandidate(currentIndex)
	if candidate < 0 || candidate >= h.Layout.NumPages() {
		return
	}
	if h.Table.Find(uint32(candidate)) != nil {
		return // already resident, nothing to prefetch
	}
	rank, holderOffset, err := h.Layout.Holder(candidate)
	if err != nil {
		return
	}
	handle, err := h.Transport.FetchBegin(ctx, rank, holderOffset)
	if err != nil {
		h.Log.WithError(err).Debug("fault: prefetch begin failed, skipping")
		return
	}
	candidateBase := candidate * h.Layout.PageSize
	h.Prefetch.Begin(candidateBase, handle)
}

// drainPrefetchInto blocks until the outstanding prefetch completes
// and copies its landed page into dst. Called only while holding the
// global lock, from the Service call whose fault matches the
// prefetch's target, so there is no concurrent access to the scratch
// buffer.
func (h *Handler) drainPrefetchInto(dst []byte) error {
	handle := h.Prefetch.Handle()
	scratch := h.Prefetch.Scratch()
	for {
		done, err := h.Transport.FetchPoll(handle, scratch)
		if err != nil {
			h.Prefetch.End()
			return fmt.Errorf("fault: draining prefetch: %w", err)
		}
		if done {
			copy(dst, scratch)
			h.Prefetch.End()
			h.PagesReceived++
			h.GoodPrefetches++
			return nil
		}
	}
}

func (h *Handler) nextPrefetchCandidate(currentIndex int64) int64 {
	switch h.PrefetchMode {
	case PrefetchNext:
		return currentIndex + 1
	case PrefetchDelta:
		if !h.haveLast {
			return currentIndex + 1
		}
		delta := (h.lastFault - h.prevFault) / h.Layout.PageSize
		return currentIndex + delta
	default:
		return -1
	}
}

func (h *Handler) pageAddr(pageBase int64) uintptr {
	return h.Layout.Base + uintptr(pageBase)
}

func (h *Handler) pageBytes(pageBase int64) []byte {
	return h.Memory[pageBase : pageBase+h.Layout.PageSize]
}
