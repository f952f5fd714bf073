// Package engine ties region layout, page table, replacement policy,
// transport, thread coordination, and the fault handler into one
// owned value, the way VMPaths/VMConfig in vm.go group a Firecracker
// run's state instead of relying on package-level globals.
package engine

import (
	"fmt"

	"github.com/dsmmcken/jumbomem/internal/alloc"
	"github.com/dsmmcken/jumbomem/internal/config"
	"github.com/dsmmcken/jumbomem/internal/fault"
	"github.com/dsmmcken/jumbomem/internal/intercept"
	"github.com/dsmmcken/jumbomem/internal/pagetable"
	"github.com/dsmmcken/jumbomem/internal/policy"
	"github.com/dsmmcken/jumbomem/internal/region"
	"github.com/dsmmcken/jumbomem/internal/threads"
	"github.com/dsmmcken/jumbomem/internal/transport"
	"github.com/sirupsen/logrus"
)

// Engine is the master's full runtime state: exactly one instance per
// process, guarded end to end by Handler's internal lock.
type Engine struct {
	Config    *config.Config
	Layout    region.Layout
	Table     *pagetable.Table
	Policy    policy.Policy
	Transport transport.Transport
	Threads   *threads.Registry
	Caps      intercept.Capabilities
	Handler   *fault.Handler
	External  *alloc.ExternalHeap
	Internal  *alloc.InternalHeap

	Log *logrus.Entry
}

// New wires every subsystem from a resolved Config, a concrete
// capability layer, and a transport already dialed/listening. memory
// is the managed region's backing bytes. localPages is the resolved
// local cache capacity (spec.md §4.1's local_pages, already reduced by
// LocalPages/PercentOrAbsolute overrides) — sized off the master's own
// free memory, never off a peer's contributed buffer.
func New(cfg *config.Config, layout region.Layout, localPages int, caps intercept.Capabilities, tr transport.Transport,
	sig threads.Signaler, log *logrus.Entry, memory []byte) (*Engine, error) {

	if localPages <= 0 {
		return nil, fmt.Errorf("engine: local_pages resolves to %d, must be positive", localPages)
	}

	pol, err := policy.New(cfg.Policy, localPages, cfg.NREEntries, cfg.NRERetries, cfg.NRUInterval, cfg.NRURW, 0x5eed)
	if err != nil {
		return nil, fmt.Errorf("engine: constructing policy: %w", err)
	}

	table := pagetable.New(localPages)
	reg := threads.New()

	h := fault.NewHandler(layout, table, pol, tr, reg, caps, sig, log, memory)
	h.PrefetchEnabled = cfg.Prefetch != "" && cfg.Prefetch != "none"
	switch cfg.Prefetch {
	case "next":
		h.PrefetchMode = fault.PrefetchNext
	case "delta":
		h.PrefetchMode = fault.PrefetchDelta
	}

	external := alloc.NewExternalHeap(layout.Base, layout.Extent(), layout.PageSize)
	internal := alloc.NewInternalHeap(1<<20, external.Contains)
	if err := alloc.CheckDisjoint(external); err != nil {
		return nil, fmt.Errorf("engine: disjointness self-check failed: %w", err)
	}

	return &Engine{
		Config:    cfg,
		Layout:    layout,
		Table:     table,
		Policy:    pol,
		Transport: tr,
		Threads:   reg,
		Caps:      caps,
		Handler:   h,
		External:  external,
		Internal:  internal,
		Log:       log,
	}, nil
}

// Abort centralizes the fatal-path handling of spec.md §7: log one
// structured line at Fatal level (logrus's Fatal already calls
// os.Exit(1) after logging), after best-effort closing the transport
// with Transport.Close, which does not send TERMINATE. Engine state
// beyond the transport is process-local and dies with the process, so
// no further teardown is attempted.
func (e *Engine) Abort(reason string, err error) {
	if e.Transport != nil {
		if finalizeErr := e.Transport.Close(); finalizeErr != nil {
			e.Log.WithError(finalizeErr).Warn("engine: transport close failed during abort")
		}
	}
	e.Log.WithError(err).WithField("reason", reason).Fatal("engine: aborting")
}
