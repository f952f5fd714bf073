package threads

import (
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// Signaler delivers the access-violation signal to one OS thread,
// abstracted so freeze logic is testable without real signals (the
// unit tests use fakes from freeze_test.go; signal_linux.go supplies
// the real unix.Tgkill-based TgkillSignaler).
type Signaler interface {
	Signal(osThreadID int) error
}

// FreezeResult reports the outcome of one freeze wave.
type FreezeResult struct {
	Frozen    []ID
	Removed   []ID // found dead during the walk
	TimedOut  bool
}

// Freeze walks every live, non-internal thread other than selfID,
// delivers the access-violation signal via sig, and waits for the
// targeted threads to report BlockedOnLock, up to perThreadTimeout in
// total: one deadline is shared by the whole wave.
// Threads that no longer exist (Signal returns an ESRCH-like error)
// are removed from the registry as they're found, per spec.md §4.4
// step 4. On timeout the wave proceeds anyway — the registry's
// documented "proceed and accept the risk" behavior — and marks the
// remaining threads' cancel counters regardless so a late entrant
// still bails.
func (r *Registry) Freeze(log *logrus.Entry, sig Signaler, selfID ID, perThreadTimeout time.Duration) FreezeResult {
	targets := r.Others(selfID)

	var result FreezeResult
	for _, id := range targets {
		rec, ok := r.Get(id)
		if !ok {
			continue
		}
		if err := sig.Signal(rec.OSThreadID); err != nil {
			log.WithField("thread", rec.OSThreadID).Debug("freeze: target thread already gone")
			r.Remove(id)
			result.Removed = append(result.Removed, id)
			continue
		}
		result.Frozen = append(result.Frozen, id)
	}

	deadline := time.Now().Add(perThreadTimeout)
	pending := append([]ID(nil), result.Frozen...)
	for len(pending) > 0 && time.Now().Before(deadline) {
		next := pending[:0]
		for _, id := range pending {
			rec, ok := r.Get(id)
			if !ok {
				continue
			}
			if !rec.BlockedOnLock {
				next = append(next, id)
			}
		}
		pending = next
		if len(pending) > 0 {
			time.Sleep(time.Millisecond)
		}
	}

	if len(pending) > 0 {
		result.TimedOut = true
		log.WithField("stragglers", len(pending)).Warn("freeze: per-thread timeout exceeded, proceeding")
	}

	for _, id := range result.Frozen {
		r.MarkCancel(id)
	}
	return result
}
