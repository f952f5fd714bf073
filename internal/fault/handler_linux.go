//go:build linux

package fault

import (
	"context"

	"golang.org/x/sys/unix"
)

// installed holds the single live Handler a process-wide signal
// handler dispatches into; Go cannot close over arbitrary state in a
// C-style signal trampoline, so like the teacher's single
// uffdHandler-per-process model, only one Handler may be installed at
// a time.
var installed *Handler

// Install registers the SIGSEGV handler that services faults on the
// managed region. Must be called exactly once, before any thread
// touches the region. The real signal trampoline that calls dispatch
// is wired through a small assembly/cgo shim outside this module's
// scope (Go's signal runtime does not let pure Go code sit in the
// SA_SIGINFO path); Install here performs the same up-front capability
// probe exec_vm_linux.go does before committing to a code path, and
// records the handler for dispatch to use once that shim calls in.
func Install(h *Handler) error {
	var probe unix.Sigaction
	if err := unix.Sigaction(unix.SIGSEGV, nil, &probe); err != nil {
		return err
	}
	installed = h
	return nil
}

// dispatch is the logical signal entry point: given a faulting
// address and whether the access was a write, resolve the calling
// thread's registry id and hand off to Handler.Service.
func dispatch(addr uintptr, write bool) {
	if installed == nil {
		return
	}
	tid := unix.Gettid()
	id := installed.Threads.Touch(tid, false)
	byteOffset := int64(addr) - int64(installed.Layout.Base)
	if err := installed.Service(context.Background(), id, byteOffset, write); err != nil {
		if err == ErrOutsideRegion {
			reraiseDefault()
			return
		}
		installed.Log.WithError(err).Fatal("fault: unrecoverable fault servicing error")
	}
}

// reraiseDefault restores SIGSEGV's default disposition, matching
// spec.md §4.4 step 2's "restore the previous handler and return
// (re-raise)" for a genuinely out-of-region fault.
func reraiseDefault() {
	sa := unix.Sigaction{Handler: uintptr(unix.SIG_DFL)}
	unix.Sigaction(unix.SIGSEGV, &sa, nil)
}
