// Package intercept is the engine's function-interception capability
// layer (spec.md §4.7): a small, focused set of OS primitives the
// engine must control — signal masking, region mapping and protection,
// meminfo, pre-touching, and chunked bulk I/O — behind an interface so
// the fault handler and startup path can be driven by an in-memory fake
// in tests and by real syscalls (golang.org/x/sys/unix) on Linux. Thread
// creation is not intercepted by this package. Grounded on
// the real/fake split the teacher uses for exec_vm_linux.go /
// exec_vm_other.go, generalized from a build-tag fallback into a
// swappable interface so both sides can be unit tested.
package intercept

import "io"

// Prot mirrors the subset of mmap/mprotect protection bits the engine
// cares about.
type Prot int

const (
	ProtNone Prot = iota
	ProtRead
	ProtReadWrite
)

// Capabilities is the full interception surface. A Capabilities value
// is owned by the engine and threaded through the fault handler and
// the startup path (region reservation, REDUCEMEM's touch probe)
// rather than called via package-level functions, so tests can
// substitute NewFake().
type Capabilities interface {
	// ReserveRegion creates the anonymous, fixed-if-possible, no-access
	// mapping backing the managed region (spec.md §4.1).
	ReserveRegion(base uintptr, extent int64) (uintptr, error)

	// Protect changes the protection of a page range within a
	// previously reserved region.
	Protect(addr uintptr, length int64, prot Prot) error

	// SignalMaskRequest records or applies a thread's request to
	// install/mask a signal. When internal is false and sig is the
	// access-violation signal, the request is recorded but not
	// applied — the core handler must stay installed. For any other
	// signal, the access-violation signal is stripped from the
	// requested mask so external code cannot accidentally block
	// delivery to the core handler.
	SignalMaskRequest(internal bool, sig int, wantBlocked bool) (applied bool, err error)

	// OpenMeminfo returns a synthesized /proc/meminfo-style reader
	// advertising the managed region's extent as total memory.
	OpenMeminfo(totalBytes int64) io.Reader

	// PreTouch reads one byte from each page in buf so the kernel
	// cannot fault mid-transfer while internal locks are held.
	PreTouch(buf []byte, pageSize int64)
}
