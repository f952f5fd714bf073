// Package transport defines the peer-to-peer data movement contract
// used by the engine's fault handler: fetch a page from its holder,
// evict a page to its holder, and the init/finalize bookkeeping around
// a run. Variant A (message-passing over a byte stream) is the only
// concrete implementation; it is grounded on the UDS+SCM_RIGHTS
// handshake in uffd_linux.go and the length-prefixed vsock request
// framing in machine_linux.go, adapted to jumbomem's wire protocol.
package transport

import (
	"context"

	"github.com/dsmmcken/jumbomem/internal/wire"
)

// FetchHandle and EvictHandle are opaque, transport-owned tokens
// stored in an asyncio.Slot between Begin and End so a transport can
// correlate a later completion with the operation that started it.
// Declared as aliases (not new named types) so they interchange freely
// with asyncio.Handle at call sites.
type FetchHandle = any
type EvictHandle = any

// Transport is the data-plane contract the fault handler drives. All
// methods are safe to call while holding the engine's global lock.
// FetchBegin and EvictBegin issue a request; completion is observed
// through FetchPoll and EvictPoll, which MasterConn implements by
// blocking on the reply (FetchPoll) or reporting done at once
// (EvictPoll).
type Transport interface {
	// PeerInit establishes this process's connections to the rest of
	// the roster (master to every peer, or peer to master) and blocks
	// until the handshake completes.
	PeerInit(ctx context.Context) error

	// FetchBegin issues a GET to rank for the page at holderOffset in
	// its buffer and returns a handle tracking the in-flight request.
	FetchBegin(ctx context.Context, rank int, holderOffset int64) (FetchHandle, error)

	// FetchPoll reports whether the fetch has completed; on success it
	// copies the received page into dst and returns true.
	FetchPoll(h FetchHandle, dst []byte) (done bool, err error)

	// EvictBegin pushes page to its holder. An implementation may skip
	// sending a clean page at all (MasterConn does); dirty pages are
	// always sent.
	EvictBegin(ctx context.Context, rank int, holderOffset int64, page []byte, dirty bool) (EvictHandle, error)

	// EvictPoll reports whether the evict has completed. MasterConn's
	// holder sends no acknowledgement, so it reports done at once.
	EvictPoll(h EvictHandle) (done bool, err error)

	// Finalize sends TERMINATE to every peer and releases transport
	// resources. Called exactly once, from the master, at normal
	// shutdown.
	Finalize(ctx context.Context) error

	// Close releases local resources without running the TERMINATE
	// handshake; used on abort paths.
	Close() error
}

// RosterEntry names one peer's listen address in rank order. Rank 0 is
// always the master and never appears as a data holder.
type RosterEntry struct {
	Rank int
	Addr string
}

// errTag wraps an unexpected wire.Tag seen where a specific tag was
// required, e.g. a RESPONSE arriving out of order.
type errTag struct {
	want, got wire.Tag
}

func (e *errTag) Error() string {
	return "transport: expected " + e.want.String() + ", got " + e.got.String()
}
