package transport

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/dsmmcken/jumbomem/internal/wire"
	"github.com/sirupsen/logrus"
)

// MasterConn is the message-passing master side: one TCP connection
// per peer, dialed at PeerInit and held for the life of the run. Each
// connection is single-outstanding per spec.md's asyncio contract, so
// requests and their responses are synchronous on that connection;
// FetchBegin/EvictBegin issue the request and FetchPoll/EvictPoll read
// the reply, mirroring pool_client.go's dial-request-response shape
// without the pool's retry/backfill logic (a master's peer set is
// fixed at launch).
type MasterConn struct {
	log *logrus.Entry

	mu    sync.Mutex
	conns map[int]net.Conn

	heterogeneous bool
}

// NewMasterConn creates a master transport with no connections; Dial
// adds one per peer (rank 0, the master itself, is never dialed).
func NewMasterConn(log *logrus.Entry, heterogeneous bool) *MasterConn {
	return &MasterConn{
		log:           log,
		conns:         make(map[int]net.Conn),
		heterogeneous: heterogeneous,
	}
}

// Dial connects to one peer's listen address and records it under
// rank. Called once per roster entry during PeerInit.
func (m *MasterConn) Dial(ctx context.Context, rank int, addr string) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("transport: dialing peer rank %d at %s: %w", rank, addr, err)
	}
	m.mu.Lock()
	m.conns[rank] = conn
	m.mu.Unlock()
	m.log.WithField("rank", rank).WithField("addr", addr).Debug("connected to peer")
	return nil
}

// PeerInit is a no-op on the master: connections are established
// individually via Dial as the roster is resolved, since the master
// learns peer addresses incrementally (spec.md §4.1).
func (m *MasterConn) PeerInit(ctx context.Context) error { return nil }

func (m *MasterConn) connFor(rank int) (net.Conn, error) {
	m.mu.Lock()
	conn, ok := m.conns[rank]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("transport: no connection to rank %d", rank)
	}
	return conn, nil
}

// fetchState is a MasterConn FetchHandle: the connection the GET was
// sent on, so FetchPoll knows where to read the RESPONSE from.
type fetchState struct {
	conn net.Conn
}

func (m *MasterConn) FetchBegin(ctx context.Context, rank int, holderOffset int64) (FetchHandle, error) {
	conn, err := m.connFor(rank)
	if err != nil {
		return nil, err
	}
	if err := wire.WriteOffset(conn, wire.Get, uint64(holderOffset), m.heterogeneous); err != nil {
		return nil, fmt.Errorf("transport: sending GET to rank %d: %w", rank, err)
	}
	return &fetchState{conn: conn}, nil
}

// FetchPoll blocks on the single expected RESPONSE frame. Variant A's
// synchronous-per-connection design means this never returns
// done=false; it is structured as a poll to let the fault handler's
// call sites stay agnostic to a future asynchronous variant.
func (m *MasterConn) FetchPoll(h FetchHandle, dst []byte) (bool, error) {
	fs, ok := h.(*fetchState)
	if !ok {
		return false, fmt.Errorf("transport: FetchPoll called with a non-fetch handle")
	}
	msg, err := wire.ReadMessage(fs.conn, m.heterogeneous)
	if err != nil {
		return false, fmt.Errorf("transport: reading fetch response: %w", err)
	}
	if msg.Tag != wire.Response {
		return false, &errTag{want: wire.Response, got: msg.Tag}
	}
	if len(msg.Payload) != len(dst) {
		return false, fmt.Errorf("transport: fetch response size %d, want %d", len(msg.Payload), len(dst))
	}
	copy(dst, msg.Payload)
	return true, nil
}

// evictState is a MasterConn EvictHandle.
type evictState struct {
	conn net.Conn
}

func (m *MasterConn) EvictBegin(ctx context.Context, rank int, holderOffset int64, page []byte, dirty bool) (EvictHandle, error) {
	conn, err := m.connFor(rank)
	if err != nil {
		return nil, err
	}
	if !dirty {
		// Clean eviction: the victim is known unmodified since admission,
		// so the network write is skipped entirely (spec.md glossary).
		return &evictState{conn: conn}, nil
	}
	if err := wire.WriteOffset(conn, wire.PutOffset, uint64(holderOffset), m.heterogeneous); err != nil {
		return nil, fmt.Errorf("transport: sending PUT_OFFSET to rank %d: %w", rank, err)
	}
	if err := wire.WriteData(conn, wire.PutData, page); err != nil {
		return nil, fmt.Errorf("transport: sending PUT_DATA to rank %d: %w", rank, err)
	}
	return &evictState{conn: conn}, nil
}

// EvictPoll for message-passing is fire-and-forget: the holder does
// not ack a PUT_DATA, so completion is immediate once the write
// succeeded in EvictBegin.
func (m *MasterConn) EvictPoll(h EvictHandle) (bool, error) {
	if _, ok := h.(*evictState); !ok {
		return false, fmt.Errorf("transport: EvictPoll called with a non-evict handle")
	}
	return true, nil
}

func (m *MasterConn) Finalize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var firstErr error
	for rank, conn := range m.conns {
		if err := wire.WriteTerminate(conn); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("transport: sending TERMINATE to rank %d: %w", rank, err)
		}
		conn.Close()
	}
	m.conns = make(map[int]net.Conn)
	return firstErr
}

func (m *MasterConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, conn := range m.conns {
		conn.Close()
	}
	m.conns = make(map[int]net.Conn)
	return nil
}
