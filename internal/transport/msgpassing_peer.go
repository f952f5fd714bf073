package transport

import (
	"context"
	"fmt"
	"net"

	"github.com/dsmmcken/jumbomem/internal/wire"
	"github.com/sirupsen/logrus"
)

// Store is the peer-local page buffer a PeerServer reads/writes in
// response to master requests. Offsets are peer-relative byte offsets
// into the peer's contributed memory.
type Store interface {
	ReadPage(offset int64, dst []byte) error
	WritePage(offset int64, src []byte) error
}

// PeerConn is the message-passing peer side: it accepts a single
// long-lived connection from the master and serves GET/PUT_OFFSET/
// PUT_DATA/TERMINATE requests until TERMINATE closes the loop. This
// mirrors pool_linux.go's accept-then-serve loop shape, simplified to
// one connection since a peer only ever talks to its master.
type PeerConn struct {
	log      *logrus.Entry
	listener net.Listener
	store    Store
	pageSize int64

	heterogeneous bool
}

// NewPeerConn creates a peer transport listening on addr.
func NewPeerConn(log *logrus.Entry, addr string, store Store, pageSize int64, heterogeneous bool) (*PeerConn, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: listening on %s: %w", addr, err)
	}
	return &PeerConn{
		log:           log,
		listener:      ln,
		store:         store,
		pageSize:      pageSize,
		heterogeneous: heterogeneous,
	}, nil
}

// Addr returns the resolved listen address, used to report this
// peer's roster entry back to the master.
func (p *PeerConn) Addr() string { return p.listener.Addr().String() }

// Serve accepts the master's connection and processes requests until
// TERMINATE or the connection closes. It blocks; callers run it in its
// own goroutine.
func (p *PeerConn) Serve(ctx context.Context) error {
	conn, err := p.listener.Accept()
	if err != nil {
		return fmt.Errorf("transport: accepting master connection: %w", err)
	}
	defer conn.Close()
	p.log.Debug("accepted master connection")
	return p.serveConn(conn)
}

// serveConn runs the request loop over an already-established
// connection; split out from Serve so tests can drive it over a
// net.Pipe without a listener.
func (p *PeerConn) serveConn(conn net.Conn) error {
	var pendingOffset int64
	havePendingOffset := false

	for {
		msg, err := wire.ReadMessage(conn, p.heterogeneous)
		if err != nil {
			return fmt.Errorf("transport: reading request: %w", err)
		}

		switch msg.Tag {
		case wire.Terminate:
			p.log.Debug("received TERMINATE")
			return nil

		case wire.Get:
			page := make([]byte, p.pageSize)
			if err := p.store.ReadPage(int64(msg.Offset), page); err != nil {
				return fmt.Errorf("transport: reading page at offset %d: %w", msg.Offset, err)
			}
			if err := wire.WriteData(conn, wire.Response, page); err != nil {
				return fmt.Errorf("transport: sending RESPONSE: %w", err)
			}

		case wire.PutOffset:
			pendingOffset = int64(msg.Offset)
			havePendingOffset = true

		case wire.PutData:
			if !havePendingOffset {
				return fmt.Errorf("transport: PUT_DATA without a preceding PUT_OFFSET")
			}
			if err := p.store.WritePage(pendingOffset, msg.Payload); err != nil {
				return fmt.Errorf("transport: writing page at offset %d: %w", pendingOffset, err)
			}
			havePendingOffset = false

		default:
			return fmt.Errorf("transport: unexpected tag %s from master", msg.Tag)
		}
	}
}

// Close stops accepting new connections.
func (p *PeerConn) Close() error {
	return p.listener.Close()
}
