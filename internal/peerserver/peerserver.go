// Package peerserver implements the peer side of the deployment: a
// process that contributes a fixed buffer of physical memory, locks it
// if requested, and serves GET/PUT requests from the master until
// TERMINATE, per spec.md §3's peer-buffer ownership note.
package peerserver

import (
	"context"
	"fmt"

	"github.com/dsmmcken/jumbomem/internal/intercept"
	"github.com/dsmmcken/jumbomem/internal/transport"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// BufferStore is the peer's in-process page buffer: a single
// contiguous byte slice addressed by peer-relative offset, the
// simplest thing that satisfies transport.Store.
type BufferStore struct {
	buf    []byte
	locked bool
}

// NewBufferStore allocates a peer buffer of size bytes and pre-touches
// it through caps so the kernel commits the pages up front rather than
// faulting later while serving a GET (spec.md §4.7's pre-touch rule
// applied to the peer side, not just the master's bulk I/O path). When
// mlock is set the buffer is locked into physical RAM for its whole
// lifetime, mirroring uffd_linux.go's use of raw syscalls to pin
// mapped memory rather than leaving residency to the kernel's whim.
func NewBufferStore(size int64, pageSize int64, caps intercept.Capabilities, mlock bool) (*BufferStore, error) {
	buf := make([]byte, size)
	caps.PreTouch(buf, pageSize)
	s := &BufferStore{buf: buf}
	if mlock && size > 0 {
		if err := unix.Mlock(buf); err != nil {
			return nil, fmt.Errorf("peerserver: mlock %d bytes: %w", size, err)
		}
		s.locked = true
	}
	return s, nil
}

// Close unlocks the buffer's memory, if it was locked.
func (s *BufferStore) Close() error {
	if s.locked {
		s.locked = false
		return unix.Munlock(s.buf)
	}
	return nil
}

func (s *BufferStore) ReadPage(offset int64, dst []byte) error {
	if offset < 0 || offset+int64(len(dst)) > int64(len(s.buf)) {
		return fmt.Errorf("peerserver: read offset %d length %d out of range (buffer %d bytes)", offset, len(dst), len(s.buf))
	}
	copy(dst, s.buf[offset:offset+int64(len(dst))])
	return nil
}

func (s *BufferStore) WritePage(offset int64, src []byte) error {
	if offset < 0 || offset+int64(len(src)) > int64(len(s.buf)) {
		return fmt.Errorf("peerserver: write offset %d length %d out of range (buffer %d bytes)", offset, len(src), len(s.buf))
	}
	copy(s.buf[offset:offset+int64(len(src))], src)
	return nil
}

// Server owns one peer's buffer and transport listener for the life
// of a run.
type Server struct {
	log   *logrus.Entry
	conn  *transport.PeerConn
	store *BufferStore
}

// New creates a peer server listening on addr, contributing sizeBytes
// of buffer split into pageSize pages. When mlock is set the buffer is
// locked into physical RAM for the server's whole lifetime.
func New(log *logrus.Entry, addr string, sizeBytes, pageSize int64, heterogeneous, mlock bool, caps intercept.Capabilities) (*Server, error) {
	store, err := NewBufferStore(sizeBytes, pageSize, caps, mlock)
	if err != nil {
		return nil, err
	}
	conn, err := transport.NewPeerConn(log, addr, store, pageSize, heterogeneous)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("peerserver: creating listener: %w", err)
	}
	return &Server{log: log, conn: conn, store: store}, nil
}

// Addr returns the resolved listen address, reported to the master as
// this peer's roster entry.
func (s *Server) Addr() string { return s.conn.Addr() }

// Run serves the master's connection until TERMINATE or the context is
// cancelled. Buffers live until this returns (spec.md §3: "peer
// buffers ... live until the peer receives a termination command").
func (s *Server) Run(ctx context.Context) error {
	done := make(chan error, 1)
	go func() { done <- s.conn.Serve(ctx) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		s.conn.Close()
		<-done
		return ctx.Err()
	}
}

// Close releases the listener and unlocks the buffer, without waiting
// for TERMINATE.
func (s *Server) Close() error {
	err := s.conn.Close()
	if storeErr := s.store.Close(); storeErr != nil && err == nil {
		err = storeErr
	}
	return err
}
