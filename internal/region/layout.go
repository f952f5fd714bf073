// Package region computes the addressing scheme of the managed global
// address space: which peer holds a given byte, and at what offset in
// that peer's buffer.
package region

import (
	"fmt"
	"strconv"
	"strings"
)

// Distribution selects how logical pages are spread across peers.
type Distribution int

const (
	// RoundRobin assigns holder = 1 + page_index mod num_peers.
	RoundRobin Distribution = iota
	// Block assigns holder = 1 + byte_offset / per_peer_bytes.
	Block
)

// Layout describes the global region's geometry. Rank 0 (the master)
// never holds data; peers are ranks [1, NumPeers].
type Layout struct {
	Base         uintptr
	PageSize     int64
	PerPeerBytes int64
	NumPeers     int
	Dist         Distribution
}

// Extent is the total size of the managed region.
func (l Layout) Extent() int64 {
	return l.PerPeerBytes * int64(l.NumPeers)
}

// NumPages returns the number of logical pages in the region.
func (l Layout) NumPages() int64 {
	return l.Extent() / l.PageSize
}

// PageIndex returns the logical page index containing the given
// region-relative byte offset.
func (l Layout) PageIndex(byteOffset int64) int64 {
	return byteOffset / l.PageSize
}

// Holder resolves the page index to (peer rank, offset within that
// peer's buffer). Rank is 1-based; rank 0 is the master and is never
// returned here.
func (l Layout) Holder(pageIndex int64) (rank int, holderOffset int64, err error) {
	if pageIndex < 0 || pageIndex >= l.NumPages() {
		return 0, 0, fmt.Errorf("page index %d out of range [0, %d)", pageIndex, l.NumPages())
	}
	switch l.Dist {
	case RoundRobin:
		r := int(pageIndex%int64(l.NumPeers)) + 1
		off := (pageIndex / int64(l.NumPeers)) * l.PageSize
		return r, off, nil
	case Block:
		byteOffset := pageIndex * l.PageSize
		r := int(byteOffset/l.PerPeerBytes) + 1
		off := byteOffset % l.PerPeerBytes
		return r, off, nil
	default:
		return 0, 0, fmt.Errorf("unknown distribution %d", l.Dist)
	}
}

// Contains reports whether a region-relative byte offset lies within
// [0, extent).
func (l Layout) Contains(byteOffset int64) bool {
	return byteOffset >= 0 && byteOffset < l.Extent()
}

// PageBase returns the region-relative byte offset of the start of the
// page containing byteOffset.
func (l Layout) PageBase(byteOffset int64) int64 {
	return (byteOffset / l.PageSize) * l.PageSize
}

// ParseBaseAddr resolves spec.md §4.1's BASEADDR override against a
// preferred base address: an empty string leaves preferred unchanged;
// a "+"/"-"-prefixed value is a signed delta off preferred; anything
// else is parsed as an absolute address (0x-prefixed hex accepted).
func ParseBaseAddr(raw string, preferred uintptr) (uintptr, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return preferred, nil
	}
	if raw[0] == '+' || raw[0] == '-' {
		delta, err := strconv.ParseInt(raw, 0, 64)
		if err != nil {
			return 0, fmt.Errorf("region: parsing BASEADDR delta %q: %w", raw, err)
		}
		return uintptr(int64(preferred) + delta), nil
	}
	abs, err := strconv.ParseUint(raw, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("region: parsing BASEADDR %q: %w", raw, err)
	}
	return uintptr(abs), nil
}

// ParseDistribution converts a config string into a Distribution.
func ParseDistribution(s string) (Distribution, error) {
	switch s {
	case "", "round-robin", "roundrobin":
		return RoundRobin, nil
	case "block":
		return Block, nil
	default:
		return 0, fmt.Errorf("unknown distribution %q", s)
	}
}
