package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/dsmmcken/jumbomem/internal/region"
	"github.com/dsmmcken/jumbomem/internal/transport"
)

// PeerReport is one peer's self-reported capacity, gathered during
// negotiation (spec.md §4.1).
type PeerReport struct {
	Rank      int
	Addr      string
	FreeBytes int64
}

// NegotiatePerPeerBytes applies spec.md §4.1's "all peers reduce to the
// minimum" rule: each peer probes its own available RAM and optionally
// applies a reserve; the master takes the smallest result across the
// roster so every peer contributes an equal share.
func NegotiatePerPeerBytes(reports []PeerReport, pageSize int64) (int64, error) {
	if len(reports) == 0 {
		return 0, fmt.Errorf("engine: no peers reported capacity")
	}
	min := reports[0].FreeBytes
	for _, r := range reports[1:] {
		if r.FreeBytes < min {
			min = r.FreeBytes
		}
	}
	if min < pageSize {
		return 0, fmt.Errorf("engine: smallest peer capacity %d bytes is below one page (%d bytes)", min, pageSize)
	}
	perPeer := (min / pageSize) * pageSize
	return perPeer, nil
}

// LocalPages implements spec.md §4.1's sizing formula: the lesser of
// how many pages the master's own free memory admits and a ceiling
// derived from the maximum number of distinct kernel mappings the
// process is willing to create.
func LocalPages(masterFreeBytes, pageSize int64, maxMappings int) int {
	byMemory := masterFreeBytes / pageSize
	byMappings := int64(2*maxMappings - 1)
	if byMemory < byMappings {
		return int(byMemory)
	}
	return int(byMappings)
}

// BuildLayout resolves the final region.Layout once per-peer capacity
// and distribution are known.
func BuildLayout(base uintptr, pageSize, perPeerBytes int64, numPeers int, dist region.Distribution) region.Layout {
	return region.Layout{
		Base:         base,
		PageSize:     pageSize,
		PerPeerBytes: perPeerBytes,
		NumPeers:     numPeers,
		Dist:         dist,
	}
}

// DialRoster connects the master's transport to every peer in roster,
// in the order roster lists them, bounding the whole negotiation with
// ctx's deadline.
func DialRoster(ctx context.Context, m *transport.MasterConn, roster []transport.RosterEntry) error {
	for _, entry := range roster {
		select {
		case <-ctx.Done():
			return fmt.Errorf("engine: dialing roster: %w", ctx.Err())
		default:
		}
		if err := m.Dial(ctx, entry.Rank, entry.Addr); err != nil {
			return err
		}
	}
	return nil
}

// defaultNegotiationTimeout is a 30-second negotiation bound in the
// spirit of spec.md §7's "environmental failures are fatal at startup"
// classification. Nothing in this package applies it: DialRoster is
// bounded only by the ctx its caller passes in.
const defaultNegotiationTimeout = 30 * time.Second
