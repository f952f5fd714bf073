package engine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNegotiatePerPeerBytesTakesMinimum(t *testing.T) {
	reports := []PeerReport{
		{Rank: 1, FreeBytes: 2 * 1024 * 1024},
		{Rank: 2, FreeBytes: 1024 * 1024},
		{Rank: 3, FreeBytes: 4 * 1024 * 1024},
	}
	got, err := NegotiatePerPeerBytes(reports, 4096)
	require.NoError(t, err)
	require.Equal(t, int64(1024*1024), got)
}

func TestNegotiatePerPeerBytesRoundsDownToPageMultiple(t *testing.T) {
	reports := []PeerReport{{Rank: 1, FreeBytes: 4096*3 + 100}}
	got, err := NegotiatePerPeerBytes(reports, 4096)
	require.NoError(t, err)
	require.Equal(t, int64(4096*3), got)
}

func TestNegotiatePerPeerBytesBelowOnePageErrors(t *testing.T) {
	reports := []PeerReport{{Rank: 1, FreeBytes: 100}}
	_, err := NegotiatePerPeerBytes(reports, 4096)
	require.Error(t, err)
}

func TestLocalPagesCappedByMappings(t *testing.T) {
	n := LocalPages(1<<30, 4096, 10) // plenty of memory, small mapping ceiling
	require.Equal(t, 19, n)          // 2*10-1
}

func TestLocalPagesCappedByMemory(t *testing.T) {
	n := LocalPages(4096*5, 4096, 1000)
	require.Equal(t, 5, n)
}
