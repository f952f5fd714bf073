package region

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHolderRoundRobin(t *testing.T) {
	l := Layout{PageSize: 4096, PerPeerBytes: 4096 * 4, NumPeers: 3, Dist: RoundRobin}

	rank, off, err := l.Holder(0)
	require.NoError(t, err)
	require.Equal(t, 1, rank)
	require.Equal(t, int64(0), off)

	rank, off, err = l.Holder(1)
	require.NoError(t, err)
	require.Equal(t, 2, rank)
	require.Equal(t, int64(0), off)

	rank, off, err = l.Holder(3)
	require.NoError(t, err)
	require.Equal(t, 1, rank)
	require.Equal(t, int64(4096), off)
}

func TestHolderBlock(t *testing.T) {
	l := Layout{PageSize: 4096, PerPeerBytes: 4096 * 4, NumPeers: 2, Dist: Block}

	rank, off, err := l.Holder(0)
	require.NoError(t, err)
	require.Equal(t, 1, rank)
	require.Equal(t, int64(0), off)

	// page 4 is the first page of peer 2's buffer
	rank, off, err = l.Holder(4)
	require.NoError(t, err)
	require.Equal(t, 2, rank)
	require.Equal(t, int64(0), off)
}

func TestHolderOutOfRange(t *testing.T) {
	l := Layout{PageSize: 4096, PerPeerBytes: 4096 * 4, NumPeers: 2, Dist: Block}
	_, _, err := l.Holder(8)
	require.Error(t, err)
}

func TestParseBaseAddrEmptyReturnsPreferred(t *testing.T) {
	got, err := ParseBaseAddr("", 0x1000)
	require.NoError(t, err)
	require.Equal(t, uintptr(0x1000), got)
}

func TestParseBaseAddrAbsoluteHex(t *testing.T) {
	got, err := ParseBaseAddr("0x400000", 0x1000)
	require.NoError(t, err)
	require.Equal(t, uintptr(0x400000), got)
}

func TestParseBaseAddrSignedDelta(t *testing.T) {
	got, err := ParseBaseAddr("+0x1000", 0x400000)
	require.NoError(t, err)
	require.Equal(t, uintptr(0x401000), got)

	got, err = ParseBaseAddr("-4096", 0x400000)
	require.NoError(t, err)
	require.Equal(t, uintptr(0x400000-4096), got)
}

func TestParseBaseAddrRejectsGarbage(t *testing.T) {
	_, err := ParseBaseAddr("not-an-address", 0)
	require.Error(t, err)
}

func TestHolderRoundTrip(t *testing.T) {
	// §8 invariant: holder(i) and holder_offset(i) round-trip across both
	// distributions for every page index in the region.
	for _, dist := range []Distribution{RoundRobin, Block} {
		l := Layout{PageSize: 256, PerPeerBytes: 256 * 10, NumPeers: 4, Dist: dist}
		seen := map[[2]int64]bool{}
		for i := int64(0); i < l.NumPages(); i++ {
			rank, off, err := l.Holder(i)
			require.NoError(t, err)
			require.GreaterOrEqual(t, rank, 1)
			require.LessOrEqual(t, rank, l.NumPeers)
			key := [2]int64{int64(rank), off}
			require.False(t, seen[key], "duplicate (holder, offset) for distinct page indices")
			seen[key] = true
		}
	}
}
