package alloc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExternalHeapBumpAllocation(t *testing.T) {
	h := NewExternalHeap(0x10000, 4096, 8)
	a, err := h.Alloc(10)
	require.NoError(t, err)
	require.Equal(t, uintptr(0x10000), a)

	b, err := h.Alloc(10)
	require.NoError(t, err)
	require.Equal(t, uintptr(0x10000+16), b, "second allocation must start after the first, rounded up to align")
}

func TestExternalHeapOutOfSpace(t *testing.T) {
	h := NewExternalHeap(0, 16, 1)
	_, err := h.Alloc(16)
	require.NoError(t, err)
	_, err = h.Alloc(1)
	require.Error(t, err)
	var oos *ErrOutOfSpace
	require.ErrorAs(t, err, &oos)
}

func TestExternalHeapContains(t *testing.T) {
	h := NewExternalHeap(0x1000, 0x1000, 1)
	require.True(t, h.Contains(0x1000))
	require.True(t, h.Contains(0x1fff))
	require.False(t, h.Contains(0x2000))
	require.False(t, h.Contains(0xfff))
}

func TestInternalHeapNeverLandsInManagedRegion(t *testing.T) {
	ext := NewExternalHeap(0x10000, 0x10000, 8)
	internal := NewInternalHeap(64, ext.Contains)

	buf, addr, err := internal.Alloc(32)
	require.NoError(t, err)
	require.Len(t, buf, 32)
	require.False(t, ext.Contains(addr), "internal allocations must never land in the external heap's range")
}

func TestInternalHeapGrowsSlabsAcrossBoundary(t *testing.T) {
	internal := NewInternalHeap(16, nil)
	_, _, err := internal.Alloc(10)
	require.NoError(t, err)
	_, _, err = internal.Alloc(10) // forces a new slab
	require.NoError(t, err)
	require.Len(t, internal.slabs, 2)
}

func TestInternalHeapOversizedRequestGetsDedicatedSlab(t *testing.T) {
	internal := NewInternalHeap(16, nil)
	buf, _, err := internal.Alloc(1024)
	require.NoError(t, err)
	require.Len(t, buf, 1024)
}

func TestCheckDisjointAcceptsWellFormedHeap(t *testing.T) {
	ext := NewExternalHeap(0x10000, 0x1000, 8)
	require.NoError(t, CheckDisjoint(ext))
}
