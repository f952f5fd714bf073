package pagetable

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInsertFindDelete(t *testing.T) {
	tb := New(4)
	tb.Insert(10, Payload{})
	tb.Insert(20, Payload{Referenced: true})

	require.Equal(t, 2, tb.Len())
	p := tb.Find(20)
	require.NotNil(t, p)
	require.True(t, p.Referenced)

	require.Nil(t, tb.Find(99))

	tb.Delete(10)
	require.Equal(t, 1, tb.Len())
	require.Nil(t, tb.Find(10))
}

func TestCapacityEnforced(t *testing.T) {
	tb := New(2)
	tb.Insert(1, Payload{})
	tb.Insert(2, Payload{})

	require.Panics(t, func() {
		tb.Insert(3, Payload{})
	})
}

func TestDoubleDeletePanics(t *testing.T) {
	tb := New(2)
	tb.Insert(1, Payload{})
	tb.Delete(1)
	require.Panics(t, func() {
		tb.Delete(1)
	})
}

func TestDeleteAbsentPanics(t *testing.T) {
	tb := New(2)
	require.Panics(t, func() {
		tb.Delete(42)
	})
}

func TestSlotReuseAfterDelete(t *testing.T) {
	tb := New(2)
	tb.Insert(1, Payload{})
	tb.Insert(2, Payload{})
	tb.Delete(1)
	// Immediately followed by insert — must succeed and reuse the slot.
	tb.Insert(3, Payload{})
	require.Equal(t, 2, tb.Len())
	require.NotNil(t, tb.Find(2))
	require.NotNil(t, tb.Find(3))
	require.Nil(t, tb.Find(1))
}

func TestAtRankCoversEveryResident(t *testing.T) {
	tb := New(5)
	want := map[uint32]bool{}
	for _, idx := range []uint32{3, 7, 11, 15} {
		tb.Insert(idx, Payload{})
		want[idx] = true
	}

	seen := map[uint32]bool{}
	for r := 0; r < tb.Len(); r++ {
		idx, payload, err := tb.At(r)
		require.NoError(t, err)
		require.NotNil(t, payload)
		require.False(t, seen[idx], "index %d returned for more than one rank", idx)
		seen[idx] = true
	}
	require.Equal(t, want, seen)

	_, _, err := tb.At(tb.Len())
	require.Error(t, err)
}

func TestInsertDuplicatePanics(t *testing.T) {
	tb := New(2)
	tb.Insert(1, Payload{})
	require.Panics(t, func() {
		tb.Insert(1, Payload{})
	})
}
