package asyncio

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSlotLifecycle(t *testing.T) {
	s := NewSlot(Fetch, 4096)
	require.False(t, s.Active())
	require.Equal(t, int64(-1), s.Target())

	s.Begin(128, "handle-1")
	require.True(t, s.Active())
	require.Equal(t, int64(128), s.Target())
	require.Equal(t, "handle-1", s.Handle())

	s.End()
	require.False(t, s.Active())
	require.Equal(t, int64(-1), s.Target())
}

func TestSlotBeginTwicePanics(t *testing.T) {
	s := NewSlot(Evict, 4096)
	s.Begin(0, nil)
	require.Panics(t, func() {
		s.Begin(4096, nil)
	})
}

func TestSlotEndWhenIdlePanics(t *testing.T) {
	s := NewSlot(Prefetch, 4096)
	require.Panics(t, func() {
		s.End()
	})
}

func TestSlotDiscardIsIdempotent(t *testing.T) {
	s := NewSlot(Prefetch, 4096)
	s.Discard() // no-op when already idle
	s.Begin(256, nil)
	s.Discard()
	require.False(t, s.Active())
	s.Discard() // still safe
}
