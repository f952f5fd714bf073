package engine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReduceMemoryShrinksUntilClean(t *testing.T) {
	calls := 0
	touch := func(candidate int64) (int64, error) {
		calls++
		if candidate > 1024 {
			return 1, nil // simulate paging at larger sizes
		}
		return 0, nil
	}
	got, err := ReduceMemory(4096, 512, touch)
	require.NoError(t, err)
	require.Equal(t, int64(1024), got)
	require.Greater(t, calls, 0)
}

func TestReduceMemoryAcceptsInitialSizeWhenClean(t *testing.T) {
	touch := func(candidate int64) (int64, error) { return 0, nil }
	got, err := ReduceMemory(8192, 4096, touch)
	require.NoError(t, err)
	require.Equal(t, int64(8192), got)
}

func TestReduceMemoryErrorsWhenNeverClean(t *testing.T) {
	touch := func(candidate int64) (int64, error) { return 1, nil }
	_, err := ReduceMemory(4096, 4096, touch)
	require.Error(t, err)
}
