package intercept

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChunkedCopierDoublesOnSuccess(t *testing.T) {
	caps := NewFake(0)
	c := NewChunkedCopier(caps, 4096, 3)

	dst := make([]byte, 64*1024*1024)
	var offset int
	fill := func(chunk []byte) (int, error) {
		offset += len(chunk)
		if offset >= len(dst) {
			return len(chunk), io.EOF
		}
		return len(chunk), nil
	}

	n, err := c.Copy(dst, fill)
	require.NoError(t, err)
	require.Equal(t, int64(len(dst)), n)
	require.Greater(t, c.ChunkSize(), int64(4096), "chunk size must grow after repeated successes")
}

func TestChunkedCopierHalvesOnFailureThenRecovers(t *testing.T) {
	caps := NewFake(0)
	c := NewChunkedCopier(caps, 4096, 2)
	c.chunkSize = 32768

	failuresLeft := 4
	dst := make([]byte, 1024*1024)
	var offset int
	smallest := c.ChunkSize()
	fill := func(chunk []byte) (int, error) {
		if int64(len(chunk)) < smallest {
			smallest = int64(len(chunk))
		}
		if failuresLeft > 0 {
			failuresLeft--
			return 0, require.AnError
		}
		offset += len(chunk)
		if offset >= len(dst) {
			return len(chunk), io.EOF
		}
		return len(chunk), nil
	}

	n, err := c.Copy(dst, fill)
	require.NoError(t, err)
	require.Equal(t, int64(len(dst)), n)
	// Four failures at maxConsecutive=2 halve 32768 twice, to 8192;
	// the successes that follow double it back up, so the shrink shows
	// in the chunks handed to fill, not in the final ChunkSize.
	require.Equal(t, int64(8192), smallest, "chunk size must shrink after repeated failures")
}

func TestChunkedCopierGivesUpBelowOnePage(t *testing.T) {
	caps := NewFake(0)
	c := NewChunkedCopier(caps, 4096, 1)

	dst := make([]byte, 4096)
	fill := func(chunk []byte) (int, error) {
		return 0, require.AnError
	}

	_, err := c.Copy(dst, fill)
	require.Error(t, err, "a chunk size already at one page that keeps failing must give up")
}

// touchCounter counts PreTouch calls on top of the in-memory fake.
type touchCounter struct {
	*Fake
	touches int
}

func (tc *touchCounter) PreTouch(buf []byte, pageSize int64) {
	tc.touches++
	tc.Fake.PreTouch(buf, pageSize)
}

func TestChunkedCopierPreTouchesEachChunk(t *testing.T) {
	caps := &touchCounter{Fake: NewFake(0)}
	c := NewChunkedCopier(caps, 4096, 100)

	dst := make([]byte, 8192)
	fills := 0
	fill := func(chunk []byte) (int, error) {
		fills++
		if fills == 2 {
			return len(chunk), io.EOF
		}
		return len(chunk), nil
	}
	_, err := c.Copy(dst, fill)
	require.NoError(t, err)
	require.Equal(t, fills, caps.touches, "every chunk handed to fill must be pre-touched first")
}
