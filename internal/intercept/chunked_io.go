package intercept

import "io"

// ChunkedCopier implements spec.md §4.7's adaptive bulk read/write:
// split a large transfer into chunks, pre-touching each chunk before
// the transfer so the kernel cannot fault mid-copy while internal
// locks are held. The copier has no notion of the local cache's size:
// a chunk is bounded only by the adaptive rule and by the bytes left
// in dst, so it may grow larger than the local cache. Chunk size starts at
// one OS page and adapts with a binary-search-like rule: double after
// MaxConsecutive successes, halve after MaxConsecutive failures, reset
// the consecutive counter whenever the previously successful size
// fails, and give up once it would fall below one page.
type ChunkedCopier struct {
	caps           Capabilities
	pageSize       int64
	maxConsecutive int

	chunkSize    int64
	consecutive  int
	lastOutcome  outcome
}

type outcome int

const (
	outcomeNone outcome = iota
	outcomeSuccess
	outcomeFailure
)

// NewChunkedCopier creates a copier starting at one page, escalating
// or backing off after maxConsecutive identical outcomes.
func NewChunkedCopier(caps Capabilities, pageSize int64, maxConsecutive int) *ChunkedCopier {
	return &ChunkedCopier{
		caps:           caps,
		pageSize:       pageSize,
		maxConsecutive: maxConsecutive,
		chunkSize:      pageSize,
	}
}

// ChunkSize returns the copier's current chunk size, for tests.
func (c *ChunkedCopier) ChunkSize() int64 { return c.chunkSize }

// transferFunc performs one chunk's worth of work, returning the
// number of bytes actually transferred and any transient error.
type transferFunc func(chunk []byte) (int, error)

// Copy reads from src into dst in adaptively sized, pre-touched
// chunks, returning the total bytes copied. It stops when dst is full,
// on io.EOF (success), or when the adaptive rule gives up, returning
// the last error; every other error is treated as transient and the
// chunk is retried, at a smaller size once the failures repeat (spec.md
// §7's "recovered locally" category).
func (c *ChunkedCopier) Copy(dst []byte, fill transferFunc) (int64, error) {
	var total int64
	for total < int64(len(dst)) {
		size := c.chunkSize
		if remaining := int64(len(dst)) - total; size > remaining {
			size = remaining
		}
		chunk := dst[total : total+size]
		c.caps.PreTouch(chunk, c.pageSize)

		n, err := fill(chunk)
		if err != nil && err != io.EOF {
			gaveUp := c.recordFailure()
			if gaveUp {
				return total, err
			}
			continue
		}
		total += int64(n)
		c.recordSuccess()
		if err == io.EOF {
			return total, nil
		}
	}
	return total, nil
}

func (c *ChunkedCopier) recordSuccess() {
	if c.lastOutcome == outcomeFailure {
		c.consecutive = 0
	}
	c.lastOutcome = outcomeSuccess
	c.consecutive++
	if c.consecutive >= c.maxConsecutive {
		c.chunkSize *= 2
		c.consecutive = 0
	}
}

// recordFailure applies the backoff rule and reports whether the
// adaptive size has already given up: it was at one page and still
// failed, so there is nowhere smaller left to try.
func (c *ChunkedCopier) recordFailure() (gaveUp bool) {
	if c.lastOutcome == outcomeSuccess {
		c.consecutive = 0
	}
	c.lastOutcome = outcomeFailure
	c.consecutive++
	if c.consecutive >= c.maxConsecutive {
		if c.chunkSize <= c.pageSize {
			return true
		}
		half := c.chunkSize / 2
		if half < c.pageSize {
			half = c.pageSize
		}
		c.chunkSize = half
		c.consecutive = 0
	}
	return false
}
