//go:build !linux

package engine

import "github.com/dsmmcken/jumbomem/internal/intercept"

// TouchAndCountMajorFaults is a no-op probe off Linux: getrusage's
// major-fault counters aren't wired up, so every candidate reports
// clean and REDUCEMEM keeps the requested size.
func TouchAndCountMajorFaults(caps intercept.Capabilities, pageSize int64) func(int64) (int64, error) {
	return func(candidate int64) (int64, error) {
		buf := make([]byte, candidate)
		caps.PreTouch(buf, pageSize)
		return 0, nil
	}
}
