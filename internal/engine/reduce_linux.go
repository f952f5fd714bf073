//go:build linux

package engine

import (
	"fmt"

	"github.com/dsmmcken/jumbomem/internal/intercept"
	"golang.org/x/sys/unix"
)

// TouchAndCountMajorFaults returns a ReduceMemory probe that backs and
// touches a candidate-sized buffer through caps and reports the major
// page faults the touch incurred, bracketed by getrusage.
func TouchAndCountMajorFaults(caps intercept.Capabilities, pageSize int64) func(int64) (int64, error) {
	return func(candidate int64) (int64, error) {
		var before, after unix.Rusage
		if err := unix.Getrusage(unix.RUSAGE_SELF, &before); err != nil {
			return 0, fmt.Errorf("getrusage before touch: %w", err)
		}
		buf := make([]byte, candidate)
		caps.PreTouch(buf, pageSize)
		if err := unix.Getrusage(unix.RUSAGE_SELF, &after); err != nil {
			return 0, fmt.Errorf("getrusage after touch: %w", err)
		}
		return after.Majflt - before.Majflt, nil
	}
}
