package engine

import "fmt"

// ReduceMemory implements spec.md §4.1's REDUCEMEM empirical cache-size
// reduction, shared between the master's local_pages sizing and a
// peer's contributed buffer: touch backs and touches a candidate-sized
// buffer and reports the major page faults the touch incurred. A
// nonzero count means the kernel started paging the candidate out, so
// it halves and the touch repeats until a size comes back clean or
// only one page remains.
func ReduceMemory(size, pageSize int64, touch func(candidate int64) (majorFaults int64, err error)) (int64, error) {
	if size < pageSize {
		return size, nil
	}
	candidate := size
	for candidate >= pageSize {
		faults, err := touch(candidate)
		if err != nil {
			return 0, fmt.Errorf("engine: touching %d bytes for REDUCEMEM: %w", candidate, err)
		}
		if faults == 0 {
			return candidate, nil
		}
		candidate /= 2
	}
	return 0, fmt.Errorf("engine: no candidate size avoided major faults")
}
