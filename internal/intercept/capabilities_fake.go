package intercept

import (
	"bytes"
	"fmt"
	"io"
	"sync"
)

// Fake is an in-memory Capabilities double: no real mappings or
// signals, just bookkeeping sufficient to unit test the allocator,
// region layout, and chunked I/O logic without a Linux kernel. Used on
// every platform for tests, and as the only implementation on
// non-Linux builds.
type Fake struct {
	mu sync.Mutex

	nextBase  uintptr
	reserved  map[uintptr]int64
	protected map[uintptr]Prot

	RecordedMasks []MaskCall
}

// MaskCall records one SignalMaskRequest invocation for assertions in
// tests.
type MaskCall struct {
	Internal    bool
	Sig         int
	WantBlocked bool
	Applied     bool
}

// NewFake creates a fake capability layer. nextBase seeds the address
// ReserveRegion hands out when the caller passes base=0.
func NewFake(nextBase uintptr) *Fake {
	return &Fake{
		nextBase:  nextBase,
		reserved:  make(map[uintptr]int64),
		protected: make(map[uintptr]Prot),
	}
}

func (f *Fake) ReserveRegion(base uintptr, extent int64) (uintptr, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	addr := base
	if addr == 0 {
		addr = f.nextBase
		f.nextBase += uintptr(extent)
	}
	for existingBase, existingExtent := range f.reserved {
		if overlaps(addr, extent, existingBase, existingExtent) {
			return 0, fmt.Errorf("intercept(fake): region [%#x,%#x) overlaps existing reservation [%#x,%#x)",
				addr, addr+uintptr(extent), existingBase, existingBase+uintptr(existingExtent))
		}
	}
	f.reserved[addr] = extent
	return addr, nil
}

func overlaps(aBase uintptr, aLen int64, bBase uintptr, bLen int64) bool {
	aEnd := aBase + uintptr(aLen)
	bEnd := bBase + uintptr(bLen)
	return aBase < bEnd && bBase < aEnd
}

func (f *Fake) Protect(addr uintptr, length int64, prot Prot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.protected[addr] = prot
	return nil
}

// ProtectionOf returns the last protection recorded for addr, for
// test assertions.
func (f *Fake) ProtectionOf(addr uintptr) (Prot, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.protected[addr]
	return p, ok
}

func (f *Fake) SignalMaskRequest(internal bool, sig int, wantBlocked bool) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	applied := true
	const sigsegv = 11
	if !internal && sig == sigsegv {
		applied = false
	}
	f.RecordedMasks = append(f.RecordedMasks, MaskCall{Internal: internal, Sig: sig, WantBlocked: wantBlocked, Applied: applied})
	return applied, nil
}

func (f *Fake) OpenMeminfo(totalBytes int64) io.Reader {
	totalKiB := totalBytes / 1024
	body := fmt.Sprintf("MemTotal:       %d kB\nMemFree:        %d kB\nMemAvailable:   %d kB\n",
		totalKiB, totalKiB, totalKiB)
	return bytes.NewReader([]byte(body))
}

func (f *Fake) PreTouch(buf []byte, pageSize int64) {
	if pageSize <= 0 {
		pageSize = 4096
	}
	for off := int64(0); off < int64(len(buf)); off += pageSize {
		_ = buf[off]
	}
}
