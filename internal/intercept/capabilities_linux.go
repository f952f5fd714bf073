//go:build linux

package intercept

import (
	"bytes"
	"fmt"
	"io"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Real is the Linux Capabilities implementation, backed by
// golang.org/x/sys/unix the way uffd_linux.go drives mmap/madvise and
// raw recvmsg directly rather than through a higher-level wrapper.
type Real struct{}

// NewReal returns the Linux capability implementation.
func NewReal() Real { return Real{} }

// ReserveRegion mmaps an anonymous, no-access range. When base is
// nonzero it is requested via MAP_FIXED_NOREPLACE so a collision
// surfaces as an error instead of silently clobbering an existing
// mapping; the caller falls back to an unhinted reservation on
// failure (spec.md §4.1's "on failure an arbitrary location is
// accepted unless the override forbids it").
func (Real) ReserveRegion(base uintptr, extent int64) (uintptr, error) {
	flags := unix.MAP_PRIVATE | unix.MAP_ANON
	if base != 0 {
		flags |= unix.MAP_FIXED_NOREPLACE
	}
	addr, _, errno := unix.Syscall6(unix.SYS_MMAP, base, uintptr(extent),
		unix.PROT_NONE, uintptr(flags), ^uintptr(0), 0)
	if errno != 0 {
		return 0, fmt.Errorf("intercept: mmap reserving %d bytes at %#x: %w", extent, base, errno)
	}
	return addr, nil
}

func (Real) Protect(addr uintptr, length int64, prot Prot) error {
	var flag int
	switch prot {
	case ProtNone:
		flag = unix.PROT_NONE
	case ProtRead:
		flag = unix.PROT_READ
	case ProtReadWrite:
		flag = unix.PROT_READ | unix.PROT_WRITE
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(addr)), int(length))
	if err := unix.Mprotect(b, flag); err != nil {
		return fmt.Errorf("intercept: mprotect: %w", err)
	}
	return nil
}

// SignalMaskRequest implements spec.md §4.7's signal-installation
// interception: a non-internal caller's request to mask SIGSEGV is
// recorded but never applied, and any other signal's mask has SIGSEGV
// stripped so it can never be accidentally blocked.
func (Real) SignalMaskRequest(internal bool, sig int, wantBlocked bool) (bool, error) {
	if !internal && sig == int(unix.SIGSEGV) {
		return false, nil
	}

	var set unix.Sigset_t
	word := (sig - 1) / 64
	bit := uint64(1) << uint((sig-1)%64)
	set.Val[word] |= bit
	if !internal {
		// Strip SIGSEGV from any mask an external caller installs.
		segWord := (int(unix.SIGSEGV) - 1) / 64
		segBit := uint64(1) << uint((int(unix.SIGSEGV)-1)%64)
		set.Val[segWord] &^= segBit
	}

	how := unix.SIG_UNBLOCK
	if wantBlocked {
		how = unix.SIG_BLOCK
	}
	if err := unix.PthreadSigmask(how, &set, nil); err != nil {
		return false, fmt.Errorf("intercept: pthread_sigmask: %w", err)
	}
	return true, nil
}

func (Real) OpenMeminfo(totalBytes int64) io.Reader {
	totalKiB := totalBytes / 1024
	body := fmt.Sprintf("MemTotal:       %d kB\nMemFree:        %d kB\nMemAvailable:   %d kB\n",
		totalKiB, totalKiB, totalKiB)
	return bytes.NewReader([]byte(body))
}

func (Real) PreTouch(buf []byte, pageSize int64) {
	if pageSize <= 0 {
		pageSize = 4096
	}
	for off := int64(0); off < int64(len(buf)); off += pageSize {
		_ = buf[off]
	}
}
