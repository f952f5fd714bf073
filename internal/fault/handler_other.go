//go:build !linux

package fault

import "fmt"

// Install is unavailable off Linux: the managed region's fault
// interception depends on SIGSEGV/mprotect semantics this package
// only implements for Linux (handler_linux.go).
func Install(h *Handler) error {
	return fmt.Errorf("fault: Install requires Linux")
}
