//go:build linux

package threads

import "golang.org/x/sys/unix"

// TgkillSignaler delivers sig to a specific OS thread within this
// process via tgkill, the real Signaler a running engine hands to
// Freeze (spec.md §4.4 step 3's "signal every other thread").
type TgkillSignaler struct {
	Sig int
}

// NewTgkillSignaler builds a Signaler delivering sig (e.g. SIGURG, a
// signal no other part of the process installs a handler for).
func NewTgkillSignaler(sig int) TgkillSignaler {
	return TgkillSignaler{Sig: sig}
}

func (s TgkillSignaler) Signal(osThreadID int) error {
	return unix.Tgkill(unix.Getpid(), osThreadID, unix.Signal(s.Sig))
}
