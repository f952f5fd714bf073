//go:build !linux

package threads

import "fmt"

// TgkillSignaler is unavailable off Linux; tgkill has no portable
// equivalent exposed by golang.org/x/sys/unix.
type TgkillSignaler struct{ Sig int }

func NewTgkillSignaler(sig int) TgkillSignaler { return TgkillSignaler{Sig: sig} }

func (s TgkillSignaler) Signal(osThreadID int) error {
	return fmt.Errorf("threads: tgkill signaling requires Linux")
}
