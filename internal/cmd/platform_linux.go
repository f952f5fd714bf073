//go:build linux

package cmd

import (
	"github.com/dsmmcken/jumbomem/internal/intercept"
	"github.com/dsmmcken/jumbomem/internal/threads"
	"golang.org/x/sys/unix"
)

func newCapabilities() intercept.Capabilities { return intercept.NewReal() }

// newSignaler uses SIGURG, a signal no other part of the process
// installs a handler for by default, the same choice Go's own runtime
// preemption makes for the same reason.
func newSignaler() threads.Signaler { return threads.NewTgkillSignaler(int(unix.SIGURG)) }
