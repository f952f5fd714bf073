//go:build !linux

package cmd

import (
	"github.com/dsmmcken/jumbomem/internal/intercept"
	"github.com/dsmmcken/jumbomem/internal/threads"
)

func newCapabilities() intercept.Capabilities { return intercept.NewFake(0) }

func newSignaler() threads.Signaler { return threads.NewTgkillSignaler(0) }
