package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dsmmcken/jumbomem/internal/config"
	"github.com/dsmmcken/jumbomem/internal/engine"
	"github.com/dsmmcken/jumbomem/internal/peerserver"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	peerListenFlag string
	peerBufferFlag string
	peerMLockFlag  bool
)

func addPeerCommand(parent *cobra.Command) {
	peerCmd := &cobra.Command{
		Use:   "peer",
		Short: "Contribute this node's memory to a jumbomem run",
		Long:  "Listen for the master's connection and serve page fetch/evict requests against a local buffer until terminated.",
		Args:  cobra.NoArgs,
		RunE:  runPeer,
	}
	flags := peerCmd.Flags()
	flags.StringVar(&peerListenFlag, "listen", "0.0.0.0:0", "Address to listen on for the master's connection")
	flags.StringVar(&peerBufferFlag, "buffer-bytes", "", "Bytes of local memory to contribute (accepts k/m/g suffixes)")
	flags.BoolVar(&peerMLockFlag, "mlock", false, "Lock the contributed buffer into physical RAM")
	parent.AddCommand(peerCmd)
}

func runPeer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("peer: loading config: %w", err)
	}
	mlock := cfg.MLock || peerMLockFlag

	bufferBytes := cfg.SlaveMem
	if peerBufferFlag != "" {
		n, err := config.PercentOrAbsolute(peerBufferFlag, 0)
		if err != nil {
			return fmt.Errorf("peer: parsing --buffer-bytes: %w", err)
		}
		bufferBytes = n
	}
	if bufferBytes <= 0 {
		return fmt.Errorf("peer: no buffer size given (set --buffer-bytes or JUMBOMEM_SLAVEMEM)")
	}

	pageSize := cfg.PageSize
	if cfg.PageSizeAuto || pageSize == 0 {
		pageSize = int64(os.Getpagesize())
	}

	entry := logrus.NewEntry(log)
	caps := newCapabilities()

	if cfg.ReduceMem {
		reduced, err := engine.ReduceMemory(bufferBytes, pageSize, engine.TouchAndCountMajorFaults(caps, pageSize))
		if err != nil {
			entry.WithError(err).Warn("peer: REDUCEMEM failed, keeping requested buffer size")
		} else {
			entry.WithField("from", bufferBytes).WithField("to", reduced).Info("peer: REDUCEMEM reduced buffer size")
			bufferBytes = reduced
		}
	}

	srv, err := peerserver.New(entry, peerListenFlag, bufferBytes, pageSize, cfg.Heterogeneous, mlock, caps)
	if err != nil {
		return fmt.Errorf("peer: starting listener: %w", err)
	}
	defer srv.Close()

	entry.WithField("addr", srv.Addr()).WithField("buffer_bytes", bufferBytes).Info("peer: ready")
	fmt.Fprintln(cmd.OutOrStdout(), srv.Addr())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("peer: serving: %w", err)
	}
	return nil
}
