package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/dsmmcken/jumbomem/internal/config"
	"github.com/dsmmcken/jumbomem/internal/discovery"
	"github.com/dsmmcken/jumbomem/internal/engine"
	"github.com/dsmmcken/jumbomem/internal/intercept"
	"github.com/dsmmcken/jumbomem/internal/region"
	"github.com/dsmmcken/jumbomem/internal/transport"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	masterPageSizeFlag string
	masterPolicyFlag   string
	masterPrefetchFlag string
	masterDistFlag     string
	masterPeersFlag    []string
	masterRosterFlag   string
)

func addMasterCommand(parent *cobra.Command) {
	masterCmd := &cobra.Command{
		Use:   "master",
		Short: "Run the managing process for a jumbomem region",
		Long: `Negotiate peer capacity, build the global address space, and serve as
the single process whose page faults are serviced over the network.

Peers are given with repeated --peer rank=address=bytes flags, e.g.
--peer 1=10.0.0.2:9100=2147483648. The roster is also saved to
--roster-file (default: the config directory) for jumbomem rank-scan.`,
		Args: cobra.NoArgs,
		RunE: runMaster,
	}
	flags := masterCmd.Flags()
	flags.StringVar(&masterPageSizeFlag, "pagesize", "", "Page size in bytes (accepts k/m/g; default: OS page size)")
	flags.StringVar(&masterPolicyFlag, "policy", "", "Replacement policy: fifo|random|nre|nru")
	flags.StringVar(&masterPrefetchFlag, "prefetch", "", "Prefetch mode: none|next|delta")
	flags.StringVar(&masterDistFlag, "dist", "round-robin", "Page distribution: round-robin|block")
	flags.StringArrayVar(&masterPeersFlag, "peer", nil, "rank=address=bytes, repeatable")
	flags.StringVar(&masterRosterFlag, "roster-file", "", "Where to persist the negotiated roster (default: <config-dir>/roster.json)")
	parent.AddCommand(masterCmd)
}

func runMaster(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("master: loading config: %w", err)
	}
	if masterPolicyFlag != "" {
		cfg.Policy = masterPolicyFlag
	}
	if masterPrefetchFlag != "" {
		cfg.Prefetch = masterPrefetchFlag
	}

	pageSize := cfg.PageSize
	if masterPageSizeFlag != "" {
		n, err := config.PercentOrAbsolute(masterPageSizeFlag, 0)
		if err != nil {
			return fmt.Errorf("master: parsing --pagesize: %w", err)
		}
		pageSize = n
	}
	if pageSize == 0 {
		pageSize = int64(os.Getpagesize())
	}

	dist, err := region.ParseDistribution(masterDistFlag)
	if err != nil {
		return err
	}

	if len(masterPeersFlag) == 0 {
		return fmt.Errorf("master: at least one --peer is required")
	}
	reports, roster, err := parsePeerFlags(masterPeersFlag)
	if err != nil {
		return err
	}

	perPeerBytes, err := engine.NegotiatePerPeerBytes(reports, pageSize)
	if err != nil {
		return fmt.Errorf("master: negotiating peer capacity: %w", err)
	}

	entry := logrus.NewEntry(log)
	caps := newCapabilities()

	preferredBase, err := region.ParseBaseAddr(cfg.BaseAddr, 0)
	if err != nil {
		return fmt.Errorf("master: %w", err)
	}

	layout := engine.BuildLayout(preferredBase, pageSize, perPeerBytes, len(reports), dist)
	base, err := caps.ReserveRegion(layout.Base, layout.Extent())
	if err != nil {
		return fmt.Errorf("master: reserving address space: %w", err)
	}
	layout.Base = base

	localPages, err := resolveLocalPages(cfg, caps, pageSize)
	if err != nil {
		return fmt.Errorf("master: sizing local cache: %w", err)
	}

	mc := transport.NewMasterConn(entry, cfg.Heterogeneous)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rosterEntries := make([]transport.RosterEntry, len(reports))
	for i, r := range reports {
		rosterEntries[i] = transport.RosterEntry{Rank: r.Rank, Addr: r.Addr}
	}
	if err := engine.DialRoster(ctx, mc, rosterEntries); err != nil {
		return fmt.Errorf("master: dialing peers: %w", err)
	}

	memory := make([]byte, layout.Extent())
	eng, err := engine.New(cfg, layout, localPages, caps, mc, newSignaler(), entry, memory)
	if err != nil {
		mc.Close()
		return fmt.Errorf("master: wiring engine: %w", err)
	}

	rosterPath := masterRosterFlag
	if rosterPath == "" {
		rosterPath = configRosterPath()
	}
	if err := roster.SaveFile(rosterPath); err != nil {
		entry.WithError(err).Warn("master: could not persist roster file")
	}

	entry.WithField("extent", layout.Extent()).WithField("pages", layout.NumPages()).WithField("local_pages", localPages).Info("master: region ready")
	fmt.Fprintf(cmd.OutOrStdout(), "region base=0x%x extent=%d pages=%d local_pages=%d\n", layout.Base, layout.Extent(), layout.NumPages(), localPages)

	<-ctx.Done()
	entry.Info("master: shutting down")
	if err := mc.Finalize(context.Background()); err != nil {
		eng.Log.WithError(err).Warn("master: finalize reported an error")
	}
	return nil
}

// resolveLocalPages implements spec.md §4.1's local_pages formula:
// take MASTERMEM or, without it, the master's MemTotal (total RAM, not
// free RAM; see resolveMasterFreeBytes), skim off RESERVEMEM, cap by the kernel's mapping-count ceiling, then
// apply any explicit LOCAL_PAGES override and, if requested, shrink
// further via REDUCEMEM's empirical touch loop.
func resolveLocalPages(cfg *config.Config, caps intercept.Capabilities, pageSize int64) (int, error) {
	freeBytes, err := resolveMasterFreeBytes(cfg)
	if err != nil {
		return 0, err
	}

	if cfg.ReserveMem != "" {
		reserve, err := config.PercentOrAbsolute(cfg.ReserveMem, freeBytes)
		if err != nil {
			return 0, fmt.Errorf("parsing RESERVEMEM: %w", err)
		}
		freeBytes -= reserve
	}

	maxMappings, err := intercept.ReadMaxMapCount()
	if err != nil {
		return 0, fmt.Errorf("reading kernel map-count limit: %w", err)
	}

	localPages := engine.LocalPages(freeBytes, pageSize, maxMappings)

	if cfg.LocalPages != "" {
		n, err := config.PercentOrAbsolute(cfg.LocalPages, int64(localPages))
		if err != nil {
			return 0, fmt.Errorf("parsing LOCAL_PAGES: %w", err)
		}
		localPages = int(n)
	}
	if localPages <= 0 {
		return 0, fmt.Errorf("local_pages resolved to %d, must be positive", localPages)
	}

	if cfg.ReduceMem {
		reduced, err := engine.ReduceMemory(int64(localPages)*pageSize, pageSize, engine.TouchAndCountMajorFaults(caps, pageSize))
		if err != nil {
			return 0, fmt.Errorf("REDUCEMEM: %w", err)
		}
		localPages = int(reduced / pageSize)
		if localPages <= 0 {
			return 0, fmt.Errorf("REDUCEMEM shrank local_pages to %d, must be positive", localPages)
		}
	}

	return localPages, nil
}

// resolveMasterFreeBytes returns MASTERMEM if the operator overrode it,
// otherwise reads the real /proc/meminfo the way the master's own RAM
// probe is referenced only through its interface (spec.md's Out of
// scope note): a plain file read plus the existing MemTotal parser,
// not a bespoke probing subsystem.
func resolveMasterFreeBytes(cfg *config.Config) (int64, error) {
	if cfg.MasterMem > 0 {
		return cfg.MasterMem, nil
	}
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0, fmt.Errorf("probing physical RAM: %w", err)
	}
	defer f.Close()
	total, err := intercept.ParseMemTotal(f)
	if err != nil {
		return 0, fmt.Errorf("probing physical RAM: %w", err)
	}
	return total, nil
}

// parsePeerFlags parses repeated rank=address=bytes flags into both
// the engine's negotiation input and a persistable discovery.Roster.
func parsePeerFlags(raw []string) ([]engine.PeerReport, discovery.Roster, error) {
	reports := make([]engine.PeerReport, 0, len(raw))
	roster := discovery.Roster{}
	for _, spec := range raw {
		parts := strings.SplitN(spec, "=", 3)
		if len(parts) != 3 {
			return nil, discovery.Roster{}, fmt.Errorf("master: --peer %q must be rank=address=bytes", spec)
		}
		rank, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil, discovery.Roster{}, fmt.Errorf("master: --peer %q: bad rank: %w", spec, err)
		}
		bytes, err := config.PercentOrAbsolute(parts[2], 0)
		if err != nil {
			return nil, discovery.Roster{}, fmt.Errorf("master: --peer %q: bad byte count: %w", spec, err)
		}
		reports = append(reports, engine.PeerReport{Rank: rank, Addr: parts[1], FreeBytes: bytes})
		roster.Peers = append(roster.Peers, discovery.Peer{Rank: rank, Address: parts[1], BufferBytes: bytes})
	}
	return reports, roster, nil
}
