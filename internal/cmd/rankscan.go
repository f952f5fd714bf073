package cmd

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/dsmmcken/jumbomem/internal/discovery"
	"github.com/spf13/cobra"
)

var rankScanRosterFlag string

func addRankScanCommand(parent *cobra.Command) {
	rankScanCmd := &cobra.Command{
		Use:   "rank-scan",
		Short: "Report environment variables that look like a rank identifier",
		Long: `Scan this process's environment alongside every peer listed in the
roster file, and report variables whose value equals each peer's rank
or that are defined only on rank 0 — candidates for the launcher
contract's rank-identification variable.`,
		Args: cobra.NoArgs,
		RunE: runRankScan,
	}
	rankScanCmd.Flags().StringVar(&rankScanRosterFlag, "roster-file", "", "Roster file saved by jumbomem master (default: <config-dir>/roster.json)")
	parent.AddCommand(rankScanCmd)
}

func runRankScan(cmd *cobra.Command, args []string) error {
	rosterPath := rankScanRosterFlag
	if rosterPath == "" {
		rosterPath = configRosterPath()
	}

	roster, err := discovery.LoadFile(rosterPath)
	if err != nil {
		return fmt.Errorf("rank-scan: loading roster: %w", err)
	}

	localEnv, err := discovery.ScanEnviron(os.Getpid())
	if err != nil {
		return fmt.Errorf("rank-scan: scanning local environment: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	reports, err := discovery.CollectEnvReports(ctx, roster, localEnv)
	if err != nil {
		return fmt.Errorf("rank-scan: collecting peer environments: %w", err)
	}

	candidates := discovery.CandidateRankVars(reports)
	sort.Strings(candidates)
	if len(candidates) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no candidate rank-identification variables found")
		return nil
	}
	for _, name := range candidates {
		fmt.Fprintln(cmd.OutOrStdout(), name)
	}
	return nil
}

