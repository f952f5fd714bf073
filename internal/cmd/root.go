// Package cmd assembles jumbomem's CLI surface, grounded on
// internal/cmd/vm.go's "one addXCommands(parent) function per
// subcommand group, package-level vars bound to flags" shape.
package cmd

import (
	"os"

	"github.com/dsmmcken/jumbomem/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	verboseFlag   bool
	configDirFlag string
	log           = logrus.New()
)

// NewRootCmd builds the full command tree.
func NewRootCmd() *cobra.Command {
	root := newRootCmd()
	addMasterCommand(root)
	addPeerCommand(root)
	addDoctorCommand(root)
	addRankScanCommand(root)
	addConfigCommands(root)
	return root
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "jumbomem",
		Short:         "Software-paged distributed shared memory engine",
		Long:          "jumbomem aggregates peer memory into one addressable region for a single process, paging pages in and out over the network on access.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if verboseFlag {
				log.SetLevel(logrus.DebugLevel)
			}
			config.SetDir(configDirFlag)
			return nil
		},
	}

	pflags := root.PersistentFlags()
	pflags.BoolVarP(&verboseFlag, "verbose", "v", false, "Extra detail to stderr")
	pflags.StringVar(&configDirFlag, "config-dir", "", "Override config directory (default: ~/.jumbomem)")

	if v := os.Getenv("JUMBOMEM_HOME"); v != "" && configDirFlag == "" {
		configDirFlag = v
	}

	return root
}

// Execute runs the CLI, returning any error from the selected
// subcommand.
func Execute() error {
	return NewRootCmd().Execute()
}
