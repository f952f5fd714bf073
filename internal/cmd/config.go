package cmd

import (
	"fmt"

	"github.com/dsmmcken/jumbomem/internal/config"
	"github.com/spf13/cobra"
)

func addConfigCommands(parent *cobra.Command) {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and override resolved configuration",
		Long: `jumbomem's configuration is environment-variable driven; config
get/set read and write a persisted override file that supplies
defaults for keys with no JUMBOMEM_* variable set.`,
		Args: cobra.NoArgs,
	}

	getCmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Print a config key's currently resolved value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			v, err := resolvedValue(cfg, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		},
	}

	setCmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Persist an override value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return config.Set(args[0], args[1])
		},
	}

	pathCmd := &cobra.Command{
		Use:   "path",
		Short: "Print the override file's path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), config.OverridesPath())
			return nil
		},
	}

	configCmd.AddCommand(getCmd, setCmd, pathCmd)
	parent.AddCommand(configCmd)
}

// resolvedValue reads a key from the fully-resolved Config (env plus
// override file), as opposed to config.Get which reads the override
// file alone.
func resolvedValue(cfg *config.Config, key string) (string, error) {
	switch key {
	case "page_size":
		if cfg.PageSizeAuto {
			return "auto", nil
		}
		return fmt.Sprintf("%d", cfg.PageSize), nil
	case "policy":
		return cfg.Policy, nil
	case "prefetch":
		return cfg.Prefetch, nil
	case "mlock":
		return fmt.Sprintf("%t", cfg.MLock), nil
	default:
		return "", fmt.Errorf("config: unknown key %q", key)
	}
}
