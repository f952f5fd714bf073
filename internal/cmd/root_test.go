package cmd

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

func TestAllSubcommandsRegistered(t *testing.T) {
	root := NewRootCmd()

	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"master", "peer", "doctor", "rank-scan", "config"} {
		require.Truef(t, names[name], "%q subcommand not registered", name)
	}
}

func TestConfigSubcommandsRegistered(t *testing.T) {
	root := NewRootCmd()

	var configCmd *cobra.Command
	for _, c := range root.Commands() {
		if c.Name() == "config" {
			configCmd = c
			break
		}
	}
	require.NotNil(t, configCmd)

	names := map[string]bool{}
	for _, c := range configCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"get", "set", "path"} {
		require.Truef(t, names[name], "%q subcommand not found under config", name)
	}
}
