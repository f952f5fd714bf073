package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfigSetThenGetRoundTrip(t *testing.T) {
	dir := t.TempDir()

	root := NewRootCmd()
	root.SetArgs([]string{"--config-dir", dir, "config", "set", "policy", "nru"})
	require.NoError(t, root.Execute())

	var out bytes.Buffer
	root = NewRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"--config-dir", dir, "config", "get", "policy"})
	require.NoError(t, root.Execute())
	require.Equal(t, "nru\n", out.String())
}

func TestConfigGetUnknownKeyErrors(t *testing.T) {
	root := NewRootCmd()
	root.SetArgs([]string{"--config-dir", t.TempDir(), "config", "get", "bogus"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	require.Error(t, root.Execute())
}
