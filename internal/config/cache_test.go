package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetAndGetOverridePersists(t *testing.T) {
	clearEnv(t)

	require.NoError(t, Set("policy", "nru"))
	v, err := Get("policy")
	require.NoError(t, err)
	require.Equal(t, "nru", v)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "nru", cfg.Policy)
}

func TestEnvVarWinsOverOverrideFile(t *testing.T) {
	clearEnv(t)
	require.NoError(t, Set("policy", "nru"))

	t.Setenv("JUMBOMEM_POLICY", "fifo")
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "fifo", cfg.Policy)
}

func TestSetRejectsUnknownKey(t *testing.T) {
	clearEnv(t)
	require.Error(t, Set("bogus", "x"))
}

func TestSetRejectsInvalidPolicy(t *testing.T) {
	clearEnv(t)
	require.Error(t, Set("policy", "bogus"))
}

func TestGetReturnsZeroValueWhenUnset(t *testing.T) {
	clearEnv(t)
	v, err := Get("page_size")
	require.NoError(t, err)
	require.Equal(t, "0", v)
}
