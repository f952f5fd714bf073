package discovery

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseEnvironSplitsOnNUL(t *testing.T) {
	data := []byte("RANK=0\x00PATH=/usr/bin\x00EMPTY=\x00")
	got := parseEnviron(data)
	require.Equal(t, "0", got["RANK"])
	require.Equal(t, "/usr/bin", got["PATH"])
	require.Equal(t, "", got["EMPTY"])
}

func TestCandidateRankVarsFindsExactRankMatch(t *testing.T) {
	reports := []EnvReport{
		{Rank: 0, Env: map[string]string{"JUMBOMEM_RANK": "0", "HOME": "/root"}},
		{Rank: 1, Env: map[string]string{"JUMBOMEM_RANK": "1", "HOME": "/home/a"}},
		{Rank: 2, Env: map[string]string{"JUMBOMEM_RANK": "2", "HOME": "/home/b"}},
	}
	got := CandidateRankVars(reports)
	require.Contains(t, got, "JUMBOMEM_RANK")
	require.NotContains(t, got, "HOME")
}

func TestCandidateRankVarsFindsRankZeroOnlyVars(t *testing.T) {
	reports := []EnvReport{
		{Rank: 0, Env: map[string]string{"LAUNCH_TOKEN": "secret"}},
		{Rank: 1, Env: map[string]string{}},
		{Rank: 2, Env: map[string]string{}},
	}
	got := CandidateRankVars(reports)
	require.Contains(t, got, "LAUNCH_TOKEN")
}

func TestCandidateRankVarsExcludesMismatchedValues(t *testing.T) {
	reports := []EnvReport{
		{Rank: 0, Env: map[string]string{"NODE_ID": "0"}},
		{Rank: 1, Env: map[string]string{"NODE_ID": "99"}},
	}
	got := CandidateRankVars(reports)
	require.NotContains(t, got, "NODE_ID")
}
