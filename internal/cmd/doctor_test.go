package cmd

import (
	"testing"

	"github.com/dsmmcken/jumbomem/internal/config"
	"github.com/stretchr/testify/require"
)

func TestBuildDoctorReportRunsAllChecks(t *testing.T) {
	report := buildDoctorReport()
	require.Len(t, report.Checks, 8)

	names := map[string]bool{}
	for _, c := range report.Checks {
		names[c.Name] = true
	}
	for _, name := range []string{
		"platform", "pagesize", "capabilities", "config",
		"pagesize-divides", "baseaddr", "peer-count", "map-count",
	} {
		require.Truef(t, names[name], "%q check missing from report", name)
	}
}

func TestCheckPeerCountPassesWithNoPeerFlags(t *testing.T) {
	orig := doctorPeersFlag
	doctorPeersFlag = nil
	defer func() { doctorPeersFlag = orig }()

	result := checkPeerCount()
	require.Equal(t, "ok", result.Status)
}

func TestCheckBaseAddrRejectsUnparseableOverride(t *testing.T) {
	config.SetDir(t.TempDir())
	defer config.SetDir("")
	t.Setenv("JUMBOMEM_BASEADDR", "not-an-address")

	result := checkBaseAddr()
	require.Equal(t, "error", result.Status)
}

func TestBuildDoctorReportUnhealthyOnCheckError(t *testing.T) {
	orig := PlatformChecker
	defer func() { PlatformChecker = orig }()
	PlatformChecker = func() CheckResult {
		return CheckResult{Name: "platform", Status: "error", Detail: "simulated failure"}
	}

	report := buildDoctorReport()
	require.False(t, report.Healthy)
}
