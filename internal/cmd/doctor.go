package cmd

import (
	"fmt"
	"os"
	"runtime"

	"github.com/dsmmcken/jumbomem/internal/config"
	"github.com/dsmmcken/jumbomem/internal/discovery"
	"github.com/dsmmcken/jumbomem/internal/intercept"
	"github.com/dsmmcken/jumbomem/internal/region"
	"github.com/spf13/cobra"
)

// CheckResult holds the result of a single doctor check, grounded on
// internal/cmd/doctor.go's status/detail reporting shape.
type CheckResult struct {
	Name   string
	Status string // "ok", "warning", "error"
	Detail string
}

// DoctorReport holds the complete doctor output.
type DoctorReport struct {
	Healthy bool
	Checks  []CheckResult
}

// Testable check functions, replaceable in unit tests.
var (
	PlatformChecker        = checkPlatform
	PageSizeChecker        = checkPageSize
	CapabilitiesChecker    = checkCapabilities
	ConfigChecker          = checkConfig
	PageSizeDividesChecker = checkPageSizeDivides
	BaseAddrChecker        = checkBaseAddr
	PeerCountChecker       = checkPeerCount
	MapCountChecker        = checkMapCount
)

var (
	doctorPeersFlag  []string
	doctorRosterFlag string
)

func addDoctorCommand(parent *cobra.Command) {
	doctorCmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check environment prerequisites",
		Long:  "Run diagnostic checks across the subsystems a live run depends on.",
		Args:  cobra.NoArgs,
		RunE:  runDoctor,
	}
	flags := doctorCmd.Flags()
	flags.StringArrayVar(&doctorPeersFlag, "peer", nil, "rank=address=bytes, repeatable (checked against --roster-file's peer count)")
	flags.StringVar(&doctorRosterFlag, "roster-file", "", "Roster file to check peer count against (default: <config-dir>/roster.json)")
	parent.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	report := buildDoctorReport()

	for _, c := range report.Checks {
		fmt.Fprintf(cmd.OutOrStdout(), "[%s] %-24s %s\n", c.Status, c.Name, c.Detail)
	}
	if !report.Healthy {
		return fmt.Errorf("doctor: one or more checks failed")
	}
	return nil
}

func buildDoctorReport() DoctorReport {
	checks := []CheckResult{
		PlatformChecker(),
		PageSizeChecker(),
		CapabilitiesChecker(),
		ConfigChecker(),
		PageSizeDividesChecker(),
		BaseAddrChecker(),
		PeerCountChecker(),
		MapCountChecker(),
	}
	healthy := true
	for _, c := range checks {
		if c.Status == "error" {
			healthy = false
		}
	}
	return DoctorReport{Healthy: healthy, Checks: checks}
}

func checkPlatform() CheckResult {
	if runtime.GOOS == "linux" {
		return CheckResult{Name: "platform", Status: "ok", Detail: "linux"}
	}
	return CheckResult{Name: "platform", Status: "error", Detail: fmt.Sprintf("%s unsupported: fault interception requires Linux", runtime.GOOS)}
}

func checkPageSize() CheckResult {
	p := os.Getpagesize()
	if p <= 0 {
		return CheckResult{Name: "pagesize", Status: "error", Detail: "could not determine OS page size"}
	}
	return CheckResult{Name: "pagesize", Status: "ok", Detail: fmt.Sprintf("%d bytes", p)}
}

func checkCapabilities() CheckResult {
	caps := newCapabilities()
	buf := make([]byte, os.Getpagesize())
	caps.PreTouch(buf, int64(len(buf)))
	return CheckResult{Name: "capabilities", Status: "ok", Detail: "interception layer responds"}
}

func checkConfig() CheckResult {
	cfg, err := config.Load()
	if err != nil {
		return CheckResult{Name: "config", Status: "error", Detail: err.Error()}
	}
	return CheckResult{Name: "config", Status: "ok", Detail: fmt.Sprintf("policy=%s prefetch=%s", cfg.Policy, cfg.Prefetch)}
}

// checkPageSizeDivides validates spec.md §4.1's `P mod p0 = 0` invariant
// between the OS page size and the configured logical page size.
func checkPageSizeDivides() CheckResult {
	cfg, err := config.Load()
	if err != nil {
		return CheckResult{Name: "pagesize-divides", Status: "error", Detail: err.Error()}
	}
	p0 := int64(os.Getpagesize())
	p := cfg.PageSize
	if cfg.PageSizeAuto || p == 0 {
		p = p0
	}
	if p%p0 != 0 {
		return CheckResult{Name: "pagesize-divides", Status: "error",
			Detail: fmt.Sprintf("configured page size %d is not a multiple of OS page size %d", p, p0)}
	}
	return CheckResult{Name: "pagesize-divides", Status: "ok", Detail: fmt.Sprintf("%d is a multiple of %d", p, p0)}
}

// checkBaseAddr validates that BASEADDR, if set, parses as an absolute
// address or signed delta.
func checkBaseAddr() CheckResult {
	cfg, err := config.Load()
	if err != nil {
		return CheckResult{Name: "baseaddr", Status: "error", Detail: err.Error()}
	}
	if cfg.BaseAddr == "" {
		return CheckResult{Name: "baseaddr", Status: "ok", Detail: "unset, placement left to the OS"}
	}
	if _, err := region.ParseBaseAddr(cfg.BaseAddr, 0); err != nil {
		return CheckResult{Name: "baseaddr", Status: "error", Detail: err.Error()}
	}
	return CheckResult{Name: "baseaddr", Status: "ok", Detail: fmt.Sprintf("%q parses", cfg.BaseAddr)}
}

// checkPeerCount compares --peer flags against the persisted roster's
// peer count. With no --peer flags there is nothing to compare and the
// check passes trivially; with flags but no readable roster it warns.
func checkPeerCount() CheckResult {
	if len(doctorPeersFlag) == 0 {
		return CheckResult{Name: "peer-count", Status: "ok", Detail: "no --peer flags given, nothing to compare"}
	}
	rosterPath := doctorRosterFlag
	if rosterPath == "" {
		rosterPath = configRosterPath()
	}
	roster, err := discovery.LoadFile(rosterPath)
	if err != nil {
		return CheckResult{Name: "peer-count", Status: "warning", Detail: fmt.Sprintf("no roster readable at %s", rosterPath)}
	}
	if len(roster.Peers) != len(doctorPeersFlag) {
		return CheckResult{Name: "peer-count", Status: "error",
			Detail: fmt.Sprintf("configured %d peers, roster has %d", len(doctorPeersFlag), len(roster.Peers))}
	}
	return CheckResult{Name: "peer-count", Status: "ok", Detail: fmt.Sprintf("%d peers match roster", len(roster.Peers))}
}

// checkMapCount validates that the kernel's per-process mapping-count
// ceiling, the max_mappings input to local_pages sizing, is readable.
func checkMapCount() CheckResult {
	n, err := intercept.ReadMaxMapCount()
	if err != nil {
		return CheckResult{Name: "map-count", Status: "error", Detail: err.Error()}
	}
	return CheckResult{Name: "map-count", Status: "ok", Detail: fmt.Sprintf("vm.max_map_count=%d", n)}
}
