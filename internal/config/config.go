// Package config resolves jumbomem's runtime configuration from the
// environment, read once at process startup and frozen for the life
// of the run. An optional TOML override file (cache.go) supplies
// defaults for keys with no environment variable set; an explicit
// JUMBOMEM_* env var always wins.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Prefetch modes for PREFETCH.
const (
	PrefetchNone  = "none"
	PrefetchNext  = "next"
	PrefetchDelta = "delta"
)

// Policy names accepted by the replacement-policy wiring.
const (
	PolicyFIFO   = "fifo"
	PolicyRandom = "random"
	PolicyNRE    = "nre"
	PolicyNRU    = "nru"
)

// Config is the full set of environment-derived knobs from spec.md §6.
type Config struct {
	PageSize     int64  // PAGESIZE, bytes; 0 means "auto"
	PageSizeAuto bool   // true when PAGESIZE=auto
	BaseAddr     string // BASEADDR, raw string ("" = unset, may be absolute or +/-delta)
	SlaveMem     int64  // SLAVEMEM override, bytes (0 = unset)
	MasterMem    int64  // MASTERMEM override, bytes (0 = unset)
	LocalPages   string // LOCAL_PAGES, raw ("" = unset; may be "N" or "N%")
	ReserveMem   string // RESERVEMEM, raw ("" = unset; may be "N" or "N%")
	ReduceMem    bool   // REDUCEMEM
	Prefetch     string // PREFETCH: none|next|delta
	AsyncEvict   bool   // ASYNCEVICT
	Memcpy       bool   // MEMCPY
	NREEntries   int    // NRE_ENTRIES
	NRERetries   int    // NRE_RETRIES
	NRUInterval  int    // NRU_INTERVAL, ms
	NRURW        bool   // NRU_RW
	MLock        bool   // MLOCK
	Debug        int    // DEBUG, 0-5
	Heartbeat    int    // HEARTBEAT, seconds
	Policy       string // not in spec's env table directly; wired via --policy/JUMBOMEM_POLICY
	Heterogeneous bool  // HETEROGENEOUS, wire endianness
}

// defaults applied when an environment variable is absent.
func defaults() Config {
	return Config{
		PageSizeAuto: true,
		Prefetch:     PrefetchNone,
		NREEntries:   8,
		NRERetries:   5,
		NRUInterval:  1000,
		Debug:        0,
		Heartbeat:    0,
		Policy:       PolicyFIFO,
	}
}

// Load reads all recognized keys from the environment and returns a
// populated Config. Malformed values are reported as errors rather than
// silently ignored — configuration mistakes belong to the environmental
// failure category of spec.md §7 and must be fatal at startup.
func Load() (*Config, error) {
	cfg := defaults()

	if v, ok := lookup("PAGESIZE"); ok {
		if v == "auto" {
			cfg.PageSizeAuto = true
		} else {
			n, err := parseBytes(v)
			if err != nil {
				return nil, fmt.Errorf("parsing PAGESIZE=%q: %w", v, err)
			}
			cfg.PageSize = n
			cfg.PageSizeAuto = false
		}
	}

	if v, ok := lookup("BASEADDR"); ok {
		cfg.BaseAddr = v
	}

	if v, ok := lookup("SLAVEMEM"); ok {
		n, err := parseBytes(v)
		if err != nil {
			return nil, fmt.Errorf("parsing SLAVEMEM=%q: %w", v, err)
		}
		cfg.SlaveMem = n
	}

	if v, ok := lookup("MASTERMEM"); ok {
		n, err := parseBytes(v)
		if err != nil {
			return nil, fmt.Errorf("parsing MASTERMEM=%q: %w", v, err)
		}
		cfg.MasterMem = n
	}

	if v, ok := lookup("LOCAL_PAGES"); ok {
		cfg.LocalPages = v
	}

	if v, ok := lookup("RESERVEMEM"); ok {
		cfg.ReserveMem = v
	}

	if v, ok := lookup("REDUCEMEM"); ok {
		cfg.ReduceMem = parseBool(v)
	}

	if v, ok := lookup("PREFETCH"); ok {
		switch v {
		case PrefetchNone, PrefetchNext, PrefetchDelta:
			cfg.Prefetch = v
		default:
			return nil, fmt.Errorf("PREFETCH=%q must be one of none|next|delta", v)
		}
	}

	if v, ok := lookup("ASYNCEVICT"); ok {
		cfg.AsyncEvict = parseBool(v)
	}

	if v, ok := lookup("MEMCPY"); ok {
		cfg.Memcpy = parseBool(v)
	}

	if v, ok := lookup("NRE_ENTRIES"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("parsing NRE_ENTRIES=%q: %w", v, err)
		}
		cfg.NREEntries = n
	}

	if v, ok := lookup("NRE_RETRIES"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("parsing NRE_RETRIES=%q: %w", v, err)
		}
		cfg.NRERetries = n
	}

	if v, ok := lookup("NRU_INTERVAL"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("parsing NRU_INTERVAL=%q: %w", v, err)
		}
		cfg.NRUInterval = n
	}

	if v, ok := lookup("NRU_RW"); ok {
		cfg.NRURW = parseBool(v)
	}

	if v, ok := lookup("MLOCK"); ok {
		cfg.MLock = parseBool(v)
	}

	if v, ok := lookup("DEBUG"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("parsing DEBUG=%q: %w", v, err)
		}
		cfg.Debug = n
	}

	if v, ok := lookup("HEARTBEAT"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("parsing HEARTBEAT=%q: %w", v, err)
		}
		cfg.Heartbeat = n
	}

	if v, ok := lookup("HETEROGENEOUS"); ok {
		cfg.Heterogeneous = parseBool(v)
	}

	if v, ok := lookup("POLICY"); ok {
		switch v {
		case PolicyFIFO, PolicyRandom, PolicyNRE, PolicyNRU:
			cfg.Policy = v
		default:
			return nil, fmt.Errorf("POLICY=%q must be one of fifo|random|nre|nru", v)
		}
	}

	ov, err := LoadOverrides()
	if err != nil {
		return nil, err
	}
	applyOverrides(&cfg, ov)

	return &cfg, nil
}

func lookup(key string) (string, bool) {
	return os.LookupEnv("JUMBOMEM_" + key)
}

func parseBool(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// parseBytes parses a plain byte count, or a count with a k/m/g suffix
// (case-insensitive, binary multiples).
func parseBytes(v string) (int64, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, fmt.Errorf("empty value")
	}
	mult := int64(1)
	suffix := v[len(v)-1]
	switch suffix {
	case 'k', 'K':
		mult = 1 << 10
		v = v[:len(v)-1]
	case 'm', 'M':
		mult = 1 << 20
		v = v[:len(v)-1]
	case 'g', 'G':
		mult = 1 << 30
		v = v[:len(v)-1]
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, err
	}
	return n * mult, nil
}

// PercentOrAbsolute parses a RESERVEMEM/LOCAL_PAGES-style value that may
// be an absolute count (an integer with an optional k/m/g suffix, as
// parseBytes accepts) or a number followed by "%" (a percentage of some
// base quantity supplied by the caller).
func PercentOrAbsolute(raw string, base int64) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	if strings.HasSuffix(raw, "%") {
		pct, err := strconv.ParseFloat(strings.TrimSuffix(raw, "%"), 64)
		if err != nil {
			return 0, fmt.Errorf("parsing percentage %q: %w", raw, err)
		}
		return int64(float64(base) * pct / 100.0), nil
	}
	return parseBytes(raw)
}
