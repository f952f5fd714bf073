package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pelletier/go-toml/v2"
)

// Overrides is the on-disk ~/.jumbomem/config.toml file: defaults for
// keys that have no JUMBOMEM_* environment variable set, persisted so
// `jumbomem config set` has somewhere to write.
type Overrides struct {
	PageSize int64  `toml:"page_size,omitempty"`
	Policy   string `toml:"policy,omitempty"`
	Prefetch string `toml:"prefetch,omitempty"`
	MLock    bool   `toml:"mlock,omitempty"`
}

// dirOverride is set by the --config-dir flag through SetDir.
var dirOverride string

// SetDir overrides the override file's directory (flag or
// JUMBOMEM_HOME env var).
func SetDir(dir string) { dirOverride = dir }

// Dir returns the directory holding the override file. Precedence:
// SetDir > JUMBOMEM_HOME env > ~/.jumbomem.
func Dir() string {
	if dirOverride != "" {
		return dirOverride
	}
	if v := os.Getenv("JUMBOMEM_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".jumbomem")
	}
	return filepath.Join(home, ".jumbomem")
}

// OverridesPath returns the full path to the override file.
func OverridesPath() string {
	return filepath.Join(Dir(), "config.toml")
}

// LoadOverrides reads the override file, returning a zero-value
// Overrides if it does not exist.
func LoadOverrides() (*Overrides, error) {
	ov := &Overrides{}
	data, err := os.ReadFile(OverridesPath())
	if err != nil {
		if os.IsNotExist(err) {
			return ov, nil
		}
		return nil, fmt.Errorf("config: reading override file: %w", err)
	}
	if err := toml.Unmarshal(data, ov); err != nil {
		return nil, fmt.Errorf("config: parsing override file: %w", err)
	}
	return ov, nil
}

// SaveOverrides writes ov back to the override file.
func SaveOverrides(ov *Overrides) error {
	if err := os.MkdirAll(Dir(), 0o755); err != nil {
		return fmt.Errorf("config: creating config dir: %w", err)
	}
	data, err := toml.Marshal(ov)
	if err != nil {
		return fmt.Errorf("config: marshaling override file: %w", err)
	}
	return os.WriteFile(OverridesPath(), data, 0o644)
}

// applyOverrides fills any field whose JUMBOMEM_* env var is unset
// with the override file's value, letting an explicit env var (already
// applied to cfg by the time this runs) win even when it names the
// library default.
func applyOverrides(cfg *Config, ov *Overrides) {
	if _, set := lookup("PAGESIZE"); !set && ov.PageSize != 0 {
		cfg.PageSize = ov.PageSize
		cfg.PageSizeAuto = false
	}
	if _, set := lookup("POLICY"); !set && ov.Policy != "" {
		cfg.Policy = ov.Policy
	}
	if _, set := lookup("PREFETCH"); !set && ov.Prefetch != "" {
		cfg.Prefetch = ov.Prefetch
	}
	if _, set := lookup("MLOCK"); !set && ov.MLock {
		cfg.MLock = true
	}
}

// overrideKeys lists the dot-free keys `jumbomem config get/set`
// accepts.
var overrideKeys = map[string]bool{
	"page_size": true,
	"policy":    true,
	"prefetch":  true,
	"mlock":     true,
}

// Get retrieves a single override value by key from the override file
// alone; a key the file does not set reads as its zero value ("0",
// "", or "false"), not the compiled-in default.
func Get(key string) (string, error) {
	if !overrideKeys[key] {
		return "", fmt.Errorf("config: unknown key %q", key)
	}
	ov, err := LoadOverrides()
	if err != nil {
		return "", err
	}
	switch key {
	case "page_size":
		return strconv.FormatInt(ov.PageSize, 10), nil
	case "policy":
		return ov.Policy, nil
	case "prefetch":
		return ov.Prefetch, nil
	case "mlock":
		return strconv.FormatBool(ov.MLock), nil
	default:
		return "", fmt.Errorf("config: unknown key %q", key)
	}
}

// Set persists a single override value by key.
func Set(key, value string) error {
	if !overrideKeys[key] {
		return fmt.Errorf("config: unknown key %q", key)
	}
	ov, err := LoadOverrides()
	if err != nil {
		return err
	}
	switch key {
	case "page_size":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("config: parsing page_size=%q: %w", value, err)
		}
		ov.PageSize = n
	case "policy":
		switch value {
		case PolicyFIFO, PolicyRandom, PolicyNRE, PolicyNRU:
			ov.Policy = value
		default:
			return fmt.Errorf("config: policy must be one of fifo|random|nre|nru, got %q", value)
		}
	case "prefetch":
		switch value {
		case PrefetchNone, PrefetchNext, PrefetchDelta:
			ov.Prefetch = value
		default:
			return fmt.Errorf("config: prefetch must be one of none|next|delta, got %q", value)
		}
	case "mlock":
		ov.MLock = parseBool(value)
	}
	return SaveOverrides(ov)
}
