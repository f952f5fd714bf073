package cmd

import (
	"path/filepath"

	"github.com/dsmmcken/jumbomem/internal/config"
)

// configRosterPath is the default location jumbomem master persists
// its negotiated roster, and jumbomem rank-scan reads it from.
func configRosterPath() string {
	return filepath.Join(config.Dir(), "roster.json")
}
