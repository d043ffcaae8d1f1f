// Package sqlitepath resolves which SQLite database insights commands use when
// none is configured.
package sqlitepath

import (
	"os"
	"path/filepath"
	"strings"
)

// DefaultFile is the database created when no existing one is found.
const DefaultFile = "insights.db"

// ResolveSQLitePath returns override if set, then $INSIGHTS_SQLITE, then the
// first existing candidate database. When nothing exists it falls back to
// ~/.insights/insights.db so a first run has somewhere to write.
func ResolveSQLitePath(override string) string {
	if override = strings.TrimSpace(override); override != "" {
		return override
	}

	if envPath := strings.TrimSpace(os.Getenv("INSIGHTS_SQLITE")); envPath != "" {
		return envPath
	}

	for _, candidate := range sqliteCandidates() {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".insights", DefaultFile)
	}
	return DefaultFile
}

func sqliteCandidates() []string {
	candidates := []string{
		DefaultFile,
		filepath.Join(".insights", DefaultFile),
	}

	home, err := os.UserHomeDir()
	if err == nil {
		candidates = append(candidates, filepath.Join(home, ".insights", DefaultFile))
	}

	if xdgHome := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); xdgHome != "" {
		candidates = append([]string{
			filepath.Join(xdgHome, "insights", DefaultFile),
		}, candidates...)
	}

	return candidates
}
