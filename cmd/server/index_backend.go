package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"mosim.ai/internal/persistence/indexdb"
)

// openRuntimeIndex returns nil when indexing is switched off.
func openRuntimeIndex(dataDir, runID string, disableDB bool) (*indexdb.SQLiteIndex, error) {
	if disableDB {
		return nil, nil
	}
	backend := strings.ToLower(strings.TrimSpace(os.Getenv("MOSIM_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}
	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		return indexdb.OpenSQLite(filepath.Join(dataDir, "index", "cosim.sqlite"), runID)
	default:
		return nil, fmt.Errorf("unsupported MOSIM_INDEX_BACKEND: %s", backend)
	}
}
