package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Backend names accepted by Open.
const (
	BackendMemory  = "memory"
	BackendLevelDB = "leveldb"
	BackendBolt    = "bolt"
	BackendSQLite  = "sqlite"
)

// Open constructs the named backend rooted at dataDir.
func Open(backend, dataDir string) (Database, error) {
	kind := strings.ToLower(strings.TrimSpace(backend))
	if kind == "" || kind == BackendMemory {
		return NewMemDB(), nil
	}
	if strings.TrimSpace(dataDir) == "" {
		return nil, ErrPathRequired
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	switch kind {
	case BackendLevelDB:
		return NewLevelDB(filepath.Join(dataDir, "records"))
	case BackendBolt:
		return NewBoltDB(filepath.Join(dataDir, "records.bolt"), nil)
	case BackendSQLite:
		dsn, err := FileDSN(filepath.Join(dataDir, "records.sqlite"))
		if err != nil {
			return nil, err
		}
		return NewSQLiteDB(dsn)
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", backend)
	}
}
