package baseline

import (
	"fmt"
)

// Backend names accepted by Open.
const (
	BackendFile     = "file"
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// StoreConfig selects and configures a Store backend.
type StoreConfig struct {
	Backend       string
	SnapshotPath  string // file backend
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	PostgresURL   string
}

// Open creates the Store named by cfg.Backend. "file" is a MemoryStore
// persisted to SnapshotPath; "memory" keeps nothing across restarts.
func Open(cfg StoreConfig) (Store, error) {
	switch cfg.Backend {
	case BackendFile:
		if cfg.SnapshotPath == "" {
			return nil, fmt.Errorf("file baseline store requires a snapshot path")
		}
		return NewMemoryStore(cfg.SnapshotPath)
	case BackendMemory, "":
		return NewMemoryStore("")
	case BackendRedis:
		return NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	case BackendPostgres:
		if cfg.PostgresURL == "" {
			return nil, fmt.Errorf("postgres baseline store requires a connection string")
		}
		return NewPostgresStore(cfg.PostgresURL)
	default:
		return nil, fmt.Errorf("unknown baseline store backend %q", cfg.Backend)
	}
}
