package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/fractal-lba/nlueval/internal/baseline"
)

// storeFlags selects the baseline store shared by compare and baseline.
type storeFlags struct {
	backend      string
	snapshotPath string
	redisAddr    string
	redisPass    string
	redisDB      int
	postgresURL  string
	ttl          time.Duration
}

func (f *storeFlags) register(cmd *cobra.Command, defaultBackend string) {
	flags := cmd.Flags()
	if cmd.HasSubCommands() {
		flags = cmd.PersistentFlags()
	}
	flags.StringVar(&f.backend, "baseline-store", defaultBackend, "Baseline store backend (file, redis, postgres); empty disables the store")
	flags.StringVar(&f.snapshotPath, "baseline-file", "baselines.json", "Snapshot path for the file store")
	flags.StringVar(&f.redisAddr, "redis-addr", "localhost:6379", "Redis address")
	flags.StringVar(&f.redisPass, "redis-password", "", "Redis password")
	flags.IntVar(&f.redisDB, "redis-db", 0, "Redis database number")
	flags.StringVar(&f.postgresURL, "postgres-url", "", "Postgres connection string")
	flags.DurationVar(&f.ttl, "baseline-ttl", 0, "Retention of saved baselines; 0 keeps them forever")
}

func (f *storeFlags) enabled() bool { return f.backend != "" }

func (f *storeFlags) open() (baseline.Store, error) {
	return baseline.Open(baseline.StoreConfig{
		Backend:       f.backend,
		SnapshotPath:  f.snapshotPath,
		RedisAddr:     f.redisAddr,
		RedisPassword: f.redisPass,
		RedisDB:       f.redisDB,
		PostgresURL:   f.postgresURL,
	})
}
