package connpool

import "time"

// Config holds the connection cache settings. SweepInterval is how often the
// eviction sweep runs; IdleThreshold is how long a handle may sit unused
// before eviction. The per-tenant pool limits are passed through to each
// opened pool.
type Config struct {
	SweepInterval time.Duration `env:"CONNPOOL_SWEEP_INTERVAL" envDefault:"5m"`
	IdleThreshold time.Duration `env:"CONNPOOL_IDLE_THRESHOLD" envDefault:"30m"`

	MaxOpenConns    int32         `env:"CONNPOOL_MAX_OPEN_CONNS" envDefault:"5"`
	MaxConnIdleTime time.Duration `env:"CONNPOOL_MAX_CONN_IDLE_TIME" envDefault:"10m"`
}
