package directory

import "time"

// Config holds the platform database settings. ConnectionString points at
// the central platform database; the pool limits are passed through to
// pgxpool. RetryAttempts and RetryInterval control startup connection
// retries.
type Config struct {
	ConnectionString  string        `env:"PLATFORM_DB_URL,required"`
	MaxOpenConns      int32         `env:"PLATFORM_DB_MAX_OPEN_CONNS" envDefault:"10"`
	MaxIdleConns      int32         `env:"PLATFORM_DB_MAX_IDLE_CONNS" envDefault:"5"`
	HealthCheckPeriod time.Duration `env:"PLATFORM_DB_HEALTHCHECK_PERIOD" envDefault:"1m"`
	MaxConnIdleTime   time.Duration `env:"PLATFORM_DB_MAX_CONN_IDLE_TIME" envDefault:"10m"`
	MaxConnLifetime   time.Duration `env:"PLATFORM_DB_MAX_CONN_LIFETIME" envDefault:"30m"`

	RetryAttempts int           `env:"PLATFORM_DB_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval time.Duration `env:"PLATFORM_DB_RETRY_INTERVAL" envDefault:"5s"`
}
