package platform

import (
	"time"

	"github.com/dmitrymomot/multitenant/pkg/resilience"
)

// Config holds platform API client settings loaded from the environment.
type Config struct {
	APIBaseURL     string        `env:"PLATFORM_API_BASE_URL,required"`
	RequestTimeout time.Duration `env:"PLATFORM_REQUEST_TIMEOUT" envDefault:"5s"`
	RefreshTimeout time.Duration `env:"METADATA_REFRESH_TIMEOUT" envDefault:"30s"`

	CacheSize      int           `env:"METADATA_CACHE_SIZE" envDefault:"100"`
	StaleThreshold time.Duration `env:"METADATA_STALE_THRESHOLD" envDefault:"5m"`
	MaxAge         time.Duration `env:"METADATA_MAX_AGE" envDefault:"30m"`

	BreakerErrorThreshold int           `env:"BREAKER_ERROR_THRESHOLD" envDefault:"5"`
	BreakerResetTimeout   time.Duration `env:"BREAKER_RESET_TIMEOUT" envDefault:"30s"`

	Retry resilience.RetryConfig
}
