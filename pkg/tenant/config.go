package tenant

import "time"

// Config holds resolver middleware settings loaded from the environment.
// EncryptionKey is the hex-encoded 32-byte secret passed to the secrets
// cipher; RootDomains lists platform domains that bypass tenant resolution.
type Config struct {
	EncryptionKey string        `env:"TENANT_ENCRYPTION_KEY,required"`
	RootDomains   []string      `env:"TENANT_ROOT_DOMAINS" envSeparator:","`
	CacheTTL      time.Duration `env:"TENANT_CACHE_TTL" envDefault:"5m"`
	CacheSize     int           `env:"TENANT_CACHE_SIZE" envDefault:"1000"`
}
