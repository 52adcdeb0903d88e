// Package config loads application configuration from environment variables
// into tagged structs.
//
// It wraps github.com/joho/godotenv and github.com/caarlos0/env/v11: the
// default .env file in the working directory is loaded once (if present),
// then env.Parse fills the struct from `env` field tags.
//
// Usage:
//
//	type Config struct {
//	    DatabaseURL string        `env:"PLATFORM_DB_URL,required"`
//	    Timeout     time.Duration `env:"PLATFORM_REQUEST_TIMEOUT" envDefault:"5s"`
//	}
//
//	var cfg Config
//	config.MustLoad(&cfg)
//
// Sentinel errors (ErrParsingConfig, ErrLoadingEnvFiles, ErrNilPointer) can
// be checked with errors.Is.
package config
