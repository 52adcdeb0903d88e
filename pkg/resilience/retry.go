package resilience

import (
	"context"
	"errors"
	"time"

	retry "github.com/avast/retry-go/v5"
)

// RetryConfig controls the retry executor. MaxAttempts includes the initial
// try; BaseDelay seeds the exponential backoff and MaxDelay caps it before
// jitter.
type RetryConfig struct {
	MaxAttempts int           `env:"RETRY_MAX_ATTEMPTS" envDefault:"3"`
	BaseDelay   time.Duration `env:"RETRY_BASE_DELAY" envDefault:"500ms"`
	MaxDelay    time.Duration `env:"RETRY_MAX_DELAY" envDefault:"10s"`
}

// Retryable is implemented by errors that know whether another attempt may
// succeed. Errors that do not classify themselves are treated as retryable,
// since an unknown failure may be transient.
type Retryable interface {
	Retryable() bool
}

// IsRetryable reports whether an error is worth another attempt.
func IsRetryable(err error) bool {
	var r Retryable
	if errors.As(err, &r) {
		return r.Retryable()
	}
	return true
}

// Do runs fn with up to MaxAttempts tries, exponential backoff with jitter,
// and server-provided delay hints taking precedence. Non-retryable errors
// and context cancellation stop the loop immediately. Only the last error
// is returned.
func Do[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}

	return retry.NewWithData[T](
		retry.Context(ctx),
		retry.Attempts(uint(attempts)),
		retry.RetryIf(IsRetryable),
		retry.DelayType(func(n uint, err error, _ retry.DelayContext) time.Duration {
			// n counts completed attempts, so the delay before the first
			// retry is computed for attempt 1.
			return DelayFor(int(n)+1, err, cfg.BaseDelay, cfg.MaxDelay)
		}),
		retry.LastErrorOnly(true),
	).Do(func() (T, error) {
		return fn(ctx)
	})
}
