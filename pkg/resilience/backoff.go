package resilience

import (
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// jitterFraction is the maximum random increase applied to a computed delay.
// Jitter spreads retries from many clients to prevent coordinated retry storms.
const jitterFraction = 0.3

// Delay returns the backoff before retry attempt n (1-based):
// min(base * 2^(n-1), max) plus up to 30% random jitter.
// It is a pure function of its inputs apart from the jitter draw.
func Delay(attempt int, base, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	if max <= 0 {
		max = 30 * time.Second
	}

	d := float64(base) * math.Pow(2, float64(attempt-1))
	if d > float64(max) {
		d = float64(max)
	}
	d += rand.Float64() * jitterFraction * d

	return time.Duration(d)
}

// DelayHinter is implemented by errors that carry a server-provided retry
// hint (e.g. an HTTP Retry-After value). The hint takes precedence over the
// computed backoff.
type DelayHinter interface {
	DelayHint() time.Duration
}

// DelayFor computes the delay before retry attempt n, honoring a hint on
// the triggering error when present.
func DelayFor(attempt int, err error, base, max time.Duration) time.Duration {
	var h DelayHinter
	if errors.As(err, &h) {
		if hint := h.DelayHint(); hint > 0 {
			return hint
		}
	}
	return Delay(attempt, base, max)
}
