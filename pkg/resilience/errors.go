package resilience

import "errors"

// ErrCircuitOpen is returned when the breaker rejects a request without
// calling the protected endpoint.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// IsCircuitOpen checks if an error indicates the circuit breaker is open.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, ErrCircuitOpen)
}
