package resilience

import (
	"time"

	"github.com/lexiqai/narration-gateway/internal/observability"
)

// NewMonitoredCircuitBreaker creates a breaker for a remote service whose
// state transitions are exported as metrics and logged
func NewMonitoredCircuitBreaker(service string, maxFailures int, resetTimeout time.Duration) *CircuitBreaker {
	cb := NewCircuitBreaker(service, maxFailures, resetTimeout)
	cb.OnStateChange(func(name string, from, to CircuitState) {
		observability.UpdateCircuitBreakerState(name, int(to))
		if to == StateOpen {
			observability.IncrementCircuitBreakerFailures(name)
		}
		logger := observability.GetLogger()
		logger.Warn().
			Str("service", name).
			Str("from", from.String()).
			Str("to", to.String()).
			Msg("Circuit breaker state changed")
	})
	observability.UpdateCircuitBreakerState(service, int(StateClosed))
	return cb
}
