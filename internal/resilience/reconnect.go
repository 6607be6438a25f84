package resilience

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// ReconnectConfig holds configuration for dial-with-backoff logic
type ReconnectConfig struct {
	MaxAttempts int           // Maximum number of connection attempts
	Backoff     time.Duration // Backoff duration between attempts
	Multiplier  float64       // Backoff multiplier for exponential backoff
	MaxBackoff  time.Duration // Maximum backoff duration
}

// DefaultReconnectConfig returns a default reconnection configuration
func DefaultReconnectConfig() *ReconnectConfig {
	return &ReconnectConfig{
		MaxAttempts: 3,
		Backoff:     500 * time.Millisecond,
		Multiplier:  2.0,
		MaxBackoff:  10 * time.Second,
	}
}

// ReconnectFunc attempts to establish a connection
type ReconnectFunc func(ctx context.Context) error

// Reconnect calls fn until it succeeds, ctx is done, or attempts run out.
// The returned error wraps the last dial failure.
func Reconnect(ctx context.Context, name string, fn ReconnectFunc, config *ReconnectConfig) error {
	if config == nil {
		config = DefaultReconnectConfig()
	}

	attempts := config.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := config.Backoff
	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			if attempt > 0 {
				log.Info().Str("service", name).Int("attempts", attempt+1).Msg("Connection established after retry")
			}
			return nil
		}
		lastErr = err

		// Don't sleep after the last attempt
		if attempt < attempts-1 {
			log.Warn().
				Err(err).
				Str("service", name).
				Int("attempt", attempt+1).
				Int("max_attempts", attempts).
				Dur("backoff", backoff).
				Msg("Connection attempt failed, retrying")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
				backoff = time.Duration(float64(backoff) * config.Multiplier)
				if backoff > config.MaxBackoff {
					backoff = config.MaxBackoff
				}
			}
		}
	}

	return fmt.Errorf("%s: failed to connect after %d attempts: %w", name, attempts, lastErr)
}
