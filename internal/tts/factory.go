package tts

import (
	"fmt"
	"time"

	"github.com/lexiqai/narration-gateway/internal/config"
	"github.com/lexiqai/narration-gateway/internal/resilience"
)

// New builds the synthesizer selected by TTS_BACKEND
func New(cfg *config.Config) (Synthesizer, error) {
	switch cfg.TTSBackend {
	case config.BackendCartesia:
		return NewCartesiaClient(CartesiaOptions{
			WSURL:      cfg.CartesiaWSURL,
			ModelID:    cfg.CartesiaModelID,
			Version:    cfg.CartesiaVersion,
			SampleRate: cfg.AudioSampleRate,
			Reconnect: &resilience.ReconnectConfig{
				MaxAttempts: cfg.ReconnectMaxAttempts,
				Backoff:     time.Duration(cfg.ReconnectBackoff) * time.Millisecond,
				Multiplier:  2.0,
				MaxBackoff:  10 * time.Second,
			},
			CircuitBreaker: resilience.NewMonitoredCircuitBreaker(config.BackendCartesia, cfg.CircuitBreakerMaxFailures, cfg.CircuitBreakerReset()),
		}), nil

	case config.BackendDeepgram:
		return NewDeepgramClient(DeepgramOptions{
			Host:           cfg.DeepgramHost,
			SampleRate:     cfg.AudioSampleRate,
			Retry:          resilience.NewRetryConfig(cfg.RetryMaxAttempts, time.Duration(cfg.RetryInitialBackoff)*time.Millisecond),
			CircuitBreaker: resilience.NewMonitoredCircuitBreaker(config.BackendDeepgram, cfg.CircuitBreakerMaxFailures, cfg.CircuitBreakerReset()),
		}), nil

	case config.BackendSilence:
		return NewSilenceSynthesizer(cfg.AudioSampleRate), nil

	default:
		return nil, fmt.Errorf("unknown TTS backend %q", cfg.TTSBackend)
	}
}

// CredentialsFromConfig resolves the process-level credentials for the configured backend
func CredentialsFromConfig(cfg *config.Config) Credentials {
	switch cfg.TTSBackend {
	case config.BackendCartesia:
		return Credentials{APIKey: cfg.CartesiaAPIKey}
	case config.BackendDeepgram:
		return Credentials{APIKey: cfg.DeepgramAPIKey}
	default:
		return Credentials{}
	}
}
