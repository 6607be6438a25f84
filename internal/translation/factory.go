package translation

import (
	"context"
	"time"

	"github.com/lexiqai/narration-gateway/internal/config"
	"github.com/lexiqai/narration-gateway/internal/resilience"
)

// NewFromConfig builds the Azure translator, wrapped with a Redis cache when
// REDIS_URL is set. The returned cache is nil when caching is disabled; the
// caller closes it.
func NewFromConfig(ctx context.Context, cfg *config.Config) (Translator, *RedisCache, error) {
	var translator Translator = NewAzureClient(
		resilience.NewRetryConfig(cfg.RetryMaxAttempts, time.Duration(cfg.RetryInitialBackoff)*time.Millisecond),
		resilience.NewMonitoredCircuitBreaker("translator", cfg.CircuitBreakerMaxFailures, cfg.CircuitBreakerReset()),
	)

	if cfg.RedisURL == "" {
		return translator, nil, nil
	}
	cache, err := NewRedisCache(ctx, cfg.RedisURL, cfg.TranslationCacheExpiry())
	if err != nil {
		return nil, nil, err
	}
	return NewCachedTranslator(translator, cache), cache, nil
}

// CredentialsFromConfig resolves the process-level translation credentials
func CredentialsFromConfig(cfg *config.Config) Credentials {
	return Credentials{
		Endpoint:   cfg.TranslatorEndpoint,
		APIKey:     cfg.TranslatorAPIKey,
		Deployment: cfg.TranslatorDeployment,
		APIVersion: cfg.TranslatorAPIVersion,
	}
}
