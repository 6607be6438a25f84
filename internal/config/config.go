package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Synthesis backends
const (
	BackendCartesia = "cartesia"
	BackendDeepgram = "deepgram"
	BackendSilence  = "silence"
)

// Config holds all configuration for the narration gateway
type Config struct {
	// Server configuration
	Port     string `envconfig:"PORT" default:"8080"`
	GRPCPort string `envconfig:"GRPC_PORT" default:"9090"` // gRPC health service

	// Output layout
	OutputDir     string `envconfig:"OUTPUT_DIR" default:"outputs"`
	StagingDir    string `envconfig:"STAGING_DIR" default:""`     // defaults to <OUTPUT_DIR>/.staging
	HistoryDBPath string `envconfig:"HISTORY_DB_PATH" default:""` // defaults to <OUTPUT_DIR>/history.db

	// Input handling
	MaxTextLength         int      `envconfig:"MAX_TEXT_LENGTH" default:"5000"` // runes per batch
	SentenceTerminators   string   `envconfig:"SENTENCE_TERMINATORS" default:".!?。！？"`
	SentenceAbbreviations []string `envconfig:"SENTENCE_ABBREVIATIONS" default:"Mr.,Mrs.,Ms.,Dr.,Prof.,Sr.,Jr.,St.,vs.,etc.,e.g.,i.e."`

	// Speech synthesis
	TTSBackend      string `envconfig:"TTS_BACKEND" default:"cartesia"` // cartesia, deepgram, silence
	TTSVoice        string `envconfig:"TTS_VOICE" default:""`           // default voice when a request names none
	AudioSampleRate int    `envconfig:"AUDIO_SAMPLE_RATE" default:"24000"`

	// Cartesia TTS API configuration
	CartesiaAPIKey  string `envconfig:"CARTESIA_API_KEY" default:""`
	CartesiaModelID string `envconfig:"CARTESIA_MODEL_ID" default:"sonic-english"`
	CartesiaWSURL   string `envconfig:"CARTESIA_WS_URL" default:"wss://api.cartesia.ai/tts/websocket"`
	CartesiaVersion string `envconfig:"CARTESIA_VERSION" default:"2024-06-10"`

	// Deepgram speak API configuration (voice = Aura model name)
	DeepgramAPIKey string `envconfig:"DEEPGRAM_API_KEY" default:""`
	DeepgramHost   string `envconfig:"DEEPGRAM_HOST" default:""` // empty uses api.deepgram.com

	// Translation (Azure OpenAI chat deployment)
	TranslatorEndpoint   string `envconfig:"TRANSLATOR_ENDPOINT" default:""`
	TranslatorAPIKey     string `envconfig:"TRANSLATOR_API_KEY" default:""`
	TranslatorDeployment string `envconfig:"TRANSLATOR_DEPLOYMENT" default:""`
	TranslatorAPIVersion string `envconfig:"TRANSLATOR_API_VERSION" default:"2024-02-01"`
	TargetLanguage       string `envconfig:"TARGET_LANGUAGE" default:"Simplified Chinese"`

	// Translation cache (optional)
	RedisURL            string `envconfig:"REDIS_URL" default:""`
	TranslationCacheTTL int    `envconfig:"TRANSLATION_CACHE_TTL" default:"86400"` // seconds

	// Resilience configuration
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`   // Failures before opening circuit
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // Seconds before attempting recovery
	RetryMaxAttempts           int `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`             // Maximum retry attempts
	RetryInitialBackoff        int `envconfig:"RETRY_INITIAL_BACKOFF" default:"100"`        // Initial backoff in milliseconds
	ReconnectMaxAttempts       int `envconfig:"RECONNECT_MAX_ATTEMPTS" default:"3"`         // Websocket dial attempts
	ReconnectBackoff           int `envconfig:"RECONNECT_BACKOFF" default:"500"`            // Dial backoff in milliseconds

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()
	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.applyDerivedDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDerivedDefaults() {
	c.TTSBackend = strings.ToLower(strings.TrimSpace(c.TTSBackend))
	if c.StagingDir == "" {
		c.StagingDir = filepath.Join(c.OutputDir, ".staging")
	}
	if c.HistoryDBPath == "" {
		c.HistoryDBPath = filepath.Join(c.OutputDir, "history.db")
	}
}

// Validate checks settings that do not depend on credentials.
// Missing credentials are reported per batch, before any remote call.
func (c *Config) Validate() error {
	switch c.TTSBackend {
	case BackendCartesia, BackendDeepgram, BackendSilence:
	default:
		return fmt.Errorf("TTS_BACKEND must be one of %s, %s, %s (got %q)", BackendCartesia, BackendDeepgram, BackendSilence, c.TTSBackend)
	}
	if c.MaxTextLength <= 0 {
		return fmt.Errorf("MAX_TEXT_LENGTH must be positive")
	}
	if c.AudioSampleRate <= 0 {
		return fmt.Errorf("AUDIO_SAMPLE_RATE must be positive")
	}
	if strings.TrimSpace(c.OutputDir) == "" {
		return fmt.Errorf("OUTPUT_DIR is required")
	}
	return nil
}

// CircuitBreakerReset returns the breaker reset timeout as a duration
func (c *Config) CircuitBreakerReset() time.Duration {
	return time.Duration(c.CircuitBreakerResetTimeout) * time.Second
}

// TranslationCacheExpiry returns the cache TTL as a duration
func (c *Config) TranslationCacheExpiry() time.Duration {
	return time.Duration(c.TranslationCacheTTL) * time.Second
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
