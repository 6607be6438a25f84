package observability

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	globalLogger zerolog.Logger
	initOnce     sync.Once
)

// InitLogger initializes the global structured logger on stdout
func InitLogger(level string, pretty bool) {
	InitLoggerTo(os.Stdout, level, pretty)
}

// InitLoggerTo initializes the global structured logger on w.
// Only the first call takes effect.
func InitLoggerTo(w io.Writer, level string, pretty bool) {
	initOnce.Do(func() {
		zerolog.SetGlobalLevel(parseLevel(level))

		if pretty {
			// Pretty console output for development and interactive terminals
			w = zerolog.ConsoleWriter{
				Out:        w,
				TimeFormat: time.RFC3339,
			}
		}
		globalLogger = zerolog.New(w).With().Timestamp().Logger()

		log.Logger = globalLogger
	})
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// GetLogger returns the global logger
func GetLogger() zerolog.Logger {
	InitLogger("info", false)
	return globalLogger
}

// WithBatch returns a logger tagged with the batch id and voice
func WithBatch(batchID, voice string) zerolog.Logger {
	return GetLogger().With().
		Str("batch_id", batchID).
		Str("voice", voice).
		Logger()
}

// WithCorrelationID creates a logger with a correlation ID
func WithCorrelationID(correlationID string) zerolog.Logger {
	if correlationID == "" {
		correlationID = NewCorrelationID()
	}
	return GetLogger().With().Str("correlation_id", correlationID).Logger()
}

// NewCorrelationID generates a new correlation ID, also used as a batch id
func NewCorrelationID() string {
	return uuid.New().String()
}
