// Package tts adapts remote speech synthesis backends to a single
// per-sentence contract: one call writes one PCM container to a
// caller-owned staging path and resolves exactly once.
package tts

import (
	"context"
	"errors"
	"fmt"

	"github.com/lexiqai/narration-gateway/internal/apperror"
)

// DurationSource records where a fragment's reported duration came from
type DurationSource string

const (
	// DurationFromEvents is the furthest audio offset seen in progress events
	DurationFromEvents DurationSource = "events"
	// DurationFromTotal is a backend-reported total duration
	DurationFromTotal DurationSource = "total"
	// DurationUnknown means the backend reported nothing usable
	DurationUnknown DurationSource = "none"
)

// Credentials are threaded into every request so batches can use different keys
type Credentials struct {
	APIKey string
}

// Request describes one sentence to synthesize
type Request struct {
	Index       int // 1-based sentence index within the batch
	Text        string
	Voice       string
	Credentials Credentials
	StagingPath string // where the backend writes its container; the caller deletes it
}

// Fragment is a successfully synthesized sentence
type Fragment struct {
	Index          int
	Path           string
	ReportedMillis float64
	DurationSource DurationSource
}

// Synthesizer turns one sentence into one audio container.
// Implementations must be safe for concurrent use.
type Synthesizer interface {
	// Name identifies the backend in logs and metrics
	Name() string

	// CheckCredentials reports a configuration error when creds cannot
	// be used with this backend. It never contacts the backend.
	CheckCredentials(creds Credentials) error

	// Synthesize writes req.StagingPath and returns the fragment, or a
	// *SynthesisError
	Synthesize(ctx context.Context, req Request) (*Fragment, error)
}

// SynthesisError is a fragment-level failure. Canceled is set when the
// backend explicitly cancelled the request and Reason carries its message;
// otherwise Err holds the transport or unexpected failure.
type SynthesisError struct {
	Index    int
	Backend  string
	Canceled bool
	Reason   string
	Err      error
}

func (e *SynthesisError) Error() string {
	if e.Canceled {
		return fmt.Sprintf("sentence %d: %s cancelled synthesis: %s", e.Index, e.Backend, e.Reason)
	}
	return fmt.Sprintf("sentence %d: %s synthesis failed: %v", e.Index, e.Backend, e.Err)
}

func (e *SynthesisError) Unwrap() error {
	return e.Err
}

// ErrorKind implements apperror.Classified
func (e *SynthesisError) ErrorKind() apperror.Kind {
	return apperror.KindSynthesis
}

// transportFailure reports whether err should count against a backend's
// circuit breaker. Explicit cancellations and caller cancellation do not.
func transportFailure(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var synthErr *SynthesisError
	if errors.As(err, &synthErr) && synthErr.Canceled {
		return false
	}
	return true
}

func requireAPIKey(backend string, creds Credentials) error {
	if creds.APIKey == "" {
		return apperror.Configuration("%s synthesis requires an API key", backend)
	}
	return nil
}
