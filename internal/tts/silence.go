package tts

import (
	"context"
	"fmt"
	"os"
	"unicode/utf8"

	"github.com/lexiqai/narration-gateway/internal/audio"
)

const (
	silenceMillisPerRune = 60
	silenceMinMillis     = 300
)

// SilenceSynthesizer writes silent PCM sized to the sentence length.
// It needs no credentials and is used for offline runs and dry runs of the pipeline.
type SilenceSynthesizer struct {
	format audio.FormatParameters
}

// NewSilenceSynthesizer creates a silence backend producing mono 16-bit PCM
func NewSilenceSynthesizer(sampleRate int) *SilenceSynthesizer {
	return &SilenceSynthesizer{
		format: audio.FormatParameters{SampleRate: sampleRate, Channels: 1, BitsPerSample: 16},
	}
}

// Name implements Synthesizer
func (s *SilenceSynthesizer) Name() string {
	return "silence"
}

// CheckCredentials implements Synthesizer
func (s *SilenceSynthesizer) CheckCredentials(Credentials) error {
	return nil
}

// Synthesize implements Synthesizer
func (s *SilenceSynthesizer) Synthesize(ctx context.Context, req Request) (*Fragment, error) {
	if err := ctx.Err(); err != nil {
		return nil, &SynthesisError{Index: req.Index, Backend: s.Name(), Err: err}
	}

	millis := utf8.RuneCountInString(req.Text) * silenceMillisPerRune
	if millis < silenceMinMillis {
		millis = silenceMinMillis
	}
	frames := s.format.SampleRate * millis / 1000
	samples := make([]byte, frames*s.format.BlockAlign())

	container, err := audio.Encode(samples, s.format)
	if err != nil {
		return nil, &SynthesisError{Index: req.Index, Backend: s.Name(), Err: err}
	}
	if err := os.WriteFile(req.StagingPath, container, 0o600); err != nil {
		return nil, &SynthesisError{Index: req.Index, Backend: s.Name(), Err: fmt.Errorf("write staging file: %w", err)}
	}

	return &Fragment{
		Index:          req.Index,
		Path:           req.StagingPath,
		ReportedMillis: audio.DurationMillis(len(samples), s.format),
		DurationSource: DurationFromTotal,
	}, nil
}
