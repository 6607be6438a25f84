// Package narrator runs one narration batch end to end: split, synthesize
// (and optionally translate) in parallel, rebuild the timeline, render
// subtitles and publish everything together.
package narrator

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lexiqai/narration-gateway/internal/apperror"
	"github.com/lexiqai/narration-gateway/internal/audio"
	"github.com/lexiqai/narration-gateway/internal/observability"
	"github.com/lexiqai/narration-gateway/internal/orchestrator"
	"github.com/lexiqai/narration-gateway/internal/storage"
	"github.com/lexiqai/narration-gateway/internal/subtitles"
	"github.com/lexiqai/narration-gateway/internal/text"
	"github.com/lexiqai/narration-gateway/internal/timeline"
	"github.com/lexiqai/narration-gateway/internal/translation"
	"github.com/lexiqai/narration-gateway/internal/tts"
)

// Request is one narration job
type Request struct {
	Text           string
	Voice          string // empty selects the service default
	Translate      bool
	TargetLanguage string // empty selects the service default

	// Per-batch credential overrides; nil uses the service defaults
	SynthesisCredentials   *tts.Credentials
	TranslationCredentials *translation.Credentials
}

// Result describes a published batch
type Result struct {
	ID             string                    `json:"id"`
	Voice          string                    `json:"voice"`
	Backend        string                    `json:"backend"`
	Timings        []timeline.SentenceTiming `json:"timings"`
	Translations   []string                  `json:"translations,omitempty"`
	TargetLanguage string                    `json:"target_language,omitempty"`
	DurationMillis float64                   `json:"duration_ms"`
	Format         audio.FormatParameters    `json:"format"`
	Files          storage.Published         `json:"files"`
	Warnings       []string                  `json:"warnings,omitempty"`
}

// Options wires a Service
type Options struct {
	Splitter               *text.Splitter
	Synthesizer            tts.Synthesizer
	StagingDir             string
	Translator             translation.Translator // nil disables translation
	Publisher              *storage.Publisher
	History                *storage.History // nil disables the ledger
	MaxTextLength          int              // runes; 0 means unlimited
	DefaultVoice           string
	TargetLanguage         string
	SynthesisCredentials   tts.Credentials
	TranslationCredentials translation.Credentials
}

// Service runs narration batches. It is safe for concurrent use; batches
// share no mutable state.
type Service struct {
	opts         Options
	orchestrator *orchestrator.Orchestrator
	now          func() time.Time
}

// New creates a Service
func New(opts Options) *Service {
	if opts.Splitter == nil {
		opts.Splitter = text.NewSplitter(text.DefaultRules())
	}
	return &Service{
		opts:         opts,
		orchestrator: orchestrator.New(opts.Synthesizer, opts.StagingDir),
		now:          time.Now,
	}
}

// Backend names the synthesis backend
func (s *Service) Backend() string {
	return s.opts.Synthesizer.Name()
}

// History returns the ledger, or nil when disabled
func (s *Service) History() *storage.History {
	return s.opts.History
}

// Narrate runs a batch. Nothing is published unless every sentence was
// synthesized (and translated, when requested).
func (s *Service) Narrate(ctx context.Context, req Request) (*Result, error) {
	batchID := uuid.New().String()
	metrics := observability.NewBatchMetrics(batchID)
	metrics.RecordBatchStart()

	voice := strings.TrimSpace(req.Voice)
	if voice == "" {
		voice = s.opts.DefaultVoice
	}
	logger := observability.WithBatch(batchID, voice).With().Str("backend", s.Backend()).Logger()

	result, err := s.narrate(ctx, batchID, voice, req, metrics, logger)
	metrics.RecordBatchEnd(err == nil)
	if err != nil {
		kind := apperror.KindOf(err)
		metrics.RecordError(kind.String(), "narrator")
		event := logger.Warn()
		if !kind.UserFacing() {
			event = logger.Error()
		}
		event.Err(err).Str("kind", kind.String()).Msg("Narration failed")
		return nil, err
	}

	logger.Info().
		Int("sentences", len(result.Timings)).
		Float64("duration_ms", result.DurationMillis).
		Str("base_name", result.Files.BaseName).
		Bool("translated", req.Translate).
		Msg("Narration published")
	return result, nil
}

func (s *Service) narrate(ctx context.Context, batchID, voice string, req Request, metrics *observability.BatchMetrics, logger zerolog.Logger) (*Result, error) {
	// Input checks
	input := strings.TrimSpace(req.Text)
	if input == "" {
		return nil, apperror.Input("text is required")
	}
	if n := utf8.RuneCountInString(input); s.opts.MaxTextLength > 0 && n > s.opts.MaxTextLength {
		return nil, apperror.Input("text is %d characters, limit is %d", n, s.opts.MaxTextLength)
	}
	if voice == "" {
		return nil, apperror.Input("voice is required")
	}

	// Configuration checks, before any remote call
	synthCreds := s.opts.SynthesisCredentials
	if req.SynthesisCredentials != nil {
		synthCreds = *req.SynthesisCredentials
	}
	if err := s.opts.Synthesizer.CheckCredentials(synthCreds); err != nil {
		return nil, err
	}

	targetLanguage := ""
	translationCreds := s.opts.TranslationCredentials
	if req.Translate {
		if s.opts.Translator == nil {
			return nil, apperror.Configuration("translation is not configured")
		}
		if req.TranslationCredentials != nil {
			translationCreds = *req.TranslationCredentials
		}
		if err := translationCreds.Check(); err != nil {
			return nil, err
		}
		targetLanguage = strings.TrimSpace(req.TargetLanguage)
		if targetLanguage == "" {
			targetLanguage = s.opts.TargetLanguage
		}
		if targetLanguage == "" {
			return nil, apperror.Input("target language is required for translation")
		}
	}

	sentences := s.opts.Splitter.Split(input)
	if len(sentences) == 0 {
		return nil, apperror.Input("no sentences found")
	}
	logger.Debug().Int("sentences", len(sentences)).Msg("Text split")

	stamp := s.now()

	// Translation runs alongside synthesis; both must succeed
	var (
		translations []string
		translateErr error
		wg           sync.WaitGroup
	)
	if req.Translate {
		wg.Add(1)
		go func() {
			defer wg.Done()
			translations, translateErr = translation.TranslateAll(ctx, s.opts.Translator, sentences, targetLanguage, translationCreds)
		}()
	}

	synthesized, synthErr := s.orchestrator.SynthesizeAll(ctx, orchestrator.Batch{
		ID:          batchID,
		Stamp:       stamp,
		Sentences:   sentences,
		Voice:       voice,
		Credentials: synthCreds,
		Metrics:     metrics,
	})
	wg.Wait()
	if synthErr != nil {
		return nil, synthErr
	}
	if translateErr != nil {
		return nil, translateErr
	}

	timings, err := timeline.Build(synthesized.Sentences(), synthesized.Durations())
	if err != nil {
		return nil, err
	}

	bundle := storage.Bundle{
		Audio:     synthesized.Audio,
		Subtitles: subtitles.RenderPlain(timings),
	}
	if req.Translate {
		if err := subtitles.ValidateAlignment(timings, translations); err != nil {
			return nil, err
		}
		bundle.HasTranslation = true
		bundle.Translated = subtitles.RenderTranslated(timings, translations)
		bundle.Bilingual = subtitles.RenderBilingual(timings, translations)
	}

	published, err := s.opts.Publisher.Publish(ctx, stamp, voice, bundle)
	if err != nil {
		return nil, err
	}
	metrics.RecordAudioBytes("published", int64(len(bundle.Audio)))

	result := &Result{
		ID:             batchID,
		Voice:          voice,
		Backend:        s.Backend(),
		Timings:        timings,
		Translations:   translations,
		TargetLanguage: targetLanguage,
		DurationMillis: timeline.TotalMillis(timings),
		Format:         synthesized.Format,
		Files:          *published,
		Warnings:       synthesized.Warnings,
	}

	if s.opts.History != nil {
		if err := s.opts.History.Record(ctx, storage.Entry{
			ID:             batchID,
			BaseName:       published.BaseName,
			Voice:          voice,
			Backend:        s.Backend(),
			SentenceCount:  len(timings),
			DurationMillis: result.DurationMillis,
			Translated:     req.Translate,
			TargetLanguage: targetLanguage,
			Warnings:       len(result.Warnings),
			CreatedAt:      stamp,
		}); err != nil {
			// The batch is already published; a missing ledger row is not a batch failure
			logger.Error().Err(err).Msg("Failed to record narration history")
			metrics.RecordError(apperror.KindStorage.String(), "history")
		}
	}

	return result, nil
}
