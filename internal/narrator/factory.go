package narrator

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/lexiqai/narration-gateway/internal/config"
	"github.com/lexiqai/narration-gateway/internal/observability"
	"github.com/lexiqai/narration-gateway/internal/storage"
	"github.com/lexiqai/narration-gateway/internal/text"
	"github.com/lexiqai/narration-gateway/internal/translation"
	"github.com/lexiqai/narration-gateway/internal/tts"
)

// Components is a Service together with the resources it was built from
type Components struct {
	Service     *Service
	Synthesizer tts.Synthesizer
	Publisher   *storage.Publisher
	History     *storage.History
	Cache       *translation.RedisCache // nil without REDIS_URL

	cfg *config.Config
}

// FromConfig wires a Service from configuration. Credentials are not
// checked here; a missing key fails the first batch that needs it.
func FromConfig(ctx context.Context, cfg *config.Config) (*Components, error) {
	synth, err := tts.New(cfg)
	if err != nil {
		return nil, err
	}

	publisher, err := storage.NewPublisher(cfg.OutputDir)
	if err != nil {
		return nil, err
	}

	history, err := storage.OpenHistory(ctx, cfg.HistoryDBPath)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}

	translator, cache, err := translation.NewFromConfig(ctx, cfg)
	if err != nil {
		history.Close()
		return nil, fmt.Errorf("translation cache: %w", err)
	}

	svc := New(Options{
		Splitter: text.NewSplitter(text.Rules{
			Terminators:   cfg.SentenceTerminators,
			Abbreviations: cfg.SentenceAbbreviations,
		}),
		Synthesizer:            synth,
		StagingDir:             cfg.StagingDir,
		Translator:             translator,
		Publisher:              publisher,
		History:                history,
		MaxTextLength:          cfg.MaxTextLength,
		DefaultVoice:           cfg.TTSVoice,
		TargetLanguage:         cfg.TargetLanguage,
		SynthesisCredentials:   tts.CredentialsFromConfig(cfg),
		TranslationCredentials: translation.CredentialsFromConfig(cfg),
	})

	return &Components{
		Service:     svc,
		Synthesizer: synth,
		Publisher:   publisher,
		History:     history,
		Cache:       cache,
		cfg:         cfg,
	}, nil
}

// Close releases the history database and the cache connection
func (c *Components) Close() error {
	var errs []error
	if c.Cache != nil {
		errs = append(errs, c.Cache.Close())
	}
	errs = append(errs, c.History.Close())
	return errors.Join(errs...)
}

// DependencyChecks lists the readiness checks for these components.
// The translator is checked only when an endpoint is configured.
func (c *Components) DependencyChecks() []observability.DependencyCheck {
	checks := []observability.DependencyCheck{
		{Name: "synthesizer", Check: func(ctx context.Context) (bool, error) {
			if err := c.Synthesizer.CheckCredentials(tts.CredentialsFromConfig(c.cfg)); err != nil {
				return false, err
			}
			return true, nil
		}},
		{Name: "output_dir", Check: func(ctx context.Context) (bool, error) {
			info, err := os.Stat(c.Publisher.Dir())
			if err != nil {
				return false, err
			}
			if !info.IsDir() {
				return false, fmt.Errorf("%s is not a directory", c.Publisher.Dir())
			}
			return true, nil
		}},
		{Name: "history", Check: c.History.Ping},
	}
	if c.cfg.TranslatorEndpoint != "" {
		checks = append(checks, observability.DependencyCheck{Name: "translator", Check: func(ctx context.Context) (bool, error) {
			if err := translation.CredentialsFromConfig(c.cfg).Check(); err != nil {
				return false, err
			}
			return true, nil
		}})
	}
	if c.Cache != nil {
		checks = append(checks, observability.DependencyCheck{Name: "translation_cache", Check: c.Cache.Ping})
	}
	return checks
}
