package narrator

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/lexiqai/narration-gateway/internal/config"
	"github.com/lexiqai/narration-gateway/internal/observability"
)

func silenceConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		OutputDir:                 dir,
		StagingDir:                filepath.Join(dir, ".staging"),
		HistoryDBPath:             filepath.Join(dir, "history.db"),
		MaxTextLength:             5000,
		TTSBackend:                config.BackendSilence,
		TTSVoice:                  "default",
		AudioSampleRate:           8000,
		TargetLanguage:            "French",
		CircuitBreakerMaxFailures: 5,
		RetryMaxAttempts:          1,
	}
}

func TestFromConfig_Silence(t *testing.T) {
	ctx := context.Background()
	components, err := FromConfig(ctx, silenceConfig(t))
	if err != nil {
		t.Fatalf("FromConfig failed: %v", err)
	}
	defer components.Close()

	result, err := components.Service.Narrate(ctx, Request{Text: "Hello world. Bye."})
	if err != nil {
		t.Fatalf("Narrate failed: %v", err)
	}
	if result.Backend != "silence" || result.Voice != "default" {
		t.Errorf("Unexpected backend/voice %s/%s", result.Backend, result.Voice)
	}
	// 12 and 4 runes at 60ms each, with a 300ms floor
	if result.DurationMillis != 720+300 {
		t.Errorf("Expected 1020ms, got %f", result.DurationMillis)
	}

	listed, err := components.History.List(ctx, 0)
	if err != nil || len(listed) != 1 {
		t.Errorf("Expected one history entry, got %d (%v)", len(listed), err)
	}
}

func TestComponents_DependencyChecks(t *testing.T) {
	cfg := silenceConfig(t)
	components, err := FromConfig(context.Background(), cfg)
	if err != nil {
		t.Fatalf("FromConfig failed: %v", err)
	}
	defer components.Close()

	ready, deps := observability.RunChecks(context.Background(), components.DependencyChecks()...)
	if !ready {
		t.Errorf("Expected ready, got %+v", deps)
	}
	if _, ok := deps["translator"]; ok {
		t.Error("Expected no translator check without an endpoint")
	}

	cfg.TranslatorEndpoint = "https://example.invalid"
	ready, deps = observability.RunChecks(context.Background(), components.DependencyChecks()...)
	if ready || deps["translator"].Status != "unhealthy" {
		t.Errorf("Expected translator check to fail without a key, got %+v", deps)
	}
}
