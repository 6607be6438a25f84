package subtitles

import (
	"testing"

	"github.com/lexiqai/narration-gateway/internal/timeline"
)

func scenarioTimings(t *testing.T) []timeline.SentenceTiming {
	t.Helper()
	timings, err := timeline.Build([]string{"Hello world.", "This is a test."}, []float64{1200, 900})
	if err != nil {
		t.Fatalf("timeline.Build failed: %v", err)
	}
	return timings
}

func TestFormatTimestamp(t *testing.T) {
	tests := []struct {
		millis float64
		want   string
	}{
		{0, "00:00:00,000"},
		{1200, "00:00:01,200"},
		{999.999, "00:00:00,999"},
		{9.9999999999999982, "00:00:00,010"},
		{61_001.7, "00:01:01,001"},
		{3_600_000, "01:00:00,000"},
		{360_000_000 + 5, "100:00:00,005"},
		{-5, "00:00:00,000"},
	}

	for _, tt := range tests {
		if got := FormatTimestamp(tt.millis); got != tt.want {
			t.Errorf("FormatTimestamp(%f) = %s, expected %s", tt.millis, got, tt.want)
		}
	}
}

func TestRenderPlain_Scenario(t *testing.T) {
	got := RenderPlain(scenarioTimings(t))
	want := "1\n00:00:00,000 --> 00:00:01,200\nHello world.\n\n2\n00:00:01,200 --> 00:00:02,100\nThis is a test.\n"
	if got != want {
		t.Errorf("Expected:\n%q\ngot:\n%q", want, got)
	}
}

func TestRenderTranslated_ShortTranslations(t *testing.T) {
	got := RenderTranslated(scenarioTimings(t), []string{"你好，世界。"})
	want := "1\n00:00:00,000 --> 00:00:01,200\n你好，世界。\n\n2\n00:00:01,200 --> 00:00:02,100\n\n"
	if got != want {
		t.Errorf("Expected:\n%q\ngot:\n%q", want, got)
	}
}

func TestRenderBilingual(t *testing.T) {
	got := RenderBilingual(scenarioTimings(t), []string{"你好，世界。", "这是一个测试。"})
	want := "1\n00:00:00,000 --> 00:00:01,200\nHello world.\n你好，世界。\n\n" +
		"2\n00:00:01,200 --> 00:00:02,100\nThis is a test.\n这是一个测试。\n"
	if got != want {
		t.Errorf("Expected:\n%q\ngot:\n%q", want, got)
	}
}

func TestRender_Deterministic(t *testing.T) {
	timings := scenarioTimings(t)
	translations := []string{"a", "b"}
	for _, variant := range []Variant{VariantPlain, VariantTranslated, VariantBilingual} {
		first, err := Render(variant, timings, translations)
		if err != nil {
			t.Fatalf("Render(%s) failed: %v", variant, err)
		}
		second, _ := Render(variant, timings, translations)
		if first != second {
			t.Errorf("Render(%s) is not deterministic", variant)
		}
	}

	if _, err := Render("karaoke", timings, nil); err == nil {
		t.Error("Expected error for unknown variant")
	}
}

func TestRender_Empty(t *testing.T) {
	if got := RenderPlain(nil); got != "" {
		t.Errorf("Expected empty output, got %q", got)
	}
}

func TestValidateAlignment(t *testing.T) {
	timings := scenarioTimings(t)
	if err := ValidateAlignment(timings, []string{"a", "b"}); err != nil {
		t.Errorf("Expected aligned translations to validate, got %v", err)
	}
	if err := ValidateAlignment(timings, []string{"a"}); err == nil {
		t.Error("Expected error for short translations")
	}
}
