// Package subtitles renders sentence timelines as SRT subtitle tracks.
package subtitles

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/lexiqai/narration-gateway/internal/apperror"
	"github.com/lexiqai/narration-gateway/internal/timeline"
)

// Variant names one rendered subtitle track
type Variant string

const (
	VariantPlain      Variant = "plain"
	VariantTranslated Variant = "translated"
	VariantBilingual  Variant = "bilingual"
)

// floorTolerance absorbs float drift from summing per-sentence durations,
// so an offset that is a whole millisecond in sample terms is not floored
// one millisecond short.
const floorTolerance = 1e-6

// FormatTimestamp renders fractional milliseconds as HH:MM:SS,mmm.
// The sub-millisecond part is truncated, not rounded. Hours are not capped.
func FormatTimestamp(millis float64) string {
	if millis < 0 || math.IsNaN(millis) {
		millis = 0
	}
	total := int64(math.Floor(millis + floorTolerance))
	hours := total / 3_600_000
	minutes := (total / 60_000) % 60
	seconds := (total / 1000) % 60
	ms := total % 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, seconds, ms)
}

// FormatRange renders the time line of one cue
func FormatRange(startMillis, endMillis float64) string {
	return FormatTimestamp(startMillis) + " --> " + FormatTimestamp(endMillis)
}

// RenderPlain renders the source sentences
func RenderPlain(timings []timeline.SentenceTiming) string {
	return render(timings, func(i int, t timeline.SentenceTiming) []string {
		return []string{t.Text}
	})
}

// RenderTranslated renders the translations. Positions with no translation
// get an empty text line.
func RenderTranslated(timings []timeline.SentenceTiming, translations []string) string {
	return render(timings, func(i int, _ timeline.SentenceTiming) []string {
		return []string{translationAt(translations, i)}
	})
}

// RenderBilingual renders the source sentence followed by its translation
func RenderBilingual(timings []timeline.SentenceTiming, translations []string) string {
	return render(timings, func(i int, t timeline.SentenceTiming) []string {
		return []string{t.Text, translationAt(translations, i)}
	})
}

// Render dispatches on variant
func Render(variant Variant, timings []timeline.SentenceTiming, translations []string) (string, error) {
	switch variant {
	case VariantPlain:
		return RenderPlain(timings), nil
	case VariantTranslated:
		return RenderTranslated(timings, translations), nil
	case VariantBilingual:
		return RenderBilingual(timings, translations), nil
	default:
		return "", fmt.Errorf("unknown subtitle variant %q", variant)
	}
}

// ValidateAlignment checks the positional pairing of translations with timings
func ValidateAlignment(timings []timeline.SentenceTiming, translations []string) error {
	if len(translations) != len(timings) {
		return apperror.ContractViolation("subtitles: %d translations for %d timings", len(translations), len(timings))
	}
	return nil
}

// render writes one cue per timing: sequence number, time range, text lines
// and a trailing newline. Cues are joined by a newline, which yields the
// blank separator line.
func render(timings []timeline.SentenceTiming, lines func(int, timeline.SentenceTiming) []string) string {
	cues := make([]string, 0, len(timings))
	for i, t := range timings {
		var b strings.Builder
		b.WriteString(strconv.Itoa(t.Index))
		b.WriteByte('\n')
		b.WriteString(FormatRange(t.StartMillis, t.EndMillis))
		b.WriteByte('\n')
		for _, line := range lines(i, t) {
			b.WriteString(line)
			b.WriteByte('\n')
		}
		cues = append(cues, b.String())
	}
	return strings.Join(cues, "\n")
}

func translationAt(translations []string, i int) string {
	if i < len(translations) {
		return translations[i]
	}
	return ""
}
