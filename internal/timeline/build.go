package timeline

import (
	"github.com/lexiqai/narration-gateway/internal/apperror"
)

// SentenceTiming places one sentence on the narration timeline.
// Offsets are fractional milliseconds from the start of the combined audio.
type SentenceTiming struct {
	Index       int     `json:"index"`
	Text        string  `json:"text"`
	StartMillis float64 `json:"start_ms"`
	EndMillis   float64 `json:"end_ms"`
}

// DurationMillis is the length of the interval
func (t SentenceTiming) DurationMillis() float64 {
	return t.EndMillis - t.StartMillis
}

// Build lays sentences end to end in order. Each interval starts where the
// previous one ended, the first at zero, and indexes are 1-based.
func Build(sentences []string, durations []float64) ([]SentenceTiming, error) {
	if len(sentences) != len(durations) {
		return nil, apperror.ContractViolation("timeline: %d sentences but %d durations", len(sentences), len(durations))
	}

	timings := make([]SentenceTiming, len(sentences))
	offset := 0.0
	for i, sentence := range sentences {
		d := durations[i]
		if d < 0 {
			return nil, apperror.ContractViolation("timeline: negative duration %f for sentence %d", d, i+1)
		}
		timings[i] = SentenceTiming{
			Index:       i + 1,
			Text:        sentence,
			StartMillis: offset,
			EndMillis:   offset + d,
		}
		offset += d
	}
	return timings, nil
}

// TotalMillis returns the end of the last interval
func TotalMillis(timings []SentenceTiming) float64 {
	if len(timings) == 0 {
		return 0
	}
	return timings[len(timings)-1].EndMillis
}
