package orchestrator

import (
	"time"

	"github.com/lexiqai/narration-gateway/internal/audio"
	"github.com/lexiqai/narration-gateway/internal/observability"
	"github.com/lexiqai/narration-gateway/internal/tts"
)

// Batch is one narration request after sentence splitting
type Batch struct {
	ID          string
	Stamp       time.Time // names staging files; distinct per batch
	Sentences   []string
	Voice       string
	Credentials tts.Credentials
	Metrics     *observability.BatchMetrics // optional
}

// Segment is one merged sentence, in original order
type Segment struct {
	Index           int
	Text            string
	DurationMillis  float64 // derived from the container; used for the timeline
	ReportedMillis  float64 // as reported by the backend
	DurationSource  tts.DurationSource
	DurationSuspect bool
}

// Result is the combined audio of a fully successful batch
type Result struct {
	Segments            []Segment
	Format              audio.FormatParameters
	Audio               []byte // one encoded container
	TotalDurationMillis float64
	Warnings            []string
}

// Sentences returns the segment texts in order
func (r *Result) Sentences() []string {
	out := make([]string, len(r.Segments))
	for i, s := range r.Segments {
		out[i] = s.Text
	}
	return out
}

// Durations returns the segment durations in order
func (r *Result) Durations() []float64 {
	out := make([]float64, len(r.Segments))
	for i, s := range r.Segments {
		out[i] = s.DurationMillis
	}
	return out
}

// outcome is what one fan-out goroutine resolves to
type outcome struct {
	fragment *tts.Fragment
	err      error
}
