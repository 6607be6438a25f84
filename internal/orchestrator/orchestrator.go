// Package orchestrator fans out one synthesis call per sentence, applies
// the all-or-nothing failure policy and merges the fragments in order.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/narration-gateway/internal/apperror"
	"github.com/lexiqai/narration-gateway/internal/audio"
	"github.com/lexiqai/narration-gateway/internal/observability"
	"github.com/lexiqai/narration-gateway/internal/tts"
)

// Orchestrator runs batches against one synthesizer
type Orchestrator struct {
	synth      tts.Synthesizer
	stagingDir string
}

// New creates an orchestrator writing fragment containers under stagingDir
func New(synth tts.Synthesizer, stagingDir string) *Orchestrator {
	return &Orchestrator{
		synth:      synth,
		stagingDir: stagingDir,
	}
}

// SynthesizeAll synthesizes every sentence concurrently and merges the
// results in sentence order. If any sentence fails the whole batch fails
// with the error of the lowest failed index. Staging files are removed
// on every path.
func (o *Orchestrator) SynthesizeAll(ctx context.Context, batch Batch) (*Result, error) {
	if len(batch.Sentences) == 0 {
		return nil, apperror.Input("no sentences found")
	}
	metrics := batch.Metrics
	if metrics == nil {
		metrics = observability.NewBatchMetrics(batch.ID)
	}
	logger := observability.WithBatch(batch.ID, batch.Voice).With().Str("backend", o.synth.Name()).Logger()

	if err := os.MkdirAll(o.stagingDir, 0o755); err != nil {
		return nil, apperror.Storage(err, "create staging directory")
	}

	paths := make([]string, len(batch.Sentences))
	for i := range batch.Sentences {
		paths[i] = o.stagingPath(batch, i+1)
	}
	defer removeAll(paths, logger)

	outcomes := o.fanOut(ctx, batch, paths, logger, metrics)

	// Lowest index wins regardless of completion order
	for i, oc := range outcomes {
		if oc.err == nil {
			continue
		}
		err := oc.err
		// Unclassified backend errors are synthesis failures; anything
		// already classified keeps its kind
		if apperror.KindOf(err) == apperror.KindUnknown {
			err = &tts.SynthesisError{Index: i + 1, Backend: o.synth.Name(), Err: err}
		}
		logger.Error().Err(err).Int("sentence_index", i+1).Int("sentences", len(outcomes)).Msg("Batch synthesis failed")
		metrics.RecordError(apperror.KindOf(err).String(), "orchestrator")
		return nil, err
	}

	result, err := o.merge(batch, outcomes, logger, metrics)
	if err != nil {
		metrics.RecordError(apperror.KindOf(err).String(), "orchestrator")
		return nil, err
	}

	logger.Info().
		Int("sentences", len(result.Segments)).
		Float64("duration_ms", result.TotalDurationMillis).
		Str("format", result.Format.String()).
		Msg("Batch synthesized")

	return result, nil
}

// fanOut launches every sentence at once and waits for all of them
func (o *Orchestrator) fanOut(ctx context.Context, batch Batch, paths []string, logger zerolog.Logger, metrics *observability.BatchMetrics) []outcome {
	outcomes := make([]outcome, len(batch.Sentences))
	var wg sync.WaitGroup

	for i, sentence := range batch.Sentences {
		wg.Add(1)
		go func(i int, sentence string) {
			defer wg.Done()
			start := time.Now()
			fragment, err := o.synth.Synthesize(ctx, tts.Request{
				Index:       i + 1,
				Text:        sentence,
				Voice:       batch.Voice,
				Credentials: batch.Credentials,
				StagingPath: paths[i],
			})
			switch {
			case err == nil && fragment == nil:
				err = apperror.ContractViolation("sentence %d: synthesizer returned no fragment", i+1)
			case err == nil && fragment.Path != paths[i]:
				// Only assigned staging paths are cleaned up with the batch
				removeAll([]string{fragment.Path}, logger)
				err = apperror.ContractViolation("sentence %d: fragment written to %s, expected %s", i+1, fragment.Path, paths[i])
			}
			metrics.RecordFragment(o.synth.Name(), time.Since(start), err == nil)
			outcomes[i] = outcome{fragment: fragment, err: err}
		}(i, sentence)
	}

	wg.Wait()
	return outcomes
}

// merge decodes every fragment in order, checks they share one format and
// concatenates whole frames into a single container
func (o *Orchestrator) merge(batch Batch, outcomes []outcome, logger zerolog.Logger, metrics *observability.BatchMetrics) (*Result, error) {
	result := &Result{Segments: make([]Segment, 0, len(outcomes))}
	var combined []byte

	for i, oc := range outcomes {
		index := i + 1
		if oc.fragment.Index != index {
			return nil, apperror.ContractViolation("fragment index %d returned for sentence %d", oc.fragment.Index, index)
		}

		b, err := os.ReadFile(oc.fragment.Path)
		if err != nil {
			return nil, &tts.SynthesisError{Index: index, Backend: o.synth.Name(), Err: fmt.Errorf("read fragment: %w", err)}
		}
		decoded, err := audio.Decode(b)
		if err != nil {
			return nil, fmt.Errorf("sentence %d: %w", index, err)
		}

		if i == 0 {
			result.Format = decoded.Format
		} else if decoded.Format != result.Format {
			return nil, &audio.FormatError{Reason: fmt.Sprintf("sentence %d is %s, batch is %s", index, decoded.Format, result.Format)}
		}

		frames := decoded.Frames()
		combined = append(combined, frames...)

		seg := Segment{
			Index:          index,
			Text:           batch.Sentences[i],
			DurationMillis: audio.DurationMillis(len(frames), decoded.Format),
			ReportedMillis: oc.fragment.ReportedMillis,
			DurationSource: oc.fragment.DurationSource,
		}
		if seg.DurationSource == tts.DurationUnknown || seg.ReportedMillis <= 0 || seg.DurationMillis == 0 {
			seg.DurationSuspect = true
			warning := fmt.Sprintf("sentence %d: backend reported no usable duration (source %s); using %.0fms from audio", index, seg.DurationSource, seg.DurationMillis)
			result.Warnings = append(result.Warnings, warning)
			metrics.RecordZeroDuration(o.synth.Name())
			logger.Warn().
				Int("sentence_index", index).
				Str("duration_source", string(seg.DurationSource)).
				Float64("reported_ms", seg.ReportedMillis).
				Float64("decoded_ms", seg.DurationMillis).
				Msg("Suspect fragment duration")
		}

		result.Segments = append(result.Segments, seg)
	}
	result.TotalDurationMillis = audio.DurationMillis(len(combined), result.Format)

	container, err := audio.Encode(combined, result.Format)
	if err != nil {
		return nil, err
	}
	result.Audio = container
	metrics.RecordAudioBytes("synthesized", int64(len(combined)))
	return result, nil
}

func (o *Orchestrator) stagingPath(batch Batch, index int) string {
	id := batch.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return filepath.Join(o.stagingDir, fmt.Sprintf("%d_%s_%03d.wav", batch.Stamp.UnixMilli(), id, index))
}

func removeAll(paths []string, logger zerolog.Logger) {
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			logger.Warn().Err(err).Str("path", p).Msg("Failed to remove staging file")
		}
	}
}
