// Package analyzer classifies decoded frames against reference histograms
// and turns sustained matches into match events.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bdougie/framematch/internal/extractor"
	"github.com/bdougie/framematch/internal/histogram"
	"github.com/bdougie/framematch/internal/metrics"
	"github.com/bdougie/framematch/internal/models"
	"github.com/bdougie/framematch/internal/storage"
)

// FrameWriter persists the frame behind an event and returns where it went
type FrameWriter interface {
	WriteFrame(kind models.EventKind, index int64, frame models.Frame) (string, error)
}

// ProcessorConfig holds the temporal filter settings of a run
type ProcessorConfig struct {
	RunID          uuid.UUID
	ConfirmFrames  int
	CooldownFrames int
	SampleEvery    int64
}

// Summary reports what a run produced
type Summary struct {
	Frames  int64
	Matches int
	Samples int
}

type Processor struct {
	classifier *Classifier
	debouncer  *Debouncer
	sampler    Sampler
	frames     FrameWriter
	events     storage.Storage
	describer  Describer
	metrics    *metrics.Metrics
	logger     *slog.Logger
	runID      uuid.UUID
}

// NewProcessor wires the classification loop. describer may be nil.
func NewProcessor(
	classifier *Classifier,
	frames FrameWriter,
	events storage.Storage,
	describer Describer,
	m *metrics.Metrics,
	logger *slog.Logger,
	cfg ProcessorConfig,
) *Processor {
	if m == nil {
		m = metrics.New()
	}
	return &Processor{
		classifier: classifier,
		debouncer:  NewDebouncer(cfg.ConfirmFrames, cfg.CooldownFrames),
		sampler:    Sampler{Every: cfg.SampleEvery},
		frames:     frames,
		events:     events,
		describer:  describer,
		metrics:    m,
		logger:     logger,
		runID:      cfg.RunID,
	}
}

// State returns the debounce counters, for diagnostics
func (p *Processor) State() DebounceState {
	return p.debouncer.State()
}

// Run pulls frames from src until it is exhausted. Persistence failures are
// logged and never stop the loop; a source error other than io.EOF does.
func (p *Processor) Run(ctx context.Context, src extractor.FrameSource) (Summary, error) {
	var summary Summary

	for {
		frame, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			p.flush()
			return summary, fmt.Errorf("frame %d: %w", summary.Frames, err)
		}

		p.processFrame(ctx, summary.Frames, frame, &summary)
		summary.Frames++
	}

	p.flush()
	p.logger.Info("stream finished",
		"frames", summary.Frames,
		"matches", summary.Matches,
		"samples", summary.Samples,
	)
	return summary, nil
}

func (p *Processor) processFrame(ctx context.Context, frameNum int64, frame models.Frame, summary *Summary) {
	start := time.Now()
	p.metrics.FramesTotal.Inc()

	descriptor := histogram.Extract(frame)
	scores, matched := p.classifier.Classify(descriptor)
	index, fired := p.debouncer.Step(matched)

	state := p.debouncer.State()
	p.metrics.BestScore.Set(p.classifier.Best(scores))
	p.metrics.ConsecutiveMatches.Set(float64(state.Consecutive))
	p.metrics.CooldownRemaining.Set(float64(state.Cooldown))
	if matched {
		p.metrics.MatchingFrames.Inc()
	}
	p.metrics.FrameDuration.Observe(time.Since(start).Seconds())

	switch {
	case fired:
		p.emit(ctx, models.KindMatch, int64(index), frameNum, frame, scores, descriptor)
		summary.Matches++
	case !matched:
		if sample, ok := p.sampler.Sample(frameNum); ok {
			p.emit(ctx, models.KindNoMatch, sample, frameNum, frame, scores, nil)
			summary.Samples++
		}
	}
}

func (p *Processor) emit(ctx context.Context, kind models.EventKind, index, frameNum int64, frame models.Frame, scores []float64, descriptor histogram.Descriptor) {
	log := p.logger.With("kind", kind, "index", index, "frame", frameNum)
	p.metrics.EventsTotal.WithLabelValues(string(kind)).Inc()

	path, err := p.frames.WriteFrame(kind, index, frame)
	if err != nil {
		p.metrics.WriteFailures.WithLabelValues(string(kind)).Inc()
		log.Error("failed to save frame", "error", err)
	}

	event := models.Event{
		RunID:      p.runID,
		Kind:       kind,
		Index:      index,
		Frame:      frameNum,
		Scores:     scores,
		Path:       path,
		Descriptor: descriptor,
		Time:       time.Now().UTC(),
	}

	if kind == models.KindMatch && p.describer != nil && path != "" {
		description, err := p.describer.Describe(ctx, path)
		if err != nil {
			log.Warn("failed to describe frame", "error", err)
		} else {
			event.Description = description
		}
	}

	if kind == models.KindMatch {
		log.Info("match", "scores", scores)
	} else {
		log.Info("no match sample", "scores", scores)
	}

	if err := p.events.AddEvent(ctx, event); err != nil {
		log.Warn("failed to record event", "error", err)
	}
}

func (p *Processor) flush() {
	if err := p.events.Flush(); err != nil {
		p.logger.Error("failed to flush events", "error", err)
	}
}
