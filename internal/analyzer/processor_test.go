package analyzer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bdougie/framematch/internal/extractor"
	"github.com/bdougie/framematch/internal/histogram"
	"github.com/bdougie/framematch/internal/metrics"
	"github.com/bdougie/framematch/internal/models"
)

type written struct {
	kind  models.EventKind
	index int64
}

type fakeWriter struct {
	writes []written
	err    error
}

func (w *fakeWriter) WriteFrame(kind models.EventKind, index int64, frame models.Frame) (string, error) {
	if w.err != nil {
		return "", w.err
	}
	w.writes = append(w.writes, written{kind, index})
	return fmt.Sprintf("%s/%d.png", kind, index), nil
}

type fakeEvents struct {
	events  []models.Event
	flushed int
}

func (f *fakeEvents) AddEvent(ctx context.Context, e models.Event) error {
	f.events = append(f.events, e)
	return nil
}

func (f *fakeEvents) Flush() error {
	f.flushed++
	return nil
}

type fakeDescriber struct {
	paths []string
	err   error
}

func (d *fakeDescriber) Describe(ctx context.Context, path string) (string, error) {
	d.paths = append(d.paths, path)
	if d.err != nil {
		return "", d.err
	}
	return "a red frame", nil
}

type errSource struct{ err error }

func (s errSource) Next(ctx context.Context) (models.Frame, error) {
	return models.Frame{}, s.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type harness struct {
	proc      *Processor
	writer    *fakeWriter
	events    *fakeEvents
	describer *fakeDescriber
	metrics   *metrics.Metrics
}

func newHarness(t *testing.T, describer *fakeDescriber) *harness {
	t.Helper()
	c, err := NewClassifier(refSet(t, red), histogram.ChiSquared, 0.5)
	require.NoError(t, err)

	h := &harness{writer: &fakeWriter{}, events: &fakeEvents{}, describer: describer, metrics: metrics.New()}
	var d Describer
	if describer != nil {
		d = describer
	}
	h.proc = NewProcessor(c, h.writer, h.events, d, h.metrics, quietLogger(), ProcessorConfig{
		RunID:          uuid.New(),
		ConfirmFrames:  DefaultConfirmFrames,
		CooldownFrames: DefaultCooldownFrames,
		SampleEvery:    DefaultSampleEvery,
	})
	return h
}

func framesOf(f models.Frame, n int) []models.Frame {
	out := make([]models.Frame, n)
	for i := range out {
		out[i] = f
	}
	return out
}

func TestProcessorMatchEvent(t *testing.T) {
	h := newHarness(t, nil)
	seq := append(framesOf(blue, 1), framesOf(red, 5)...)
	seq = append(seq, blue)

	summary, err := h.proc.Run(context.Background(), extractor.NewSliceSource(seq...))
	require.NoError(t, err)

	assert.Equal(t, Summary{Frames: 7, Matches: 1, Samples: 1}, summary)
	assert.Equal(t, []written{{models.KindNoMatch, 0}, {models.KindMatch, 0}}, h.writer.writes)

	require.Len(t, h.events.events, 2)
	match := h.events.events[1]
	assert.Equal(t, models.KindMatch, match.Kind)
	assert.Equal(t, int64(5), match.Frame)
	assert.Equal(t, "match/0.png", match.Path)
	assert.Len(t, match.Descriptor, histogram.Bins)
	assert.Len(t, match.Scores, 1)
	assert.Nil(t, h.events.events[0].Descriptor)
	assert.Equal(t, 1, h.events.flushed)

	assert.Equal(t, 7.0, testutil.ToFloat64(h.metrics.FramesTotal))
	assert.Equal(t, 5.0, testutil.ToFloat64(h.metrics.MatchingFrames))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.EventsTotal.WithLabelValues("match")))
}

func TestProcessorSamplesOnlyNonMatchingFrames(t *testing.T) {
	h := newHarness(t, nil)
	// Frame 0 matches so no sample is taken there; frame 1000 does not match.
	seq := append(framesOf(red, 1), framesOf(blue, 1500)...)

	summary, err := h.proc.Run(context.Background(), extractor.NewSliceSource(seq...))
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Samples)
	assert.Equal(t, []written{{models.KindNoMatch, 1}}, h.writer.writes)
	assert.Equal(t, int64(1000), h.events.events[0].Frame)
}

func TestProcessorWriteFailureIsNotFatal(t *testing.T) {
	h := newHarness(t, &fakeDescriber{})
	h.writer.err = errors.New("disk full")

	summary, err := h.proc.Run(context.Background(), extractor.NewSliceSource(framesOf(red, 20)...))
	require.NoError(t, err)

	assert.Equal(t, int64(20), summary.Frames)
	assert.Equal(t, 2, summary.Matches)
	require.Len(t, h.events.events, 2)
	assert.Empty(t, h.events.events[0].Path)
	assert.Equal(t, int64(1), h.events.events[1].Index)
	assert.Empty(t, h.describer.paths, "frames that were not saved are not described")
	assert.Equal(t, 2.0, testutil.ToFloat64(h.metrics.WriteFailures.WithLabelValues("match")))
}

func TestProcessorDescribesMatches(t *testing.T) {
	h := newHarness(t, &fakeDescriber{})

	_, err := h.proc.Run(context.Background(), extractor.NewSliceSource(framesOf(red, 5)...))
	require.NoError(t, err)

	assert.Equal(t, []string{"match/0.png"}, h.describer.paths)
	require.Len(t, h.events.events, 1)
	assert.Equal(t, "a red frame", h.events.events[0].Description)
}

func TestProcessorDescriberFailureKeepsEvent(t *testing.T) {
	h := newHarness(t, &fakeDescriber{err: errors.New("model offline")})

	_, err := h.proc.Run(context.Background(), extractor.NewSliceSource(framesOf(red, 5)...))
	require.NoError(t, err)

	require.Len(t, h.events.events, 1)
	assert.Empty(t, h.events.events[0].Description)
}

func TestProcessorSourceError(t *testing.T) {
	h := newHarness(t, nil)
	boom := errors.New("pipe broken")

	_, err := h.proc.Run(context.Background(), errSource{err: boom})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, h.events.flushed)
}

func TestProcessorCancelled(t *testing.T) {
	h := newHarness(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := h.proc.Run(ctx, extractor.NewSliceSource(framesOf(red, 3)...))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, summary.Frames)
}

func TestProcessorEmptyStream(t *testing.T) {
	h := newHarness(t, nil)
	summary, err := h.proc.Run(context.Background(), extractor.NewSliceSource())
	require.NoError(t, err)
	assert.Equal(t, Summary{}, summary)
	assert.Empty(t, h.writer.writes)
}
