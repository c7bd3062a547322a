package extractor

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/bdougie/framematch/internal/models"
)

// FrameSource yields decoded frames in presentation order.
// Next returns io.EOF once the stream is exhausted.
type FrameSource interface {
	Next(ctx context.Context) (models.Frame, error)
}

// RawSource reads packed BGR frames of a fixed size from a byte stream
type RawSource struct {
	r      io.Reader
	width  int
	height int
}

// NewRawSource wraps r as a stream of width x height BGR frames
func NewRawSource(r io.Reader, width, height int) *RawSource {
	return &RawSource{r: r, width: width, height: height}
}

// Next blocks until a full frame is read. A short final read ends the stream.
func (s *RawSource) Next(ctx context.Context) (models.Frame, error) {
	if err := ctx.Err(); err != nil {
		return models.Frame{}, err
	}

	frame := models.NewFrame(s.width, s.height)
	_, err := io.ReadFull(s.r, frame.Pix)
	switch {
	case err == nil:
		return frame, nil
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return models.Frame{}, io.EOF
	default:
		return models.Frame{}, fmt.Errorf("read frame: %w", err)
	}
}

// SliceSource replays frames held in memory
type SliceSource struct {
	frames []models.Frame
	pos    int
}

// NewSliceSource returns a source that yields frames in order, then io.EOF
func NewSliceSource(frames ...models.Frame) *SliceSource {
	return &SliceSource{frames: frames}
}

func (s *SliceSource) Next(ctx context.Context) (models.Frame, error) {
	if err := ctx.Err(); err != nil {
		return models.Frame{}, err
	}
	if s.pos >= len(s.frames) {
		return models.Frame{}, io.EOF
	}
	f := s.frames[s.pos]
	s.pos++
	return f, nil
}
