package models

import (
	"fmt"
	"image"
	"image/color"
	"time"

	"github.com/google/uuid"
)

// Channels is the number of interleaved samples per pixel in a Frame
const Channels = 3

// Frame is one decoded video frame in packed BGR order, row-major, no padding
type Frame struct {
	Width  int
	Height int
	Pix    []byte
}

// FrameSize returns the number of bytes a width x height BGR frame occupies
func FrameSize(width, height int) int {
	return width * height * Channels
}

// NewFrame allocates a zeroed frame of the given dimensions
func NewFrame(width, height int) Frame {
	return Frame{Width: width, Height: height, Pix: make([]byte, FrameSize(width, height))}
}

// Validate checks that Pix holds exactly one frame worth of samples
func (f Frame) Validate() error {
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("invalid frame dimensions %dx%d", f.Width, f.Height)
	}
	if want := FrameSize(f.Width, f.Height); len(f.Pix) != want {
		return fmt.Errorf("frame has %d bytes, want %d for %dx%d", len(f.Pix), want, f.Width, f.Height)
	}
	return nil
}

// Image converts the frame into an RGBA image suitable for the standard encoders
func (f Frame) Image() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	for i, j := 0, 0; i+2 < len(f.Pix) && j+3 < len(img.Pix); i, j = i+3, j+4 {
		img.Pix[j] = f.Pix[i+2]
		img.Pix[j+1] = f.Pix[i+1]
		img.Pix[j+2] = f.Pix[i]
		img.Pix[j+3] = 0xff
	}
	return img
}

// FrameFromImage packs any decoded image into a BGR frame.
// Alpha is dropped; samples are reduced to 8 bits.
func FrameFromImage(img image.Image) Frame {
	b := img.Bounds()
	f := NewFrame(b.Dx(), b.Dy())
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			f.Pix[i] = c.B
			f.Pix[i+1] = c.G
			f.Pix[i+2] = c.R
			i += 3
		}
	}
	return f
}

// EventKind is the output category of an event
type EventKind string

const (
	KindMatch   EventKind = "match"
	KindNoMatch EventKind = "nomatch"
)

// Event represents a confirmed match or a periodic non-match sample
type Event struct {
	RunID       uuid.UUID `json:"run_id"`
	Kind        EventKind `json:"kind"`
	Index       int64     `json:"index"`
	Frame       int64     `json:"frame"`
	Scores      []float64 `json:"scores"`
	Path        string    `json:"path,omitempty"`
	Description string    `json:"description,omitempty"`
	Descriptor  []float64 `json:"-"`
	Time        time.Time `json:"time"`
}

// RunInfo identifies one scan of one video
type RunInfo struct {
	ID     uuid.UUID
	Source string
	Method string
	Cutoff float64
}

// SimilarEvent is a stored match event ranked by descriptor distance
type SimilarEvent struct {
	RunID    uuid.UUID `json:"run_id"`
	Index    int64     `json:"index"`
	Frame    int64     `json:"frame"`
	Path     string    `json:"path"`
	Distance float64   `json:"distance"`
}
