// Package histogram builds normalized joint color histograms from BGR frames
// and compares them under the supported comparison methods.
package histogram

import (
	"image"

	"gonum.org/v1/gonum/floats"

	"github.com/bdougie/framematch/internal/models"
)

const (
	// BinsPerChannel is the number of buckets each 8-bit channel is reduced to
	BinsPerChannel = 8
	// Bins is the length of every Descriptor
	Bins = BinsPerChannel * BinsPerChannel * BinsPerChannel

	binShift = 5 // 256 / BinsPerChannel == 1 << binShift
)

// Descriptor is an L2-normalized, flattened 8x8x8 BGR histogram.
// Bin index is b*64 + g*8 + r, with each channel reduced by value>>5.
type Descriptor []float64

// Extract computes the descriptor of a frame. It is a pure function of the
// pixel content; an empty histogram yields an all-zero descriptor.
func Extract(frame models.Frame) Descriptor {
	hist := make(Descriptor, Bins)
	pix := frame.Pix
	for i := 0; i+2 < len(pix); i += models.Channels {
		b := int(pix[i] >> binShift)
		g := int(pix[i+1] >> binShift)
		r := int(pix[i+2] >> binShift)
		hist[(b*BinsPerChannel+g)*BinsPerChannel+r]++
	}
	normalize(hist)
	return hist
}

// FromImage extracts the descriptor of a decoded image of any size
func FromImage(img image.Image) Descriptor {
	return Extract(models.FrameFromImage(img))
}

func normalize(h Descriptor) {
	norm := floats.Norm(h, 2)
	if norm == 0 {
		return
	}
	floats.Scale(1/norm, h)
}

// Float32 returns a single precision copy, the layout pgvector stores
func (d Descriptor) Float32() []float32 {
	out := make([]float32, len(d))
	for i, v := range d {
		out[i] = float32(v)
	}
	return out
}
