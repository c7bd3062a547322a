package histogram

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMethod(t *testing.T) {
	for _, m := range Methods() {
		got, err := ParseMethod(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}

	_, err := ParseMethod("euclidean")
	assert.ErrorIs(t, err, ErrUnknownMethod)

	_, err = ParseMethod("")
	assert.ErrorIs(t, err, ErrUnknownMethod)
}

func TestMethodDirection(t *testing.T) {
	assert.True(t, Correlation.HigherIsSimilar())
	assert.True(t, Intersection.HigherIsSimilar())
	assert.False(t, ChiSquared.HigherIsSimilar())
	assert.False(t, Hellinger.HigherIsSimilar())
}

func TestWithin(t *testing.T) {
	const cutoff = 0.5
	tests := []struct {
		method Method
		score  float64
		want   bool
	}{
		{Correlation, 0.6, true},
		{Correlation, 0.5, false},
		{Correlation, 0.4, false},
		{Intersection, 0.6, true},
		{Intersection, 0.5, false},
		{ChiSquared, 0.4, true},
		{ChiSquared, 0.5, false},
		{ChiSquared, 0.6, false},
		{Hellinger, 0.4, true},
		{Hellinger, 0.5, false},
		{Hellinger, 0.6, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.method.Within(tt.score, cutoff), "%v score=%v", tt.method, tt.score)
	}
}

func TestCompareIdentical(t *testing.T) {
	d := Extract(randomFrame(7, 40, 30))

	assert.InDelta(t, 1.0, Correlation.Compare(d, d), 1e-9)
	assert.InDelta(t, 0.0, ChiSquared.Compare(d, d), 1e-12)
	assert.InDelta(t, 0.0, Hellinger.Compare(d, d), 1e-6)

	var sum float64
	for _, v := range d {
		sum += v
	}
	assert.InDelta(t, sum, Intersection.Compare(d, d), 1e-12)
}

func TestCompareDisjoint(t *testing.T) {
	black := Extract(solidFrame(8, 8, 0, 0, 0))
	white := Extract(solidFrame(8, 8, 255, 255, 255))

	assert.Zero(t, Intersection.Compare(black, white))
	assert.InDelta(t, 1.0, Hellinger.Compare(black, white), 1e-12)
	assert.InDelta(t, 1.0, ChiSquared.Compare(black, white), 1e-12)
	assert.Less(t, Correlation.Compare(black, white), 0.0)
}

func TestCompareDegenerateHasNoNaN(t *testing.T) {
	zero := make(Descriptor, Bins)
	d := Extract(randomFrame(3, 10, 10))
	for _, m := range Methods() {
		for _, pair := range [][2]Descriptor{{zero, zero}, {zero, d}, {d, zero}} {
			score := m.Compare(pair[0], pair[1])
			assert.False(t, math.IsNaN(score), "%v produced NaN", m)
			assert.False(t, math.IsInf(score, 0), "%v produced Inf", m)
		}
	}
	assert.Equal(t, 1.0, Correlation.Compare(zero, zero))
}

func TestCompareLengthMismatchPanics(t *testing.T) {
	assert.Panics(t, func() {
		ChiSquared.Compare(make(Descriptor, 2), make(Descriptor, 3))
	})
}
