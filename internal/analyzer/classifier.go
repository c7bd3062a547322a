package analyzer

import (
	"fmt"

	"github.com/bdougie/framematch/internal/histogram"
	"github.com/bdougie/framematch/internal/reference"
)

// Classifier scores frame descriptors against a reference set and applies the cutoff
type Classifier struct {
	refs   *reference.Set
	method histogram.Method
	cutoff float64
}

// NewClassifier validates the method and binds it to the references
func NewClassifier(refs *reference.Set, method histogram.Method, cutoff float64) (*Classifier, error) {
	if refs == nil || refs.Len() == 0 {
		return nil, reference.ErrNoReferences
	}
	if !method.Valid() {
		return nil, fmt.Errorf("%w: %v", histogram.ErrUnknownMethod, method)
	}
	return &Classifier{refs: refs, method: method, cutoff: cutoff}, nil
}

// Method returns the comparison method in use
func (c *Classifier) Method() histogram.Method { return c.method }

// Cutoff returns the threshold in use
func (c *Classifier) Cutoff() float64 { return c.cutoff }

// Scores compares d against every reference, in reference order
func (c *Classifier) Scores(d histogram.Descriptor) []float64 {
	scores := make([]float64, c.refs.Len())
	for i := range scores {
		scores[i] = c.method.Compare(c.refs.Descriptor(i), d)
	}
	return scores
}

// Match reports whether any score falls within the cutoff
func (c *Classifier) Match(scores []float64) bool {
	for _, s := range scores {
		if c.method.Within(s, c.cutoff) {
			return true
		}
	}
	return false
}

// Classify returns the full score vector and the frame level decision
func (c *Classifier) Classify(d histogram.Descriptor) ([]float64, bool) {
	scores := c.Scores(d)
	return scores, c.Match(scores)
}

// Best returns the most similar score under the current method
func (c *Classifier) Best(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	higher := c.method.HigherIsSimilar()
	best := scores[0]
	for _, s := range scores[1:] {
		if (higher && s > best) || (!higher && s < best) {
			best = s
		}
	}
	return best
}
