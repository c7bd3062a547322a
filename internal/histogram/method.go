package histogram

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// ErrUnknownMethod is returned by ParseMethod for names outside the supported set
var ErrUnknownMethod = errors.New("unknown comparison method")

// Method selects how two descriptors are compared. The zero value is invalid.
type Method int

const (
	Correlation Method = iota + 1
	ChiSquared
	Intersection
	Hellinger
)

// epsilon mirrors DBL_EPSILON, the guard OpenCV uses for degenerate inputs
const epsilon = 2.220446049250313e-16

type methodDef struct {
	name            string
	higherIsSimilar bool
	compare         func(ref, frame Descriptor) float64
}

// methods bundles each method's scoring function with its direction so the
// two can't disagree.
var methods = map[Method]methodDef{
	Correlation:  {name: "correlation", higherIsSimilar: true, compare: correlation},
	ChiSquared:   {name: "chi-squared", higherIsSimilar: false, compare: chiSquared},
	Intersection: {name: "intersection", higherIsSimilar: true, compare: intersection},
	Hellinger:    {name: "hellinger", higherIsSimilar: false, compare: hellinger},
}

// Methods lists the supported methods in a stable order
func Methods() []Method {
	return []Method{Correlation, ChiSquared, Intersection, Hellinger}
}

// MethodNames lists the accepted names, in the order of Methods
func MethodNames() []string {
	names := make([]string, 0, len(methods))
	for _, m := range Methods() {
		names = append(names, m.String())
	}
	return names
}

// ParseMethod resolves a method by its command line name
func ParseMethod(name string) (Method, error) {
	for m, def := range methods {
		if def.name == name {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w %q (want one of %s)", ErrUnknownMethod, name, strings.Join(MethodNames(), ", "))
}

func (m Method) String() string {
	if def, ok := methods[m]; ok {
		return def.name
	}
	return fmt.Sprintf("Method(%d)", int(m))
}

// Valid reports whether m is one of the supported methods
func (m Method) Valid() bool {
	_, ok := methods[m]
	return ok
}

// HigherIsSimilar reports whether larger scores mean more similar histograms
func (m Method) HigherIsSimilar() bool {
	return methods[m].higherIsSimilar
}

// Compare scores a frame descriptor against a reference descriptor.
// Both must have the same length.
func (m Method) Compare(ref, frame Descriptor) float64 {
	def, ok := methods[m]
	if !ok {
		panic(fmt.Sprintf("histogram: compare with invalid %v", m))
	}
	if len(ref) != len(frame) {
		panic(fmt.Sprintf("histogram: descriptor length mismatch %d != %d", len(ref), len(frame)))
	}
	return def.compare(ref, frame)
}

// Within reports whether score is strictly on the similar side of cutoff.
// Equality is never within.
func (m Method) Within(score, cutoff float64) bool {
	if m.HigherIsSimilar() {
		return score > cutoff
	}
	return score < cutoff
}

func correlation(ref, frame Descriptor) float64 {
	n := float64(len(ref))
	s1, s2 := floats.Sum(ref), floats.Sum(frame)
	s11, s22 := floats.Dot(ref, ref), floats.Dot(frame, frame)
	s12 := floats.Dot(ref, frame)

	num := s12 - s1*s2/n
	denom := (s11 - s1*s1/n) * (s22 - s2*s2/n)
	if math.Abs(denom) <= epsilon {
		return 1
	}
	return num / math.Sqrt(denom)
}

func chiSquared(ref, frame Descriptor) float64 {
	var result float64
	for i, a := range ref {
		if math.Abs(a) > epsilon {
			d := a - frame[i]
			result += d * d / a
		}
	}
	return result
}

func intersection(ref, frame Descriptor) float64 {
	var result float64
	for i, a := range ref {
		result += math.Min(a, frame[i])
	}
	return result
}

func hellinger(ref, frame Descriptor) float64 {
	var bc float64
	for i, a := range ref {
		bc += math.Sqrt(a * frame[i])
	}
	s := floats.Sum(ref) * floats.Sum(frame)
	scale := 1.0
	if math.Abs(s) > epsilon {
		scale = 1 / math.Sqrt(s)
	}
	return math.Sqrt(math.Max(1-bc*scale, 0))
}
