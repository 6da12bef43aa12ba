package analysis

import (
	"math"

	"github.com/ZanzyTHEbar/cultural-bias-shield/internal/reference"
)

const (
	neutralSignal   = 50.0
	signalAmplitude = 40.0
)

// Tendency maps pole evidence to [-1,1]
func Tendency(h PoleHits) float64 {
	return (h.High - h.Low) / math.Max(1, h.High+h.Low)
}

// KeywordSignal converts pole evidence to a 0-100 vector centred on 50.
// A dimension with no evidence stays neutral.
func KeywordSignal(hits map[reference.Dimension]PoleHits) reference.Vector {
	var v reference.Vector
	for _, d := range reference.Dimensions() {
		v = v.With(d, neutralSignal+signalAmplitude*Tendency(hits[d]))
	}
	return v
}

// BlendSignal moves base towards the oracle's vector by weight in [0,1]
func BlendSignal(base, oracle reference.Vector, weight float64) reference.Vector {
	weight = clip(weight, 0, 1)
	var v reference.Vector
	for _, d := range reference.Dimensions() {
		v = v.With(d, (1-weight)*base.Get(d)+weight*oracle.Get(d))
	}
	return v
}

// DimensionAlignment is one dimension's contribution to cultural fit
type DimensionAlignment struct {
	Dimension reference.Dimension `json:"dimension"`
	Signal    float64             `json:"signal"`
	Reference float64             `json:"reference"`
	Alignment float64             `json:"alignment"`
}

// Gap is the absolute distance between signal and reference
func (a DimensionAlignment) Gap() float64 {
	return math.Abs(a.Signal - a.Reference)
}

// Align compares a signal to a country vector, one entry per dimension in
// canonical order. A gap of 100 aligns 0 and no gap aligns 1.
func Align(signal, ref reference.Vector) []DimensionAlignment {
	out := make([]DimensionAlignment, 0, len(reference.Dimensions()))
	for _, d := range reference.Dimensions() {
		s, r := signal.Get(d), ref.Get(d)
		out = append(out, DimensionAlignment{
			Dimension: d,
			Signal:    s,
			Reference: r,
			Alignment: clip(1-math.Abs(s-r)/100, 0, 1),
		})
	}
	return out
}

// Fit is the equal-weight mean alignment, clamped to [0,1]
func Fit(alignments []DimensionAlignment) float64 {
	if len(alignments) == 0 {
		return 0
	}
	sum := 0.0
	for _, a := range alignments {
		sum += a.Alignment
	}
	return clip(sum/float64(len(alignments)), 0, 1)
}

func clip(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
