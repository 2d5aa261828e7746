// Package idw estimates values at unmeasured points by inverse distance
// weighting of nearby samples, using great-circle distances.
package idw

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/i474232898/airquality-idw/internal/geo"
)

// DefaultPower is the distance-decay exponent used when callers have no preference.
const DefaultPower = 2.0

// ErrInvalidInput is returned for empty sample sets, non-positive powers and
// malformed coordinates or values.
var ErrInvalidInput = errors.New("invalid input")

// Sample is a measured value at a location.
type Sample struct {
	Location geo.Coordinate `json:"location"`
	Value    float64        `json:"value"`
}

// Estimate returns the inverse-distance-weighted average of samples at query.
// When query coincides with a sample location that sample's value is returned
// verbatim. The result always lies within the range of the sample values.
func Estimate(query geo.Coordinate, samples []Sample, power float64) (float64, error) {
	dists, err := prepare(query, samples, power)
	if err != nil {
		return 0, err
	}
	if k := exactMatch(dists); k >= 0 {
		return samples[k].Value, nil
	}

	weights := relativeWeights(dists, power)

	var num, den float64
	lo, hi := samples[0].Value, samples[0].Value
	for i, s := range samples {
		num += weights[i] * s.Value
		den += weights[i]
		lo = math.Min(lo, s.Value)
		hi = math.Max(hi, s.Value)
	}

	est := num / den
	// Rounding can push the quotient an ulp outside the sample range.
	return math.Max(lo, math.Min(hi, est)), nil
}

// Weights returns the normalized weight (summing to 1) each sample receives
// when estimating at query. An exact match gets weight 1 and all others 0.
func Weights(query geo.Coordinate, samples []Sample, power float64) ([]float64, error) {
	dists, err := prepare(query, samples, power)
	if err != nil {
		return nil, err
	}

	out := make([]float64, len(samples))
	if k := exactMatch(dists); k >= 0 {
		out[k] = 1
		return out, nil
	}

	weights := relativeWeights(dists, power)
	var total float64
	for _, w := range weights {
		total += w
	}
	for i, w := range weights {
		out[i] = w / total
	}
	return out, nil
}

// Nearest returns the n samples closest to query, nearest first. Samples at
// equal distance keep their input order. n <= 0 or n >= len(samples) keeps
// every sample.
func Nearest(query geo.Coordinate, samples []Sample, n int) []Sample {
	type ranked struct {
		sample Sample
		dist   float64
	}

	all := make([]ranked, len(samples))
	for i, s := range samples {
		all[i] = ranked{sample: s, dist: geo.Distance(query, s.Location)}
	}
	sort.SliceStable(all, func(a, b int) bool { return all[a].dist < all[b].dist })

	if n <= 0 || n > len(all) {
		n = len(all)
	}
	out := make([]Sample, n)
	for i := range out {
		out[i] = all[i].sample
	}
	return out
}

func prepare(query geo.Coordinate, samples []Sample, power float64) ([]float64, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: no samples", ErrInvalidInput)
	}
	if math.IsNaN(power) || math.IsInf(power, 0) || power <= 0 {
		return nil, fmt.Errorf("%w: power must be a positive number, got %v", ErrInvalidInput, power)
	}
	if err := query.Validate(); err != nil {
		return nil, fmt.Errorf("%w: query point: %v", ErrInvalidInput, err)
	}

	dists := make([]float64, len(samples))
	for i, s := range samples {
		if err := s.Location.Validate(); err != nil {
			return nil, fmt.Errorf("%w: sample %d: %v", ErrInvalidInput, i, err)
		}
		if math.IsNaN(s.Value) || math.IsInf(s.Value, 0) {
			return nil, fmt.Errorf("%w: sample %d: value %v", ErrInvalidInput, i, s.Value)
		}
		dists[i] = geo.Distance(query, s.Location)
	}
	return dists, nil
}

func exactMatch(dists []float64) int {
	for i, d := range dists {
		if d == 0 {
			return i
		}
	}
	return -1
}

// relativeWeights returns (dmin/d_i)^power, which is 1/d_i^power scaled by
// dmin^power. The common factor cancels in the weighted average and keeps
// every weight in (0, 1].
func relativeWeights(dists []float64, power float64) []float64 {
	dmin := dists[0]
	for _, d := range dists[1:] {
		if d < dmin {
			dmin = d
		}
	}

	weights := make([]float64, len(dists))
	for i, d := range dists {
		weights[i] = math.Pow(dmin/d, power)
	}
	return weights
}
