package main

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

// Softmax converts logits to probabilities. The largest logit is subtracted
// first so exp never overflows; the result is unchanged by adding a
// constant to every logit.
func Softmax(logits []float64) []float64 {
	probs := make([]float64, len(logits))
	if len(logits) == 0 {
		return probs
	}
	copy(probs, logits)

	floats.AddConst(-floats.Max(probs), probs)
	for i, l := range probs {
		probs[i] = math.Exp(l)
	}
	floats.Scale(1/floats.Sum(probs), probs)
	return probs
}

// SoftmaxWithTemperature divides logits by temperature before Softmax.
// Temperatures above 1 flatten the distribution, below 1 sharpen it.
func SoftmaxWithTemperature(logits []float64, temperature float64) []float64 {
	scaled := make([]float64, len(logits))
	copy(scaled, logits)
	floats.Scale(1/temperature, scaled)
	return Softmax(scaled)
}

// SampleIndex picks an index by inverse-CDF sampling: the first index whose
// cumulative probability reaches r. If rounding leaves a residual, the last
// index is returned.
func SampleIndex(probs []float64, r float64) int {
	cum := 0.0
	for i, p := range probs {
		cum += p
		if cum >= r {
			return i
		}
	}
	return len(probs) - 1
}

// Sample draws an index from probs using rng.
func Sample(probs []float64, rng *rand.Rand) int {
	return SampleIndex(probs, rng.Float64())
}

// SampleWithTemperature samples an index from logits at the given
// temperature. A temperature of zero means greedy decoding.
func SampleWithTemperature(logits []float64, temperature float64, rng *rand.Rand) int {
	if temperature == 0 {
		return Argmax(logits)
	}
	return Sample(SoftmaxWithTemperature(logits, temperature), rng)
}

// Argmax returns the index of the largest value, or -1 for an empty slice.
func Argmax(xs []float64) int {
	if len(xs) == 0 {
		return -1
	}
	return floats.MaxIdx(xs)
}
