// Package stats provides the descriptive statistics and two-sample tests used
// to compare agent and human commits. Standard deviations are sample
// deviations (÷(n−1)).
package stats

import (
	"cmp"
	"math"
	"slices"
)

// Mean returns the arithmetic mean of values.
// Returns NaN for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}

	return Sum(values) / float64(len(values))
}

// SampleStdDev returns the sample standard deviation.
// Returns NaN when fewer than two values are given.
func SampleStdDev(values []float64) float64 {
	count := len(values)
	if count < 2 {
		return math.NaN()
	}

	mean := Mean(values)

	var sumSq float64

	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}

	return math.Sqrt(sumSq / float64(count-1))
}

// PercentileMedian is the median's percentile rank.
const PercentileMedian = 0.5

// Percentile returns the p-th percentile of values using linear interpolation.
// p must be in [0, 1]. The input slice is not modified.
// Returns NaN for an empty slice.
func Percentile(values []float64, p float64) float64 {
	count := len(values)
	if count == 0 {
		return math.NaN()
	}

	sorted := slices.Clone(values)
	slices.Sort(sorted)

	idx := p * float64(count-1)
	lower := int(math.Floor(idx))
	upper := int(math.Ceil(idx))

	if lower == upper || upper >= count {
		return sorted[lower]
	}

	frac := idx - float64(lower)

	return sorted[lower]*(1-frac) + sorted[upper]*frac
}

// Median returns the 50th percentile of values.
func Median(values []float64) float64 {
	return Percentile(values, PercentileMedian)
}

// Min returns the smallest element in values.
// Returns the zero value of T for an empty slice.
func Min[T cmp.Ordered](values []T) T {
	if len(values) == 0 {
		var zero T

		return zero
	}

	return slices.Min(values)
}

// Max returns the largest element in values.
// Returns the zero value of T for an empty slice.
func Max[T cmp.Ordered](values []T) T {
	if len(values) == 0 {
		var zero T

		return zero
	}

	return slices.Max(values)
}

// Sum returns the sum of all elements in values.
func Sum[T cmp.Ordered](values []T) T {
	var result T

	for _, v := range values {
		result += v
	}

	return result
}

// Description summarizes one sample.
type Description struct {
	Count  int
	Mean   float64
	Median float64
	Std    float64
	Min    float64
	Max    float64
}

// Describe computes count, mean, median, sample std, min and max. Every
// statistic except Count is NaN for an empty sample.
func Describe(values []float64) Description {
	if len(values) == 0 {
		nan := math.NaN()

		return Description{Mean: nan, Median: nan, Std: nan, Min: nan, Max: nan}
	}

	return Description{
		Count:  len(values),
		Mean:   Mean(values),
		Median: Median(values),
		Std:    SampleStdDev(values),
		Min:    Min(values),
		Max:    Max(values),
	}
}

// Round rounds f half away from zero to the given number of decimals. NaN
// stays NaN.
func Round(f float64, decimals int) float64 {
	pow := math.Pow10(decimals)

	return math.Round(f*pow) / pow
}

// Rounded returns d with every statistic rounded.
func (d Description) Rounded(decimals int) Description {
	return Description{
		Count:  d.Count,
		Mean:   Round(d.Mean, decimals),
		Median: Round(d.Median, decimals),
		Std:    Round(d.Std, decimals),
		Min:    Round(d.Min, decimals),
		Max:    Round(d.Max, decimals),
	}
}

// Ints converts integer samples for the float statistics.
func Ints[T ~int | ~int64](values []T) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = float64(v)
	}

	return out
}
