package stats

import (
	"errors"
	"math"
	"slices"
)

// ErrEmptySample is returned when a two-sample test gets an empty sample.
var ErrEmptySample = errors.New("sample is empty")

// Method names how a p-value was computed.
type Method string

const (
	// MethodExact enumerates the null distribution of U.
	MethodExact Method = "exact"
	// MethodAsymptotic uses the normal approximation with tie and continuity
	// corrections.
	MethodAsymptotic Method = "asymptotic"
)

// exactLimit is the largest sample size for which the exact distribution is
// used when there are no ties. Only one of the two samples needs to be that
// small.
const exactLimit = 8

// MannWhitneyResult is the outcome of a two-sided Mann-Whitney U test.
type MannWhitneyResult struct {
	// U is the statistic of the first sample.
	U      float64
	P      float64
	Method Method
}

// MannWhitneyU runs a two-sided Mann-Whitney U test of x against y. When
// either sample has at most eight values and there are no ties the exact
// distribution is used; otherwise the normal approximation with tie
// correction and continuity correction is used.
func MannWhitneyU(x, y []float64) (MannWhitneyResult, error) {
	n1, n2 := len(x), len(y)
	if n1 == 0 || n2 == 0 {
		return MannWhitneyResult{}, ErrEmptySample
	}

	ranks, tieTerm := rank(append(slices.Clone(x), y...))

	var r1 float64
	for _, r := range ranks[:n1] {
		r1 += r
	}

	u1 := r1 - float64(n1*(n1+1))/2
	u2 := float64(n1*n2) - u1
	u := math.Max(u1, u2)

	res := MannWhitneyResult{U: u1}

	if (n1 <= exactLimit || n2 <= exactLimit) && tieTerm == 0 {
		res.Method = MethodExact
		res.P = math.Min(1, 2*exactSurvival(int(math.Round(u)), n1, n2))

		return res, nil
	}

	res.Method = MethodAsymptotic

	n := float64(n1 + n2)
	mu := float64(n1*n2) / 2
	variance := float64(n1*n2) / 12 * ((n + 1) - tieTerm/(n*(n-1)))

	if variance <= 0 {
		res.P = 1

		return res, nil
	}

	z := (u - mu - 0.5) / math.Sqrt(variance)
	res.P = math.Min(1, math.Max(0, 2*normalSurvival(z)))

	return res, nil
}

// rank assigns average ranks to values and returns the tie term
// sum(t^3 - t) over groups of tied values.
func rank(values []float64) ([]float64, float64) {
	idx := make([]int, len(values))
	for i := range idx {
		idx[i] = i
	}

	slices.SortStableFunc(idx, func(a, b int) int {
		switch {
		case values[a] < values[b]:
			return -1
		case values[a] > values[b]:
			return 1
		default:
			return 0
		}
	})

	ranks := make([]float64, len(values))

	var tieTerm float64

	for start := 0; start < len(idx); {
		end := start + 1
		for end < len(idx) && values[idx[end]] == values[idx[start]] {
			end++
		}

		avg := float64(start+end+1) / 2
		for _, i := range idx[start:end] {
			ranks[i] = avg
		}

		if t := float64(end - start); t > 1 {
			tieTerm += t*t*t - t
		}

		start = end
	}

	return ranks, tieTerm
}

// exactSurvival returns P(U >= k) under the null hypothesis for samples of
// sizes m and n.
func exactSurvival(k, m, n int) float64 {
	freqs := uFrequencies(m, n)

	var total, tail float64

	for u, f := range freqs {
		total += f
		if u >= k {
			tail += f
		}
	}

	return tail / total
}

// uFrequencies counts the orderings of m and n items yielding each U value,
// via c(m, n, k) = c(m-1, n, k-n) + c(m, n-1, k).
func uFrequencies(m, n int) []float64 {
	prev := make([][]float64, n+1)
	for j := range prev {
		prev[j] = []float64{1}
	}

	for i := 1; i <= m; i++ {
		cur := make([][]float64, n+1)
		cur[0] = []float64{1}

		for j := 1; j <= n; j++ {
			row := make([]float64, i*j+1)

			for k, f := range cur[j-1] {
				row[k] += f
			}

			for k, f := range prev[j] {
				row[k+j] += f
			}

			cur[j] = row
		}

		prev = cur
	}

	return prev[n]
}

func normalSurvival(z float64) float64 {
	return 0.5 * math.Erfc(z/math.Sqrt2)
}
