package summary

import (
	"math"
	"strconv"

	"github.com/Sumatoshi-tech/refdelta/pkg/stats"
)

// Number is a statistic that may be undefined (NaN), such as the standard
// deviation of a single value. Undefined numbers encode as null.
type Number float64

// Valid reports whether n is a finite value.
func (n Number) Valid() bool {
	return !math.IsNaN(float64(n)) && !math.IsInf(float64(n), 0)
}

// MarshalJSON encodes NaN and infinities as null.
func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Valid() {
		return []byte("null"), nil
	}

	return strconv.AppendFloat(nil, float64(n), 'f', -1, 64), nil
}

// MarshalYAML encodes NaN and infinities as null.
func (n Number) MarshalYAML() (any, error) {
	if !n.Valid() {
		return nil, nil
	}

	return float64(n), nil
}

// Dist is a rounded sample description.
type Dist struct {
	Count  int    `json:"count"  yaml:"count"`
	Mean   Number `json:"mean"   yaml:"mean"`
	Median Number `json:"median" yaml:"median"`
	Std    Number `json:"std"    yaml:"std"`
	Min    Number `json:"min"    yaml:"min"`
	Max    Number `json:"max"    yaml:"max"`
}

func describe(values []float64, decimals int) Dist {
	d := stats.Describe(values).Rounded(decimals)

	return Dist{
		Count:  d.Count,
		Mean:   Number(d.Mean),
		Median: Number(d.Median),
		Std:    Number(d.Std),
		Min:    Number(d.Min),
		Max:    Number(d.Max),
	}
}

func round(f float64, decimals int) Number {
	return Number(stats.Round(f, decimals))
}
