package stats

// Effect size labels for Cliff's delta.
const (
	EffectNegligible = "negligible"
	EffectSmall      = "small"
	EffectMedium     = "medium"
	EffectLarge      = "large"
)

// Cliff's delta magnitude thresholds.
const (
	thresholdSmall  = 0.147
	thresholdMedium = 0.33
	thresholdLarge  = 0.474
)

// CliffsDelta returns (#{x > y} − #{x < y}) / (|x|·|y|) over all pairs.
func CliffsDelta(x, y []float64) (float64, error) {
	if len(x) == 0 || len(y) == 0 {
		return 0, ErrEmptySample
	}

	var greater, less int

	for _, a := range x {
		for _, b := range y {
			switch {
			case a > b:
				greater++
			case a < b:
				less++
			}
		}
	}

	return float64(greater-less) / float64(len(x)*len(y)), nil
}

// InterpretEffect labels the magnitude of a Cliff's delta.
func InterpretEffect(delta float64) string {
	if delta < 0 {
		delta = -delta
	}

	switch {
	case delta < thresholdSmall:
		return EffectNegligible
	case delta < thresholdMedium:
		return EffectSmall
	case delta < thresholdLarge:
		return EffectMedium
	default:
		return EffectLarge
	}
}
