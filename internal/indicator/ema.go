package indicator

import "math"

// EMA computes the exponential moving average with smoothing factor
// k = 2/(period+1). The seed at index period-1 is the simple average of the
// first period values; everything before it is NaN. From index period on,
// ema[i] = values[i]*k + ema[i-1]*(1-k).
//
// NaN inputs mark gaps in the source series and never poison the output:
// the seed averages only the real values in its window, a NaN past the
// seed carries the previous EMA forward, and an all-NaN window restarts
// the average at the next real value.
func EMA(values []float64, period int) ([]float64, error) {
	if err := ValidatePeriod(period); err != nil {
		return nil, err
	}

	out := make([]float64, len(values))
	if len(values) < period {
		for i := range out {
			out[i] = math.NaN()
		}
		return out, nil
	}

	seed, n := 0.0, 0
	for i := 0; i < period; i++ {
		out[i] = math.NaN()
		if !math.IsNaN(values[i]) {
			seed += values[i]
			n++
		}
	}
	prev := math.NaN()
	if n > 0 {
		prev = seed / float64(n)
		out[period-1] = prev
	}

	k := 2.0 / float64(period+1)
	for i := period; i < len(values); i++ {
		switch {
		case math.IsNaN(values[i]):
			out[i] = prev
		case math.IsNaN(prev):
			prev = values[i]
			out[i] = prev
		default:
			prev = values[i]*k + prev*(1-k)
			out[i] = prev
		}
	}
	return out, nil
}
