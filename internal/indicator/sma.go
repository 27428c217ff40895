package indicator

import "math"

// SMA computes the simple moving average with an incremental running sum:
// each step adds the incoming value and subtracts the one leaving the
// window, instead of re-summing the whole window.
//
// Output length equals input length. Indices 0..period-2 are NaN; index
// i >= period-1 holds the mean of values[i-period+1..i].
func SMA(values []float64, period int) ([]float64, error) {
	if err := ValidatePeriod(period); err != nil {
		return nil, err
	}

	out := make([]float64, len(values))
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		} else {
			out[i] = math.NaN()
		}
	}
	return out, nil
}
