package indicator

import "math"

// RSI computes Wilder's Relative Strength Index.
//
// The initial average gain/loss is seeded from the first period consecutive
// differences; the first valid output is at index period. A zero average
// loss yields exactly 100 rather than relying on rs going to infinity.
// For i > period, averages follow Wilder smoothing:
// avg = (avg*(period-1) + current) / period. Indices < period are NaN.
func RSI(values []float64, period int) ([]float64, error) {
	if err := ValidatePeriod(period); err != nil {
		return nil, err
	}

	out := make([]float64, len(values))
	for i := range out {
		out[i] = math.NaN()
	}
	if len(values) <= period {
		return out, nil
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		diff := values[i] - values[i-1]
		if diff > 0 {
			avgGain += diff
		} else {
			avgLoss -= diff
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiValue(avgGain, avgLoss)

	p := float64(period)
	for i := period + 1; i < len(values); i++ {
		diff := values[i] - values[i-1]
		gain, loss := 0.0, 0.0
		if diff > 0 {
			gain = diff
		} else {
			loss = -diff
		}
		avgGain = (avgGain*(p-1) + gain) / p
		avgLoss = (avgLoss*(p-1) + loss) / p
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out, nil
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - 100.0/(1.0+rs)
}
