// Package indicator provides technical indicator calculations over a close
// series aligned to the base price series.
//
// All functions are pure and idempotent: identical input always yields
// identical output, and nothing is shared between calls. Output slices have
// the same length as the input; positions with insufficient history hold NaN.
package indicator

import (
	"fmt"
	"strconv"
	"strings"

	"stockwatch/internal/model"
)

// Kind is the closed set of supported indicators. Adding a kind means
// extending the switches below; an unhandled kind surfaces as an error
// from Compute rather than silently falling back.
type Kind int

const (
	KindSMA Kind = iota
	KindEMA
	KindRSI
)

// Period bounds shared by every kind.
const (
	MinPeriod = 2
	MaxPeriod = 400
)

// String returns the lowercase wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindSMA:
		return "sma"
	case KindEMA:
		return "ema"
	case KindRSI:
		return "rsi"
	}
	return "unknown"
}

// Label returns the display name for an overlay of this kind and period,
// e.g. "EMA(50)".
func (k Kind) Label(period int) string {
	return strings.ToUpper(k.String()) + "(" + strconv.Itoa(period) + ")"
}

// ParseKind maps a wire name to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "sma":
		return KindSMA, nil
	case "ema":
		return KindEMA, nil
	case "rsi":
		return KindRSI, nil
	}
	return 0, fmt.Errorf("unknown indicator kind %q", s)
}

// ValidatePeriod checks a period against the shared bounds.
func ValidatePeriod(period int) error {
	if period < MinPeriod || period > MaxPeriod {
		return model.ErrInvalidPeriod
	}
	return nil
}

// Compute dispatches to the indicator function for the given kind.
func Compute(kind Kind, values []float64, period int) ([]float64, error) {
	switch kind {
	case KindSMA:
		return SMA(values, period)
	case KindEMA:
		return EMA(values, period)
	case KindRSI:
		return RSI(values, period)
	}
	return nil, fmt.Errorf("unknown indicator kind %d", kind)
}
