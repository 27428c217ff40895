package model

import (
	"math"
	"time"
)

// ValuePoint is one sample of a derived indicator series. Value is nil where
// the indicator has insufficient history (leading window), which renders as
// JSON null so chart libraries leave a gap instead of drawing zero.
type ValuePoint struct {
	TS    time.Time `json:"ts"`
	Value *float64  `json:"value"`
}

// ValuePoints zips timestamps with raw indicator values, mapping NaN to nil.
// Both slices must be the same length.
func ValuePoints(ts []time.Time, values []float64) []ValuePoint {
	pts := make([]ValuePoint, len(values))
	for i, v := range values {
		pts[i].TS = ts[i]
		if !math.IsNaN(v) {
			val := v
			pts[i].Value = &val
		}
	}
	return pts
}

// BaseDataset is the price series shaped for the rendering layer.
type BaseDataset struct {
	Label  string       `json:"label"`
	Points []PricePoint `json:"points"`
}

// OverlayDataset is one indicator overlay shaped for the rendering layer.
type OverlayDataset struct {
	ID     int          `json:"id"`
	Label  string       `json:"label"`
	Color  string       `json:"color,omitempty"`
	Points []ValuePoint `json:"points"`
	Error  string       `json:"error,omitempty"`
}

// PanelDataset is a sub-chart panel (the RSI oscillator) shaped for rendering.
type PanelDataset struct {
	Label  string       `json:"label"`
	Period int          `json:"period"`
	Points []ValuePoint `json:"points"`
	Error  string       `json:"error,omitempty"`
}

// RenderPayload is the full render state of one symbol view, pushed to the
// rendering layer on every accepted refresh.
type RenderPayload struct {
	Symbol     string           `json:"symbol"`
	Interval   Interval         `json:"interval"`
	Generation uint64           `json:"generation"`
	Base       BaseDataset      `json:"base"`
	Overlays   []OverlayDataset `json:"overlays"`
	RSI        *PanelDataset    `json:"rsi,omitempty"`
	Viewport   *TimeRange       `json:"viewport,omitempty"` // nil = unbounded
	Notice     string           `json:"notice,omitempty"`   // non-fatal history fetch problem
}
