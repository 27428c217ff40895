package model

import (
	"sort"
	"time"
)

// Interval identifies the bar spacing of a price series.
type Interval string

const (
	IntervalDaily  Interval = "1d"
	IntervalWeekly Interval = "1wk"
)

// ParseInterval validates a user-supplied interval string.
func ParseInterval(s string) (Interval, error) {
	switch Interval(s) {
	case IntervalDaily:
		return IntervalDaily, nil
	case IntervalWeekly:
		return IntervalWeekly, nil
	}
	return "", ErrUnknownInterval
}

// PricePoint is a single bar of the base price series. Immutable once fetched.
type PricePoint struct {
	TS     time.Time `json:"ts"`
	Open   float64   `json:"open,omitempty"`
	High   float64   `json:"high,omitempty"`
	Low    float64   `json:"low,omitempty"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume,omitempty"`
}

// Series is the base price series for one (symbol, interval) pair.
// Points are sorted by timestamp with no duplicates. A Series is replaced
// wholesale on every history fetch, never mutated in place.
type Series struct {
	Symbol   string       `json:"symbol"`
	Interval Interval     `json:"interval"`
	Points   []PricePoint `json:"points"`
}

// NewSeries builds a Series from raw provider points, sorting by timestamp
// and dropping duplicates (the last point wins for a repeated timestamp).
func NewSeries(symbol string, interval Interval, points []PricePoint) Series {
	pts := make([]PricePoint, len(points))
	copy(pts, points)
	sort.SliceStable(pts, func(i, j int) bool { return pts[i].TS.Before(pts[j].TS) })

	deduped := pts[:0]
	for _, p := range pts {
		if n := len(deduped); n > 0 && deduped[n-1].TS.Equal(p.TS) {
			deduped[n-1] = p
			continue
		}
		deduped = append(deduped, p)
	}
	return Series{Symbol: symbol, Interval: interval, Points: deduped}
}

// Len returns the number of points in the series.
func (s Series) Len() int { return len(s.Points) }

// Closes extracts the close values, aligned index-for-index with Points.
func (s Series) Closes() []float64 {
	closes := make([]float64, len(s.Points))
	for i, p := range s.Points {
		closes[i] = p.Close
	}
	return closes
}

// Timestamps extracts the point timestamps, aligned index-for-index with Points.
func (s Series) Timestamps() []time.Time {
	ts := make([]time.Time, len(s.Points))
	for i, p := range s.Points {
		ts[i] = p.TS
	}
	return ts
}

// TimeRange is a closed [Min, Max] window on the series time axis.
type TimeRange struct {
	Min time.Time `json:"min"`
	Max time.Time `json:"max"`
}

// Span returns the width of the range.
func (r TimeRange) Span() time.Duration { return r.Max.Sub(r.Min) }
