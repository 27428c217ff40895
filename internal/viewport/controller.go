// Package viewport owns the zoom/pan range of the chart. The range is always
// contained in the default range spanned by the currently loaded base series.
package viewport

import (
	"time"

	"stockwatch/internal/model"
)

// State of the controller: Default means the full series span is visible.
type State int

const (
	StateDefault State = iota
	StateZoomed
)

const (
	// maxZoomDivisor bounds how far the span may shrink relative to the
	// full series span.
	maxZoomDivisor = 20
	// minSpanAbsolute is the hard floor for the visible span.
	minSpanAbsolute = 24 * time.Hour
)

// Controller tracks the visible time window. Confined to the session loop
// goroutine; no locking.
type Controller struct {
	valid        bool
	defaultRange model.TimeRange
	cur          model.TimeRange
	state        State
}

// NewController returns a controller with no series loaded; every zoom
// operation is a no-op until OnBaseSeriesReplaced sees at least two points.
func NewController() *Controller {
	return &Controller{}
}

// OnBaseSeriesReplaced recomputes the default range from the new base series
// and always resets to the Default state. With fewer than two points the
// default range is undefined and zooming stays disabled.
func (c *Controller) OnBaseSeriesReplaced(points []model.PricePoint) {
	if len(points) < 2 {
		c.valid = false
		c.state = StateDefault
		return
	}
	min, max := points[0].TS, points[0].TS
	for _, p := range points[1:] {
		if p.TS.Before(min) {
			min = p.TS
		}
		if p.TS.After(max) {
			max = p.TS
		}
	}
	c.valid = true
	c.defaultRange = model.TimeRange{Min: min, Max: max}
	c.cur = c.defaultRange
	c.state = StateDefault
}

// Zoom shrinks (factor > 1) or widens (factor < 1) the visible span around
// the current midpoint. The resulting window is clamped into the default
// range by shifting, not shrinking, when it hits an edge.
func (c *Controller) Zoom(factor float64) {
	if !c.valid || factor <= 0 {
		return
	}

	defaultSpan := c.defaultRange.Span()
	floor := defaultSpan / maxZoomDivisor
	if floor < minSpanAbsolute {
		floor = minSpanAbsolute
	}

	newSpan := time.Duration(float64(c.cur.Span()) / factor)
	if newSpan < floor {
		newSpan = floor
	}
	if newSpan >= defaultSpan {
		c.Reset()
		return
	}

	mid := c.cur.Min.Add(c.cur.Span() / 2)
	min := mid.Add(-newSpan / 2)
	max := min.Add(newSpan)
	if min.Before(c.defaultRange.Min) {
		min = c.defaultRange.Min
		max = min.Add(newSpan)
	}
	if max.After(c.defaultRange.Max) {
		max = c.defaultRange.Max
		min = max.Add(-newSpan)
	}

	c.cur = model.TimeRange{Min: min, Max: max}
	c.state = StateZoomed
}

// Reset restores the full default range.
func (c *Controller) Reset() {
	if !c.valid {
		return
	}
	c.cur = c.defaultRange
	c.state = StateDefault
}

// Range returns the visible window, or ok=false when no default range is
// defined (unbounded).
func (c *Controller) Range() (model.TimeRange, bool) {
	if !c.valid {
		return model.TimeRange{}, false
	}
	return c.cur, true
}

// DefaultRange returns the full series span, or ok=false when undefined.
func (c *Controller) DefaultRange() (model.TimeRange, bool) {
	if !c.valid {
		return model.TimeRange{}, false
	}
	return c.defaultRange, true
}

// State returns Default or Zoomed.
func (c *Controller) State() State {
	return c.state
}
