// Package overlay owns the set of user-added indicator overlays on the price
// chart and derives their series from the indicator engine.
package overlay

import (
	"context"

	"golang.org/x/sync/errgroup"

	"stockwatch/internal/indicator"
	"stockwatch/internal/model"
)

// ComputeFunc derives an indicator series from close values. The default is
// indicator.Compute; tests swap it to force per-overlay failures.
type ComputeFunc func(kind indicator.Kind, values []float64, period int) ([]float64, error)

// Overlay is one user-configured indicator drawn alongside the base series.
// Derived stays nil until the first recompute completes; LastErr holds the
// most recent compute failure for UI surfacing.
type Overlay struct {
	ID      int
	Kind    indicator.Kind
	Period  int
	Color   string
	Derived []float64
	LastErr error
}

// Result is the outcome of recomputing one overlay.
type Result struct {
	ID     int
	Values []float64
	Err    error
}

// Manager owns overlay definitions in insertion (id ascending) order.
// Mutating methods (Add, Remove, Apply) are confined to the session loop
// goroutine; Recompute and RecomputeAll are pure and may fan out workers.
type Manager struct {
	overlays []*Overlay
	nextID   int
	compute  ComputeFunc
}

// NewManager returns an empty manager computing via indicator.Compute.
func NewManager() *Manager {
	return &Manager{nextID: 1, compute: indicator.Compute}
}

// SetComputeFunc overrides the indicator computation, for tests.
func (m *Manager) SetComputeFunc(fn ComputeFunc) {
	m.compute = fn
}

// Add validates the period and allocates a new overlay. Ids are assigned
// monotonically and never reused within a session, so legend slots stay
// stable. The derived series starts absent.
func (m *Manager) Add(kind indicator.Kind, period int, color string) (int, error) {
	if err := indicator.ValidatePeriod(period); err != nil {
		return 0, err
	}
	ov := &Overlay{ID: m.nextID, Kind: kind, Period: period, Color: color}
	m.nextID++
	m.overlays = append(m.overlays, ov)
	return ov.ID, nil
}

// Remove deletes an overlay; unknown ids are a no-op.
func (m *Manager) Remove(id int) {
	for i, ov := range m.overlays {
		if ov.ID == id {
			m.overlays = append(m.overlays[:i], m.overlays[i+1:]...)
			return
		}
	}
}

// Get returns the overlay with the given id.
func (m *Manager) Get(id int) (*Overlay, bool) {
	for _, ov := range m.overlays {
		if ov.ID == id {
			return ov, true
		}
	}
	return nil, false
}

// IDs returns the current overlay ids in insertion order.
func (m *Manager) IDs() []int {
	ids := make([]int, len(m.overlays))
	for i, ov := range m.overlays {
		ids[i] = ov.ID
	}
	return ids
}

// Len returns the number of overlays.
func (m *Manager) Len() int {
	return len(m.overlays)
}

// Recompute derives the series for a single overlay from the base closes.
// Reads overlay definitions, so it belongs on the loop goroutine; the
// caller applies the result via Apply.
func (m *Manager) Recompute(id int, baseValues []float64) Result {
	ov, ok := m.Get(id)
	if !ok {
		return Result{ID: id}
	}
	values, err := m.compute(ov.Kind, baseValues, ov.Period)
	return Result{ID: id, Values: values, Err: err}
}

// Spec is the immutable part of an overlay definition, safe to carry off
// the loop goroutine into compute workers.
type Spec struct {
	ID     int
	Kind   indicator.Kind
	Period int
}

// Specs snapshots the current overlay definitions in render order. Loop
// goroutine only.
func (m *Manager) Specs() []Spec {
	specs := make([]Spec, len(m.overlays))
	for i, ov := range m.overlays {
		specs[i] = Spec{ID: ov.ID, Kind: ov.Kind, Period: ov.Period}
	}
	return specs
}

// Spec snapshots a single overlay definition. Loop goroutine only.
func (m *Manager) Spec(id int) (Spec, bool) {
	ov, ok := m.Get(id)
	if !ok {
		return Spec{}, false
	}
	return Spec{ID: ov.ID, Kind: ov.Kind, Period: ov.Period}, true
}

// ComputeAll derives each spec's series concurrently. It touches no manager
// state beyond the compute func, so it may run off the loop goroutine with
// a snapshot from Specs. A failing spec yields a Result carrying its error
// and does not block the others.
func (m *Manager) ComputeAll(ctx context.Context, specs []Spec, baseValues []float64) []Result {
	results := make([]Result, len(specs))
	g, _ := errgroup.WithContext(ctx)
	for i := range specs {
		i := i
		g.Go(func() error {
			sp := specs[i]
			values, err := m.compute(sp.Kind, baseValues, sp.Period)
			results[i] = Result{ID: sp.ID, Values: values, Err: err}
			return nil
		})
	}
	g.Wait()
	return results
}

// RecomputeAll snapshots and derives every overlay in one call, for
// loop-synchronous refreshes.
func (m *Manager) RecomputeAll(ctx context.Context, baseValues []float64) []Result {
	return m.ComputeAll(ctx, m.Specs(), baseValues)
}

// Apply records a recompute result. On failure the previous derived series
// stays rendered and the error is kept for UI surfacing; on success the
// error is cleared. Results for removed overlays are dropped.
func (m *Manager) Apply(res Result) {
	ov, ok := m.Get(res.ID)
	if !ok {
		return
	}
	if res.Err != nil {
		ov.LastErr = res.Err
		return
	}
	ov.Derived = res.Values
	ov.LastErr = nil
}

// Datasets shapes the overlays for rendering, ascending by id, with the
// timestamps of the base series they are aligned to. Overlays whose derived
// series has not been computed yet (or is stale in length after an interval
// change) are emitted with empty points rather than misaligned ones.
func (m *Manager) Datasets(base model.Series) []model.OverlayDataset {
	ts := base.Timestamps()
	out := make([]model.OverlayDataset, 0, len(m.overlays))
	for _, ov := range m.overlays {
		ds := model.OverlayDataset{
			ID:    ov.ID,
			Label: ov.Kind.Label(ov.Period),
			Color: ov.Color,
		}
		if ov.LastErr != nil {
			ds.Error = ov.LastErr.Error()
		}
		if len(ov.Derived) == len(ts) {
			ds.Points = model.ValuePoints(ts, ov.Derived)
		}
		out = append(out, ds)
	}
	return out
}
