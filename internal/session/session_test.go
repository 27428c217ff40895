package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"stockwatch/internal/indicator"
	"stockwatch/internal/model"
)

// ── fakes ─────────────────────────────────────────────────────────────────

// fakeProvider serves canned series per interval. A gate channel makes a
// fetch block until the test releases it, to force result orderings.
type fakeProvider struct {
	mu        sync.Mutex
	histories map[model.Interval]model.Series
	errs      map[model.Interval]error
	gates     map[model.Interval]chan struct{}
	calls     []model.Interval
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		histories: make(map[model.Interval]model.Series),
		errs:      make(map[model.Interval]error),
		gates:     make(map[model.Interval]chan struct{}),
	}
}

func (f *fakeProvider) History(ctx context.Context, symbol string, iv model.Interval) (model.Series, error) {
	f.mu.Lock()
	f.calls = append(f.calls, iv)
	gate := f.gates[iv]
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[iv]; err != nil {
		return model.Series{}, err
	}
	return f.histories[iv], nil
}

func (f *fakeProvider) Quotes(ctx context.Context, symbols []string) (map[string]float64, error) {
	return nil, nil
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func barSeries(symbol string, iv model.Interval, step time.Duration, n int) model.Series {
	start := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	pts := make([]model.PricePoint, n)
	for i := range pts {
		px := 100 + float64(i)
		pts[i] = model.PricePoint{
			TS: start.Add(time.Duration(i) * step), Open: px, High: px + 1,
			Low: px - 1, Close: px, Volume: 1000,
		}
	}
	return model.NewSeries(symbol, iv, pts)
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}

func startSession(t *testing.T, f *fakeProvider, iv model.Interval) *Session {
	t.Helper()
	s := New(Config{ID: "test", Symbol: "AAPL", Interval: iv, Provider: f})
	s.Start()
	t.Cleanup(s.Close)
	return s
}

// ── history loading ───────────────────────────────────────────────────────

func TestSession_InitialLoadPopulatesChart(t *testing.T) {
	f := newFakeProvider()
	f.histories["1d"] = barSeries("AAPL", "1d", 24*time.Hour, 50)

	s := startSession(t, f, "1d")
	waitFor(t, func() bool { return len(s.BaseDataset().Points) == 50 }, "initial load")

	snap := s.Snapshot()
	if snap.Interval != "1d" {
		t.Errorf("interval = %q, want 1d", snap.Interval)
	}
	if snap.Notice != "" {
		t.Errorf("unexpected notice %q", snap.Notice)
	}
	if snap.Viewport == nil {
		t.Fatal("viewport should be bounded after load")
	}
	want := f.histories["1d"]
	if !snap.Viewport.Min.Equal(want.Points[0].TS) || !snap.Viewport.Max.Equal(want.Points[49].TS) {
		t.Errorf("viewport = %v, want full series span", snap.Viewport)
	}
}

// A slow fetch for the old interval resolving after a newer one must be
// discarded: the chart keeps the newer interval's data and never flickers
// back.
func TestSession_StaleHistoryResultDiscarded(t *testing.T) {
	f := newFakeProvider()
	f.histories["1d"] = barSeries("AAPL", "1d", 24*time.Hour, 50)
	f.histories["1wk"] = barSeries("AAPL", "1wk", 7*24*time.Hour, 10)
	gate := make(chan struct{})
	f.gates["1d"] = gate

	s := startSession(t, f, "1d")
	waitFor(t, func() bool { return f.callCount() == 1 }, "daily fetch to start")

	if err := s.SetInterval("1wk"); err != nil {
		t.Fatalf("SetInterval: %v", err)
	}
	waitFor(t, func() bool { return len(s.BaseDataset().Points) == 10 }, "weekly load")
	gen := s.Snapshot().Generation

	// Release the stale daily fetch; its token was superseded.
	close(gate)
	time.Sleep(100 * time.Millisecond)

	snap := s.Snapshot()
	if snap.Interval != "1wk" {
		t.Errorf("interval = %q, want 1wk", snap.Interval)
	}
	if len(snap.Base.Points) != 10 {
		t.Errorf("base has %d points, want the 10 weekly bars", len(snap.Base.Points))
	}
	if snap.Generation != gen {
		t.Errorf("generation moved from %d to %d after a stale result", gen, snap.Generation)
	}
}

func TestSession_SameIntervalIsNoop(t *testing.T) {
	f := newFakeProvider()
	f.histories["1d"] = barSeries("AAPL", "1d", 24*time.Hour, 5)

	s := startSession(t, f, "1d")
	waitFor(t, func() bool { return len(s.BaseDataset().Points) == 5 }, "initial load")

	if err := s.SetInterval("1d"); err != nil {
		t.Fatalf("SetInterval: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if got := f.callCount(); got != 1 {
		t.Errorf("provider called %d times, want 1", got)
	}
}

func TestSession_ProviderFailureKeepsLastGoodAndNotices(t *testing.T) {
	f := newFakeProvider()
	f.histories["1d"] = barSeries("AAPL", "1d", 24*time.Hour, 20)

	s := startSession(t, f, "1d")
	waitFor(t, func() bool { return len(s.BaseDataset().Points) == 20 }, "initial load")

	f.mu.Lock()
	f.errs["1wk"] = model.ErrRateLimited
	f.mu.Unlock()
	if err := s.SetInterval("1wk"); err != nil {
		t.Fatalf("SetInterval: %v", err)
	}
	waitFor(t, func() bool { return s.Snapshot().Notice != "" }, "failure notice")

	snap := s.Snapshot()
	if len(snap.Base.Points) != 20 {
		t.Errorf("base has %d points, want the 20 last-good bars", len(snap.Base.Points))
	}
}

func TestSession_FailureWithoutHistoryIsEmptyNotFatal(t *testing.T) {
	f := newFakeProvider()
	f.errs["1d"] = model.ErrProviderUnavailable

	s := startSession(t, f, "1d")
	waitFor(t, func() bool { return s.Snapshot().Notice != "" }, "failure notice")

	snap := s.Snapshot()
	if len(snap.Base.Points) != 0 {
		t.Errorf("base has %d points, want empty", len(snap.Base.Points))
	}
	if snap.Viewport != nil {
		t.Error("viewport should be unbounded with no data")
	}
}

// ── overlays ──────────────────────────────────────────────────────────────

func TestSession_AddOverlayDerivesSeries(t *testing.T) {
	f := newFakeProvider()
	f.histories["1d"] = barSeries("AAPL", "1d", 24*time.Hour, 30)

	s := startSession(t, f, "1d")
	waitFor(t, func() bool { return len(s.BaseDataset().Points) == 30 }, "initial load")

	id, err := s.AddOverlay(indicator.KindSMA, 5, "#ff0000")
	if err != nil {
		t.Fatalf("AddOverlay: %v", err)
	}
	waitFor(t, func() bool {
		ds := s.OverlayDatasets()
		return len(ds) == 1 && len(ds[0].Points) == 30
	}, "overlay compute")

	ds := s.OverlayDatasets()[0]
	if ds.ID != id || ds.Label != "SMA(5)" || ds.Color != "#ff0000" {
		t.Errorf("dataset = %+v", ds)
	}
	for i := 0; i < 4; i++ {
		if ds.Points[i].Value != nil {
			t.Errorf("point %d should be absent during warmup", i)
		}
	}
	if ds.Points[4].Value == nil || *ds.Points[4].Value != 102 {
		t.Errorf("sma[4] = %v, want 102", ds.Points[4].Value)
	}
}

func TestSession_AddOverlayRejectsBadPeriod(t *testing.T) {
	f := newFakeProvider()
	s := startSession(t, f, "1d")

	if _, err := s.AddOverlay(indicator.KindEMA, 1, ""); !errors.Is(err, model.ErrInvalidPeriod) {
		t.Errorf("err = %v, want ErrInvalidPeriod", err)
	}
	if len(s.OverlayDatasets()) != 0 {
		t.Error("rejected overlay must not be registered")
	}
}

func TestSession_RemoveOverlay(t *testing.T) {
	f := newFakeProvider()
	f.histories["1d"] = barSeries("AAPL", "1d", 24*time.Hour, 10)

	s := startSession(t, f, "1d")
	waitFor(t, func() bool { return len(s.BaseDataset().Points) == 10 }, "initial load")

	id, err := s.AddOverlay(indicator.KindEMA, 3, "")
	if err != nil {
		t.Fatalf("AddOverlay: %v", err)
	}
	waitFor(t, func() bool { return len(s.OverlayDatasets()) == 1 }, "overlay add")

	if err := s.RemoveOverlay(id); err != nil {
		t.Fatalf("RemoveOverlay: %v", err)
	}
	if got := len(s.OverlayDatasets()); got != 0 {
		t.Errorf("overlay count = %d after remove, want 0", got)
	}
}

// Interval change must rederive overlays against the new series; the
// datasets realign to the weekly timestamps.
func TestSession_IntervalChangeCascadesToOverlays(t *testing.T) {
	f := newFakeProvider()
	f.histories["1d"] = barSeries("AAPL", "1d", 24*time.Hour, 30)
	f.histories["1wk"] = barSeries("AAPL", "1wk", 7*24*time.Hour, 12)

	s := startSession(t, f, "1d")
	waitFor(t, func() bool { return len(s.BaseDataset().Points) == 30 }, "daily load")

	if _, err := s.AddOverlay(indicator.KindSMA, 4, ""); err != nil {
		t.Fatalf("AddOverlay: %v", err)
	}
	waitFor(t, func() bool {
		ds := s.OverlayDatasets()
		return len(ds) == 1 && len(ds[0].Points) == 30
	}, "daily overlay compute")

	if err := s.SetInterval("1wk"); err != nil {
		t.Fatalf("SetInterval: %v", err)
	}
	waitFor(t, func() bool {
		ds := s.OverlayDatasets()
		return len(ds) == 1 && len(ds[0].Points) == 12
	}, "weekly overlay recompute")
}

// ── rsi panel ─────────────────────────────────────────────────────────────

func TestSession_ToggleRSI(t *testing.T) {
	f := newFakeProvider()
	f.histories["1d"] = barSeries("AAPL", "1d", 24*time.Hour, 40)

	s := startSession(t, f, "1d")
	waitFor(t, func() bool { return len(s.BaseDataset().Points) == 40 }, "initial load")

	if err := s.ToggleRSI(true, 14); err != nil {
		t.Fatalf("ToggleRSI: %v", err)
	}
	waitFor(t, func() bool {
		snap := s.Snapshot()
		return snap.RSI != nil && len(snap.RSI.Points) == 40
	}, "rsi compute")

	snap := s.Snapshot()
	if snap.RSI.Label != "RSI(14)" || snap.RSI.Period != 14 {
		t.Errorf("panel = %+v", snap.RSI)
	}
	for i := 0; i < 14; i++ {
		if snap.RSI.Points[i].Value != nil {
			t.Errorf("rsi[%d] should be absent during warmup", i)
		}
	}
	// Monotonic gains pin RSI at 100.
	if v := snap.RSI.Points[20].Value; v == nil || *v != 100 {
		t.Errorf("rsi[20] = %v, want 100", v)
	}

	if err := s.ToggleRSI(false, 0); err != nil {
		t.Fatalf("ToggleRSI off: %v", err)
	}
	if s.Snapshot().RSI != nil {
		t.Error("panel should be gone after disable")
	}
}

func TestSession_ToggleRSIRejectsBadPeriod(t *testing.T) {
	f := newFakeProvider()
	s := startSession(t, f, "1d")

	if err := s.ToggleRSI(true, 401); !errors.Is(err, model.ErrInvalidPeriod) {
		t.Errorf("err = %v, want ErrInvalidPeriod", err)
	}
	if s.Snapshot().RSI != nil {
		t.Error("panel must not appear after a rejected enable")
	}
}

// ── zoom ──────────────────────────────────────────────────────────────────

func TestSession_ZoomRoundTrip(t *testing.T) {
	f := newFakeProvider()
	f.histories["1d"] = barSeries("AAPL", "1d", 24*time.Hour, 100)

	s := startSession(t, f, "1d")
	waitFor(t, func() bool { return len(s.BaseDataset().Points) == 100 }, "initial load")

	full, ok := s.ViewportRange()
	if !ok {
		t.Fatal("viewport should be bounded")
	}

	if err := s.ZoomIn(); err != nil {
		t.Fatalf("ZoomIn: %v", err)
	}
	zoomed, _ := s.ViewportRange()
	if zoomed.Span() != full.Span()/2 {
		t.Errorf("span after zoom = %v, want %v", zoomed.Span(), full.Span()/2)
	}

	if err := s.ZoomOut(); err != nil {
		t.Fatalf("ZoomOut: %v", err)
	}
	back, _ := s.ViewportRange()
	if back.Span() != full.Span() {
		t.Errorf("span after zoom out = %v, want full %v", back.Span(), full.Span())
	}

	s.ZoomIn()
	s.ZoomIn()
	if err := s.ResetZoom(); err != nil {
		t.Fatalf("ResetZoom: %v", err)
	}
	reset, _ := s.ViewportRange()
	if !reset.Min.Equal(full.Min) || !reset.Max.Equal(full.Max) {
		t.Errorf("reset range = %v, want %v", reset, full)
	}
}

// ── lifecycle ─────────────────────────────────────────────────────────────

func TestSession_CommandsAfterCloseFail(t *testing.T) {
	f := newFakeProvider()
	s := New(Config{ID: "test", Symbol: "AAPL", Interval: "1d", Provider: f})
	s.Start()
	s.Close()

	waitFor(t, func() bool { return s.SetInterval("1wk") != nil }, "loop shutdown")
	if err := s.SetInterval("1wk"); !errors.Is(err, ErrClosed) {
		t.Errorf("err = %v, want ErrClosed", err)
	}
	if _, err := s.AddOverlay(indicator.KindSMA, 5, ""); !errors.Is(err, ErrClosed) {
		t.Errorf("err = %v, want ErrClosed", err)
	}
}

func TestSession_IntervalQueryReportsClose(t *testing.T) {
	f := newFakeProvider()
	s := startSession(t, f, "1wk")

	iv, err := s.Interval()
	if err != nil {
		t.Fatalf("Interval: %v", err)
	}
	if iv != "1wk" {
		t.Errorf("interval = %q, want 1wk", iv)
	}

	s.Close()
	waitFor(t, func() bool {
		_, err := s.Interval()
		return err != nil
	}, "loop shutdown")
	if _, err := s.Interval(); !errors.Is(err, ErrClosed) {
		t.Errorf("err = %v, want ErrClosed", err)
	}
}

func TestSession_RenderListenerSeesGenerations(t *testing.T) {
	f := newFakeProvider()
	f.histories["1d"] = barSeries("AAPL", "1d", 24*time.Hour, 10)

	var mu sync.Mutex
	var gens []uint64
	s := New(Config{
		ID: "test", Symbol: "AAPL", Interval: "1d", Provider: f,
		OnRender: func(p model.RenderPayload) {
			mu.Lock()
			gens = append(gens, p.Generation)
			mu.Unlock()
		},
	})
	s.Start()
	t.Cleanup(s.Close)

	waitFor(t, func() bool { return len(s.BaseDataset().Points) == 10 }, "initial load")
	s.ZoomIn()

	mu.Lock()
	defer mu.Unlock()
	if len(gens) < 2 {
		t.Fatalf("got %d renders, want at least 2", len(gens))
	}
	for i := 1; i < len(gens); i++ {
		if gens[i] <= gens[i-1] {
			t.Errorf("generations not increasing: %v", gens)
		}
	}
}
