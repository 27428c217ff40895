package quote

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"stockwatch/internal/metrics"
)

type fakeSource struct {
	prices map[string]float64
	err    error
	calls  [][]string
}

func (f *fakeSource) Quotes(ctx context.Context, symbols []string) (map[string]float64, error) {
	f.calls = append(f.calls, symbols)
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]float64)
	for _, sym := range symbols {
		if p, ok := f.prices[sym]; ok {
			out[sym] = p
		}
	}
	return out, nil
}

type mapCache struct {
	data map[string]float64
}

func newMapCache() *mapCache { return &mapCache{data: make(map[string]float64)} }

func (m *mapCache) GetMany(ctx context.Context, symbols []string) map[string]float64 {
	out := make(map[string]float64)
	for _, sym := range symbols {
		if p, ok := m.data[sym]; ok {
			out[sym] = p
		}
	}
	return out
}

func (m *mapCache) SetMany(ctx context.Context, prices map[string]float64) {
	for sym, p := range prices {
		m.data[sym] = p
	}
}

func TestService_CacheHitSkipsSource(t *testing.T) {
	src := &fakeSource{prices: map[string]float64{"AAPL": 190}}
	cache := newMapCache()
	cache.data["AAPL"] = 185.5

	svc := NewService(src, cache, nil)
	out := svc.Current(context.Background(), []string{"aapl"})
	if out["AAPL"] == nil || *out["AAPL"] != 185.5 {
		t.Errorf("expected cached 185.5, got %v", out["AAPL"])
	}
	if len(src.calls) != 0 {
		t.Errorf("source called on full cache hit: %v", src.calls)
	}
}

func TestService_MissFetchesAndPrimes(t *testing.T) {
	src := &fakeSource{prices: map[string]float64{"MSFT": 420}}
	cache := newMapCache()

	svc := NewService(src, cache, nil)
	out := svc.Current(context.Background(), []string{"MSFT"})
	if out["MSFT"] == nil || *out["MSFT"] != 420 {
		t.Errorf("expected fetched 420, got %v", out["MSFT"])
	}
	if cache.data["MSFT"] != 420 {
		t.Error("fetched quote must prime the cache")
	}
}

func TestService_UnpricedSymbolIsNil(t *testing.T) {
	src := &fakeSource{prices: map[string]float64{}}
	svc := NewService(src, newMapCache(), nil)
	out := svc.Current(context.Background(), []string{"NOPE"})
	if out["NOPE"] != nil {
		t.Errorf("expected nil for unpriced symbol, got %v", *out["NOPE"])
	}
}

func TestService_SourceFailureDegradesToNil(t *testing.T) {
	src := &fakeSource{err: errors.New("upstream down")}
	svc := NewService(src, newMapCache(), nil)
	out := svc.Current(context.Background(), []string{"AAPL"})
	if out["AAPL"] != nil {
		t.Error("expected nil on source failure")
	}
}

func TestService_NormalizesAndDedupes(t *testing.T) {
	src := &fakeSource{prices: map[string]float64{"AAPL": 190}}
	svc := NewService(src, nil, nil)
	out := svc.Current(context.Background(), []string{" aapl", "AAPL", "", "aapl "})
	if len(out) != 1 {
		t.Errorf("expected 1 entry, got %d", len(out))
	}
	if len(src.calls) != 1 || len(src.calls[0]) != 1 {
		t.Errorf("expected one fetch of one symbol, got %v", src.calls)
	}
}

func TestPercentChange(t *testing.T) {
	f := func(v float64) *float64 { return &v }
	cases := []struct {
		name             string
		initial, current *float64
		want             *float64
	}{
		{"up 10%", f(100), f(110), f(10)},
		{"down 25%", f(200), f(150), f(-25)},
		{"nil initial", nil, f(100), nil},
		{"nil current", f(100), nil, nil},
		{"zero initial", f(0), f(100), nil},
		{"zero current", f(100), f(0), nil},
	}
	for _, tc := range cases {
		got := PercentChange(tc.initial, tc.current)
		switch {
		case tc.want == nil && got != nil:
			t.Errorf("%s: expected nil, got %v", tc.name, *got)
		case tc.want != nil && (got == nil || *got != *tc.want):
			t.Errorf("%s: got %v, want %v", tc.name, got, *tc.want)
		}
	}
}

func TestService_CountsCacheHitsAndMisses(t *testing.T) {
	mets := metrics.New(prometheus.NewRegistry())
	src := &fakeSource{prices: map[string]float64{"AAPL": 190, "MSFT": 410}}
	cache := newMapCache()
	cache.data["AAPL"] = 185.5
	svc := NewService(src, cache, mets)

	svc.Current(context.Background(), []string{"AAPL", "MSFT"})
	if got := testutil.ToFloat64(mets.QuoteCacheHits); got != 1 {
		t.Errorf("cache hits = %v, want 1", got)
	}
	if got := testutil.ToFloat64(mets.QuoteCacheMisses); got != 1 {
		t.Errorf("cache misses = %v, want 1", got)
	}

	// The fetched miss primed the cache, so the second lookup is a hit.
	svc.Current(context.Background(), []string{"MSFT"})
	if got := testutil.ToFloat64(mets.QuoteCacheHits); got != 2 {
		t.Errorf("cache hits after priming = %v, want 2", got)
	}
	if got := testutil.ToFloat64(mets.QuoteCacheMisses); got != 1 {
		t.Errorf("cache misses after priming = %v, want 1", got)
	}
}
