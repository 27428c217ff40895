// Package provider fetches price history and quotes from the upstream
// market data source. Calls are idempotent and side-effect free; failures
// degrade a single chart resource, never the process.
package provider

import (
	"context"

	"stockwatch/internal/model"
)

// Provider is the market data collaborator consumed by the chart core.
type Provider interface {
	// History fetches the full price series for a symbol at the given
	// interval. The returned series is sorted with unique timestamps.
	History(ctx context.Context, symbol string, interval model.Interval) (model.Series, error)

	// Quotes fetches last prices for a batch of symbols. Symbols the
	// upstream cannot price are absent from the result, not an error.
	Quotes(ctx context.Context, symbols []string) (map[string]float64, error)
}

// HistoryCache is a local store of fetched series keyed by (symbol,
// interval). Implemented by the SQLite store.
type HistoryCache interface {
	Load(ctx context.Context, symbol string, interval model.Interval) (model.Series, int64, error)
	Store(ctx context.Context, s model.Series, fetchedAt int64) error
}
