// Package quote answers current-price lookups for watch-list symbols,
// backed by a short-TTL cache in front of the rate-limited provider.
package quote

import (
	"context"
	"log"
	"strings"

	"stockwatch/internal/metrics"
)

// Source fetches last prices from the upstream provider.
type Source interface {
	Quotes(ctx context.Context, symbols []string) (map[string]float64, error)
}

// Cache is a TTL price cache (Redis in production, a map in tests).
type Cache interface {
	GetMany(ctx context.Context, symbols []string) map[string]float64
	SetMany(ctx context.Context, prices map[string]float64)
}

// Service resolves quotes cache-first and primes the cache with fetched
// misses. A nil cache degrades to fetch-only.
type Service struct {
	source Source
	cache  Cache
	mets   *metrics.Metrics
}

// NewService wires a quote service. mets may be nil in tests.
func NewService(source Source, cache Cache, mets *metrics.Metrics) *Service {
	return &Service{source: source, cache: cache, mets: mets}
}

// Current returns the last price per symbol; nil marks a symbol the
// provider could not price. Symbols are normalized and de-duplicated.
func (s *Service) Current(ctx context.Context, symbols []string) map[string]*float64 {
	unique := normalize(symbols)
	out := make(map[string]*float64, len(unique))
	for _, sym := range unique {
		out[sym] = nil
	}

	var missing []string
	if s.cache != nil {
		cached := s.cache.GetMany(ctx, unique)
		for _, sym := range unique {
			if price, ok := cached[sym]; ok {
				p := price
				out[sym] = &p
				s.mets.QuoteHit()
			} else {
				missing = append(missing, sym)
			}
		}
	} else {
		missing = unique
	}
	for range missing {
		s.mets.QuoteMiss()
	}
	if len(missing) == 0 {
		return out
	}

	fetched, err := s.source.Quotes(ctx, missing)
	if err != nil {
		log.Printf("[quote] fetch failed for %d symbols: %v", len(missing), err)
	}
	if len(fetched) > 0 {
		if s.cache != nil {
			s.cache.SetMany(ctx, fetched)
		}
		for sym, price := range fetched {
			p := price
			out[sym] = &p
		}
	}
	return out
}

// Warm refreshes quotes for the given symbols, priming the cache. Used by
// the background scheduler for symbols with open sessions.
func (s *Service) Warm(ctx context.Context, symbols []string) {
	unique := normalize(symbols)
	if len(unique) == 0 {
		return
	}
	fetched, err := s.source.Quotes(ctx, unique)
	if err != nil {
		log.Printf("[quote] warm failed for %d symbols: %v", len(unique), err)
		return
	}
	if s.cache != nil {
		s.cache.SetMany(ctx, fetched)
	}
}

// PercentChange computes the percent move from initial to current. Nil when
// either side is missing or the initial price is zero.
func PercentChange(initial, current *float64) *float64 {
	if initial == nil || current == nil || *initial == 0 || *current == 0 {
		return nil
	}
	pct := (*current - *initial) / *initial * 100.0
	return &pct
}

func normalize(symbols []string) []string {
	seen := make(map[string]bool, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, raw := range symbols {
		sym := strings.ToUpper(strings.TrimSpace(raw))
		if sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true
		out = append(out, sym)
	}
	return out
}
