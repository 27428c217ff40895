package provider

import (
	"context"
	"log"
	"time"

	"stockwatch/internal/model"
)

// CachedProvider wraps an upstream Provider with a local history cache.
// A fresh cached series is served without hitting the upstream; when the
// upstream fails and a stale copy exists, the stale copy is served so the
// chart degrades instead of going blank.
type CachedProvider struct {
	upstream Provider
	cache    HistoryCache
	ttl      time.Duration
	now      func() time.Time
}

// NewCachedProvider wraps upstream with cache. ttl bounds how old a cached
// series may be before a refetch is attempted.
func NewCachedProvider(upstream Provider, cache HistoryCache, ttl time.Duration) *CachedProvider {
	return &CachedProvider{
		upstream: upstream,
		cache:    cache,
		ttl:      ttl,
		now:      time.Now,
	}
}

// History serves from cache when fresh, otherwise fetches and stores.
func (p *CachedProvider) History(ctx context.Context, symbol string, interval model.Interval) (model.Series, error) {
	cached, fetchedAt, cacheErr := p.cache.Load(ctx, symbol, interval)
	if cacheErr == nil && cached.Len() > 0 {
		age := p.now().Sub(time.Unix(fetchedAt, 0))
		if age <= p.ttl {
			return cached, nil
		}
	}

	fresh, err := p.upstream.History(ctx, symbol, interval)
	if err != nil {
		if cacheErr == nil && cached.Len() > 0 {
			log.Printf("[history-cache] upstream failed for %s/%s, serving stale copy: %v",
				symbol, interval, err)
			return cached, nil
		}
		return model.Series{}, err
	}

	if storeErr := p.cache.Store(ctx, fresh, p.now().Unix()); storeErr != nil {
		log.Printf("[history-cache] store failed for %s/%s: %v", symbol, interval, storeErr)
	}
	return fresh, nil
}

// Quotes passes through to the upstream; quote caching lives in the quote
// service, not here.
func (p *CachedProvider) Quotes(ctx context.Context, symbols []string) (map[string]float64, error) {
	return p.upstream.Quotes(ctx, symbols)
}
