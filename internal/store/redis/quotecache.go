// Package redis caches last-traded prices with a short TTL so repeated
// watch-list views don't hammer the rate-limited upstream provider.
package redis

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

const keyPrefix = "quote:"

// QuoteCacheConfig configures the quote cache.
type QuoteCacheConfig struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
	TTL      time.Duration // freshness window per quote
}

// QuoteCache stores last prices keyed by symbol.
type QuoteCache struct {
	client *goredis.Client
	ttl    time.Duration
}

// New creates a QuoteCache and pings the server.
func New(cfg QuoteCacheConfig) (*QuoteCache, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	log.Printf("[redis] connected to %s (quote ttl=%s)", cfg.Addr, ttl)
	return &QuoteCache{client: client, ttl: ttl}, nil
}

// GetMany returns the cached prices for the given symbols. Symbols without
// a fresh cached quote are absent from the result.
func (q *QuoteCache) GetMany(ctx context.Context, symbols []string) map[string]float64 {
	if len(symbols) == 0 {
		return map[string]float64{}
	}
	keys := make([]string, len(symbols))
	for i, sym := range symbols {
		keys[i] = keyPrefix + sym
	}

	out := make(map[string]float64, len(symbols))
	vals, err := q.client.MGet(ctx, keys...).Result()
	if err != nil {
		log.Printf("[redis] mget failed: %v", err)
		return out
	}
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		price, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		out[symbols[i]] = price
	}
	return out
}

// SetMany primes the cache with freshly fetched prices.
func (q *QuoteCache) SetMany(ctx context.Context, prices map[string]float64) {
	if len(prices) == 0 {
		return
	}
	pipe := q.client.Pipeline()
	for sym, price := range prices {
		pipe.Set(ctx, keyPrefix+sym, strconv.FormatFloat(price, 'f', -1, 64), q.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("[redis] pipeline set failed: %v", err)
	}
}

// Close releases the client.
func (q *QuoteCache) Close() error {
	return q.client.Close()
}
