package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"stockwatch/config"
	"stockwatch/internal/gateway"
	"stockwatch/internal/logger"
	"stockwatch/internal/metrics"
	"stockwatch/internal/provider"
	"stockwatch/internal/quote"
	"stockwatch/internal/scheduler"
	"stockwatch/internal/session"
	redisstore "stockwatch/internal/store/redis"
	sqlitestore "stockwatch/internal/store/sqlite"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	cfg := config.Load()
	logger.Init("chartd", logger.ParseLevel(cfg.LogLevel))
	log.Println("[chartd] starting...")

	mets := metrics.New(prometheus.DefaultRegisterer)

	// ---- Market data provider: Yahoo behind the SQLite history cache ----
	yahoo := provider.NewYahoo(provider.YahooConfig{BaseURL: cfg.ProviderBaseURL})

	os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755)
	histCache, err := sqlitestore.New(cfg.SQLitePath)
	if err != nil {
		log.Fatalf("[chartd] sqlite open failed: %v", err)
	}
	defer histCache.Close()
	prov := provider.NewCachedProvider(yahoo, histCache, cfg.HistoryTTL)

	// ---- Quote cache: Redis is optional, quotes degrade to fetch-only ----
	var quoteCache quote.Cache
	rcache, err := redisstore.New(redisstore.QuoteCacheConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		TTL:      cfg.QuoteTTL,
	})
	if err != nil {
		slog.Warn("redis unavailable, quote caching disabled", "addr", cfg.RedisAddr, "err", err)
	} else {
		defer rcache.Close()
		quoteCache = rcache
	}
	quotes := quote.NewService(yahoo, quoteCache, mets)

	// ---- Sessions and WS fan-out ----
	hub := gateway.NewHub(mets)
	registry := session.NewRegistry(prov, mets, hub.Publish)
	defer registry.CloseAll()

	// ---- Quote warm-up ----
	warm, err := scheduler.New(cfg.QuoteRefreshCron, registry, quotes)
	if err != nil {
		log.Fatalf("[chartd] scheduler setup failed: %v", err)
	}
	warm.Start()
	defer warm.Stop()

	// ---- HTTP ----
	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: gateway.NewServer(registry, quotes, hub).Routes(),
	}
	go func() {
		log.Printf("[chartd] listening on %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[chartd] http server: %v", err)
		}
	}()

	// ---- Wait for shutdown signal ----
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Println("[chartd] shutdown signal received, cleaning up...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[chartd] http shutdown: %v", err)
	}
	log.Println("[chartd] bye")
}
