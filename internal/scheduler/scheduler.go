// Package scheduler runs the periodic quote warm-up so watch-list prices
// stay fresh without every page load hitting the rate-limited provider.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// SymbolSource reports the symbols currently worth keeping warm. Backed by
// the session registry.
type SymbolSource interface {
	Symbols() []string
}

// QuoteWarmer refreshes the quote cache for a batch of symbols.
type QuoteWarmer interface {
	Warm(ctx context.Context, symbols []string)
}

// Scheduler owns the cron instance running the warm-up job.
type Scheduler struct {
	cron    *cron.Cron
	source  SymbolSource
	warmer  QuoteWarmer
	timeout time.Duration
}

// New registers the warm-up job under the given cron spec (with a seconds
// field, e.g. "*/30 * * * * *").
func New(spec string, source SymbolSource, warmer QuoteWarmer) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		source:  source,
		warmer:  warmer,
		timeout: 30 * time.Second,
	}
	if _, err := s.cron.AddFunc(spec, s.warmQuotes); err != nil {
		return nil, fmt.Errorf("register quote warm-up %q: %w", spec, err)
	}
	return s, nil
}

// Start begins running jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	log.Println("[scheduler] started")
}

// Stop halts scheduling and waits for a running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("[scheduler] stopped")
}

// WarmNow triggers one warm-up immediately, used at startup.
func (s *Scheduler) WarmNow() {
	s.warmQuotes()
}

func (s *Scheduler) warmQuotes() {
	symbols := s.source.Symbols()
	if len(symbols) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	s.warmer.Warm(ctx, symbols)
	log.Printf("[scheduler] warmed quotes for %d symbols", len(symbols))
}
