// Package session owns one symbol detail view: its price series, indicator
// overlays, RSI panel and viewport. Each Session runs a cooperative event
// loop on a single goroutine; every state mutation happens on that
// goroutine, so the session holds no locks. Fetches and indicator
// recomputes run as independent goroutines that post completion tasks
// (carrying their refresh token) back into the loop, where stale results
// are discarded before touching anything.
package session

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"stockwatch/internal/indicator"
	"stockwatch/internal/metrics"
	"stockwatch/internal/model"
	"stockwatch/internal/overlay"
	"stockwatch/internal/provider"
	"stockwatch/internal/refresh"
	"stockwatch/internal/series"
	"stockwatch/internal/viewport"
)

// ErrClosed is returned by commands against a session whose loop has
// stopped.
var ErrClosed = errors.New("session closed")

const defaultFetchTimeout = 15 * time.Second

// Config carries the collaborators of one session.
type Config struct {
	ID       string
	Symbol   string
	Interval model.Interval

	Provider provider.Provider
	Metrics  *metrics.Metrics

	// OnRender is invoked on the loop goroutine after every accepted
	// refresh, with the freshly built payload. It must not block; the
	// gateway hub hands the payload to a buffered channel.
	OnRender func(model.RenderPayload)

	// FetchTimeout bounds one history fetch. Zero means the default.
	FetchTimeout time.Duration
}

// Session is one live chart view. All exported methods are safe to call
// from any goroutine; they round-trip through the loop.
type Session struct {
	id     string
	symbol string

	prov provider.Provider
	mets *metrics.Metrics

	// Loop-confined state.
	interval model.Interval
	store    *series.Store
	overlays *overlay.Manager
	view     *viewport.Controller
	tokens   *refresh.Coordinator

	rsiEnabled bool
	rsiPeriod  int
	rsiValues  []float64
	rsiErr     error

	notice     string
	generation uint64

	onRender     func(model.RenderPayload)
	fetchTimeout time.Duration

	tasks     chan func()
	done      chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
}

// New builds a session. Start must be called before any command.
func New(cfg Config) *Session {
	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &Session{
		id:           cfg.ID,
		symbol:       cfg.Symbol,
		prov:         cfg.Provider,
		mets:         cfg.Metrics,
		interval:     cfg.Interval,
		store:        series.NewStore(),
		overlays:     overlay.NewManager(),
		view:         viewport.NewController(),
		tokens:       refresh.New(),
		onRender:     cfg.OnRender,
		fetchTimeout: timeout,
		tasks:        make(chan func(), 64),
		done:         make(chan struct{}),
		closed:       make(chan struct{}),
	}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Symbol returns the symbol this session charts.
func (s *Session) Symbol() string { return s.symbol }

// Start launches the event loop and kicks off the initial history load.
func (s *Session) Start() {
	go s.run()
	s.post(s.refreshHistory)
}

// Close stops the loop. In-flight fetches resolve into a dead loop and are
// dropped. Idempotent.
func (s *Session) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

func (s *Session) run() {
	defer close(s.closed)
	for {
		select {
		case task := <-s.tasks:
			task()
		case <-s.done:
			return
		}
	}
}

// post hands a task to the loop, failing when the session is closed.
func (s *Session) post(task func()) bool {
	select {
	case s.tasks <- task:
		return true
	case <-s.done:
		return false
	}
}

// do runs fn on the loop and waits for it to finish.
func (s *Session) do(fn func()) error {
	ran := make(chan struct{})
	if !s.post(func() {
		fn()
		close(ran)
	}) {
		return ErrClosed
	}
	select {
	case <-ran:
		return nil
	case <-s.closed:
		return ErrClosed
	}
}

// ---- commands ----

// SetInterval switches the chart to a new bar interval and refetches
// history. A fetch already in flight for the old interval is superseded by
// the token issued here. Same interval is a no-op.
func (s *Session) SetInterval(iv model.Interval) error {
	return s.do(func() {
		if iv == s.interval {
			return
		}
		s.interval = iv
		s.refreshHistory()
	})
}

// Interval returns the current bar interval, or ErrClosed once the
// session loop has stopped.
func (s *Session) Interval() (model.Interval, error) {
	var iv model.Interval
	err := s.do(func() { iv = s.interval })
	return iv, err
}

// AddOverlay validates and registers a new indicator overlay, then derives
// its series asynchronously. The returned id is stable for the session's
// lifetime.
func (s *Session) AddOverlay(kind indicator.Kind, period int, color string) (int, error) {
	var (
		id     int
		addErr error
	)
	err := s.do(func() {
		id, addErr = s.overlays.Add(kind, period, color)
		if addErr != nil {
			return
		}
		s.refreshOverlay(id)
	})
	if err != nil {
		return 0, err
	}
	return id, addErr
}

// RemoveOverlay drops an overlay. Unknown ids are ignored; an in-flight
// recompute for the removed overlay resolves against a forgotten token and
// is discarded.
func (s *Session) RemoveOverlay(id int) error {
	return s.do(func() {
		if _, ok := s.overlays.Get(id); !ok {
			return
		}
		s.overlays.Remove(id)
		s.tokens.Forget(refresh.OverlayResource(id))
		s.render()
	})
}

// ZoomIn halves the visible span around the current midpoint.
func (s *Session) ZoomIn() error {
	return s.do(func() {
		s.view.Zoom(2)
		s.render()
	})
}

// ZoomOut doubles the visible span, snapping back to the full range once it
// would cover it.
func (s *Session) ZoomOut() error {
	return s.do(func() {
		s.view.Zoom(0.5)
		s.render()
	})
}

// ResetZoom restores the full default range.
func (s *Session) ResetZoom() error {
	return s.do(func() {
		s.view.Reset()
		s.render()
	})
}

// ToggleRSI enables or disables the RSI panel. Enabling validates the
// period and derives the series asynchronously; disabling clears panel
// state and supersedes any in-flight compute.
func (s *Session) ToggleRSI(enabled bool, period int) error {
	var cmdErr error
	err := s.do(func() {
		if !enabled {
			if !s.rsiEnabled {
				return
			}
			s.rsiEnabled = false
			s.rsiValues = nil
			s.rsiErr = nil
			s.tokens.Forget(refresh.ResourceRSI)
			s.render()
			return
		}
		if err := indicator.ValidatePeriod(period); err != nil {
			cmdErr = err
			return
		}
		if s.rsiEnabled && s.rsiPeriod == period {
			return
		}
		s.rsiEnabled = true
		s.rsiPeriod = period
		s.refreshRSI()
	})
	if err != nil {
		return err
	}
	return cmdErr
}

// ---- queries ----

// BaseDataset returns the price series shaped for rendering.
func (s *Session) BaseDataset() model.BaseDataset {
	var ds model.BaseDataset
	s.do(func() { ds = s.baseDataset() })
	return ds
}

// OverlayDatasets returns the overlay series in legend order.
func (s *Session) OverlayDatasets() []model.OverlayDataset {
	var ds []model.OverlayDataset
	s.do(func() { ds = s.overlays.Datasets(s.store.Current()) })
	return ds
}

// ViewportRange returns the visible window; ok is false when the view is
// unbounded (fewer than two points loaded).
func (s *Session) ViewportRange() (model.TimeRange, bool) {
	var (
		tr model.TimeRange
		ok bool
	)
	s.do(func() { tr, ok = s.view.Range() })
	return tr, ok
}

// Snapshot returns the full render payload as of now.
func (s *Session) Snapshot() model.RenderPayload {
	var p model.RenderPayload
	s.do(func() { p = s.snapshot() })
	return p
}

// ---- loop internals ----

func (s *Session) baseDataset() model.BaseDataset {
	cur := s.store.Current()
	return model.BaseDataset{Label: s.symbol, Points: cur.Points}
}

func (s *Session) snapshot() model.RenderPayload {
	p := model.RenderPayload{
		Symbol:     s.symbol,
		Interval:   s.interval,
		Generation: s.generation,
		Base:       s.baseDataset(),
		Overlays:   s.overlays.Datasets(s.store.Current()),
		Notice:     s.notice,
	}
	if tr, ok := s.view.Range(); ok {
		vr := tr
		p.Viewport = &vr
	}
	if s.rsiEnabled {
		panel := &model.PanelDataset{
			Label:  indicator.KindRSI.Label(s.rsiPeriod),
			Period: s.rsiPeriod,
		}
		cur := s.store.Current()
		if len(s.rsiValues) == cur.Len() {
			panel.Points = model.ValuePoints(cur.Timestamps(), s.rsiValues)
		}
		if s.rsiErr != nil {
			panel.Error = s.rsiErr.Error()
		}
		p.RSI = panel
	}
	return p
}

// render bumps the generation and pushes the payload to the listener.
func (s *Session) render() {
	s.generation++
	if s.onRender != nil {
		s.onRender(s.snapshot())
	}
}

// refreshHistory issues a history fetch for the current interval. Loop
// goroutine only.
func (s *Session) refreshHistory() {
	token := s.tokens.Issue(refresh.ResourceHistory)
	s.mets.FetchIssued(metrics.ResourceHistory)
	symbol, iv := s.symbol, s.interval

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.fetchTimeout)
		defer cancel()
		hist, err := s.prov.History(ctx, symbol, iv)

		s.post(func() {
			if !s.tokens.Current(refresh.ResourceHistory, token) {
				s.mets.FetchSuperseded(metrics.ResourceHistory)
				return
			}
			if err != nil {
				log.Printf("[session] %s: history %s/%s failed: %v", s.id, symbol, iv, err)
				s.mets.ProviderError(errorKind(err))
				s.notice = noticeFor(err)
				s.render()
				return
			}
			s.mets.FetchAccepted(metrics.ResourceHistory)
			s.notice = ""
			s.store.Replace(hist)
			s.view.OnBaseSeriesReplaced(hist.Points)
			s.refreshOverlays()
			if s.rsiEnabled {
				s.refreshRSI()
			}
			s.render()
		})
	}()
}

// refreshOverlays rederives every overlay from the current closes. The
// compute fans out off-loop; each overlay carries its own token so a
// removal or later refresh supersedes exactly the results it should.
func (s *Session) refreshOverlays() {
	specs := s.overlays.Specs()
	if len(specs) == 0 {
		return
	}
	closes := s.store.Current().Closes()
	tokens := make(map[int]uint64, len(specs))
	for _, sp := range specs {
		tokens[sp.ID] = s.tokens.Issue(refresh.OverlayResource(sp.ID))
		s.mets.FetchIssued(metrics.ResourceOverlay)
	}

	go func() {
		start := time.Now()
		results := s.overlays.ComputeAll(context.Background(), specs, closes)
		s.mets.ObserveCompute(time.Since(start).Seconds())

		s.post(func() {
			applied := false
			for _, res := range results {
				if !s.tokens.Current(refresh.OverlayResource(res.ID), tokens[res.ID]) {
					s.mets.FetchSuperseded(metrics.ResourceOverlay)
					continue
				}
				s.mets.FetchAccepted(metrics.ResourceOverlay)
				s.overlays.Apply(res)
				applied = true
			}
			if applied {
				s.render()
			}
		})
	}()
}

// refreshOverlay rederives a single overlay, used right after Add.
func (s *Session) refreshOverlay(id int) {
	sp, ok := s.overlays.Spec(id)
	if !ok {
		return
	}
	closes := s.store.Current().Closes()
	token := s.tokens.Issue(refresh.OverlayResource(id))
	s.mets.FetchIssued(metrics.ResourceOverlay)

	go func() {
		start := time.Now()
		results := s.overlays.ComputeAll(context.Background(), []overlay.Spec{sp}, closes)
		s.mets.ObserveCompute(time.Since(start).Seconds())

		s.post(func() {
			if !s.tokens.Current(refresh.OverlayResource(id), token) {
				s.mets.FetchSuperseded(metrics.ResourceOverlay)
				return
			}
			s.mets.FetchAccepted(metrics.ResourceOverlay)
			s.overlays.Apply(results[0])
			s.render()
		})
	}()
}

// refreshRSI rederives the RSI panel from the current closes.
func (s *Session) refreshRSI() {
	token := s.tokens.Issue(refresh.ResourceRSI)
	s.mets.FetchIssued(metrics.ResourceRSI)
	closes := s.store.Current().Closes()
	period := s.rsiPeriod

	go func() {
		start := time.Now()
		values, err := indicator.Compute(indicator.KindRSI, closes, period)
		s.mets.ObserveCompute(time.Since(start).Seconds())

		s.post(func() {
			if !s.tokens.Current(refresh.ResourceRSI, token) {
				s.mets.FetchSuperseded(metrics.ResourceRSI)
				return
			}
			s.mets.FetchAccepted(metrics.ResourceRSI)
			if err != nil {
				s.rsiErr = err
			} else {
				s.rsiValues = values
				s.rsiErr = nil
			}
			s.render()
		})
	}()
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, model.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, model.ErrProviderUnavailable):
		return "unavailable"
	default:
		return "other"
	}
}

func noticeFor(err error) string {
	switch {
	case errors.Is(err, model.ErrRateLimited):
		return "rate limited by data provider, showing last loaded data"
	case errors.Is(err, model.ErrProviderUnavailable):
		return "data provider unavailable, showing last loaded data"
	default:
		return "history refresh failed, showing last loaded data"
	}
}
