package session

import (
	"log"
	"sort"
	"sync"

	"github.com/google/uuid"

	"stockwatch/internal/metrics"
	"stockwatch/internal/model"
	"stockwatch/internal/provider"
)

// Registry owns the live sessions, keyed by id. It is the only shared
// mutable structure in the service; everything per-view lives inside the
// session loops.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session

	prov provider.Provider
	mets *metrics.Metrics

	// onRender receives every accepted refresh, tagged with the session
	// id. The gateway hub fans it out to that session's WS clients.
	onRender func(id string, payload model.RenderPayload)
}

// NewRegistry builds an empty registry.
func NewRegistry(prov provider.Provider, mets *metrics.Metrics, onRender func(id string, payload model.RenderPayload)) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		prov:     prov,
		mets:     mets,
		onRender: onRender,
	}
}

// Open creates and starts a session for a symbol. The returned id is a
// fresh uuid.
func (r *Registry) Open(symbol string, iv model.Interval) *Session {
	id := uuid.NewString()
	var render func(model.RenderPayload)
	if r.onRender != nil {
		render = func(p model.RenderPayload) { r.onRender(id, p) }
	}
	s := New(Config{
		ID:       id,
		Symbol:   symbol,
		Interval: iv,
		Provider: r.prov,
		Metrics:  r.mets,
		OnRender: render,
	})

	r.mu.Lock()
	r.sessions[id] = s
	r.mu.Unlock()
	r.mets.SessionOpened()

	s.Start()
	log.Printf("[session] opened %s for %s (%s)", id, symbol, iv)
	return s
}

// Get looks up a live session.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Close stops and removes a session. Unknown ids report false.
func (r *Registry) Close(id string) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()
	if !ok {
		return false
	}
	s.Close()
	r.mets.SessionClosed()
	log.Printf("[session] closed %s", id)
	return true
}

// CloseAll stops every session, for shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Close()
		r.mets.SessionClosed()
	}
}

// Symbols returns the distinct symbols with an open session, sorted. The
// quote warmer uses it to scope its refresh.
func (r *Registry) Symbols() []string {
	r.mu.Lock()
	seen := make(map[string]struct{}, len(r.sessions))
	for _, s := range r.sessions {
		seen[s.Symbol()] = struct{}{}
	}
	r.mu.Unlock()

	out := make([]string, 0, len(seen))
	for sym := range seen {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Len reports the number of open sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
