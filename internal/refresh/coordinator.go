// Package refresh sequences asynchronous fetches with generation tokens.
//
// Each logical resource (history, one per overlay, the RSI panel) carries a
// monotonically increasing generation counter. Issuing a fetch captures the
// new token; when the fetch resolves, its token is compared against the
// latest issued one and stale results are discarded. Cancellation is
// advisory: a superseded fetch may still complete, but its result is inert.
package refresh

import "strconv"

// Resource names a logical fetch target.
type Resource string

const (
	ResourceHistory Resource = "history"
	ResourceRSI     Resource = "rsi"
)

// OverlayResource returns the resource name for one overlay id.
func OverlayResource(id int) Resource {
	return Resource("overlay:" + strconv.Itoa(id))
}

// Coordinator holds the per-resource generation counters. It is confined to
// the session loop goroutine: Issue and Current are only ever called from
// there, so plain map access is safe.
type Coordinator struct {
	gens map[Resource]uint64
}

// New returns an empty coordinator.
func New() *Coordinator {
	return &Coordinator{gens: make(map[Resource]uint64)}
}

// Issue increments the resource's generation and returns the new token.
// The returned token identifies exactly one in-flight fetch.
func (c *Coordinator) Issue(r Resource) uint64 {
	c.gens[r]++
	return c.gens[r]
}

// Latest returns the most recently issued token for the resource.
func (c *Coordinator) Latest(r Resource) uint64 {
	return c.gens[r]
}

// Current reports whether token is still the freshest issued for the
// resource. A false result means the fetch was superseded and its result
// must be dropped without being applied, even partially.
func (c *Coordinator) Current(r Resource, token uint64) bool {
	return c.gens[r] == token
}

// Forget drops the counter for a resource, used when an overlay is removed.
// A token from before Forget never matches a later generation because Issue
// after re-add starts a fresh count only for new overlay ids.
func (c *Coordinator) Forget(r Resource) {
	delete(c.gens, r)
}
