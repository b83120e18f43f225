package swarm

import (
	syncx "github.com/anacrolix/sync"
)

// Registry is the process-wide mapping from listen port to Pool described
// in spec §3/§4.4. It is created lazily, and an entry is removed when its
// Pool goes away: after the last detach empties it, or when its bind
// fails. There is no separate teardown call (spec §4.4: "there is no
// explicit init/teardown").
//
// Production code uses DefaultRegistry; tests construct their own so
// swarms in one test never collide with swarms in another over a shared
// port (spec §9: "allow injection of an alternative registry... per-test
// scoping").
type Registry struct {
	mu    syncx.Mutex
	pools map[int]*Pool
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{pools: make(map[int]*Pool)}
}

// DefaultRegistry is the process-wide registry used by Swarm.Listen when
// no WithRegistry option was supplied.
var DefaultRegistry = NewRegistry()

// attach routes s to the Pool for port, creating the Pool if this is the
// first Swarm to listen on it.
func (r *Registry) attach(port int, s *Swarm) {
	r.mu.Lock()
	p, ok := r.pools[port]
	if !ok {
		p = newPool(port, r)
		r.pools[port] = p
	}
	r.mu.Unlock()

	p.attach(s)
}

// detach removes s from its Pool. If that empties the Pool's swarm map,
// the Pool tears itself down and this registry drops its entry (spec
// §4.4: "An entry is removed when its Pool is destroyed").
func (r *Registry) detach(port int, s *Swarm) {
	r.mu.Lock()
	p, ok := r.pools[port]
	r.mu.Unlock()
	if !ok {
		return
	}
	p.detach(s)
}

// remove drops the registry's entry for port. Called by a Pool once it has
// torn itself down; never called directly by a Swarm.
func (r *Registry) remove(port int, p *Pool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.pools[port]; ok && cur == p {
		delete(r.pools, port)
	}
}

// poolAt is a test/introspection helper; production code never needs it.
func (r *Registry) poolAt(port int) (*Pool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pools[port]
	return p, ok
}
