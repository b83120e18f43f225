package swarm

import (
	"net"

	"github.com/anacrolix/generics"
)

// Peer is the per-remote-address state holder described in spec §3. At
// most one Peer exists per address inside a given Swarm at any time; the
// Swarm's peer table enforces that.
//
// The optional fields use generics.Option rather than bare pointers so the
// "present or not" question reads the same way the data model states it
// (spec §3: "an optional outbound transport handle; an optional wire
// handle; an optional pending reconnect timer handle").
type Peer struct {
	addr string

	transport generics.Option[net.Conn]
	wire      generics.Option[*Wire]
	reconnect generics.Option[clockTimer]

	reconnectEligible bool
	retries           int

	// dialing is true from the moment drain() pops this Peer and starts
	// an outbound dial until the dial resolves into either a transport or
	// a failure. It exists so an in-flight dial counts against MAX_SIZE
	// even though there is no net.Conn yet to put in transport (spec
	// §4.3: "in-flight dials plus established connections").
	dialing bool

	// queued is true iff this Peer currently sits in the dial queue. The
	// Swarm sets it in Add and clears it when drain() pops the address, so
	// Remove and onIncoming never have to search the queue to answer "is
	// this peer queued".
	queued bool
}

func newPeer(addr string) *Peer {
	return &Peer{addr: addr, reconnectEligible: true}
}

// connected reports whether this Peer counts against MAX_SIZE: it has a
// transport, in-flight or established, independent of handshake state
// (spec §4.3, "Connection-ceiling semantics").
func (p *Peer) connected() bool {
	return p.dialing || p.transport.Ok
}

// clockTimer is the subset of clock.Timer the Peer record needs to hold a
// cancellable pending reconnect timer without importing the clock package
// into this file's public surface.
type clockTimer interface {
	Stop() bool
}
