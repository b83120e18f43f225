package swarm

import (
	"time"

	"github.com/anacrolix/log"
)

// defaultHandshakeTimeout is spec §4.1's "handshake deadline (default 5s)".
const defaultHandshakeTimeout = 5 * time.Second

// MaxSize is spec §4.3's MAX_SIZE: the connection ceiling counting Peer
// records whose transport is non-nil, in-flight dials and established
// connections alike.
const MaxSize = 100

// Option configures a Swarm at construction time. The set is scoped to
// exactly the knobs spec.md names: the handshake deadline, the connection
// ceiling, extension bits, and the ambient logger/clock/registry.
type Option func(*Swarm)

// WithSink installs the observer set a caller uses in place of a
// string-keyed event bus (spec §9 design note; see Sink).
func WithSink(sink Sink) Option {
	return func(s *Swarm) { s.sink = sink }
}

// WithLogger sets the Swarm's logger. Unset defaults to a discard logger.
func WithLogger(l log.Logger) Option {
	return func(s *Swarm) { s.logger = l }
}

// WithClock overrides the time source used for the handshake deadline,
// listen retries, and the (dormant) reconnect schedule. Tests use
// clock.NewMock(); production code leaves this unset.
func WithClock(c Clock) Option {
	return func(s *Swarm) { s.clock = c }
}

// WithRegistry overrides the Pool registry Listen attaches to, in place
// of the process-wide default (spec §9: "allow injection of an
// alternative registry, e.g., per-test scoping").
func WithRegistry(r *Registry) Option {
	return func(s *Swarm) { s.registry = r }
}

// WithHandshakeTimeout overrides the 5s default handshake deadline for
// this Swarm's outbound dials. Inbound connections accepted by a Pool
// always use the 5s default.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(s *Swarm) { s.handshakeTimeout = d }
}

// WithMaxConns overrides MaxSize for this Swarm.
func WithMaxConns(n int) Option {
	return func(s *Swarm) { s.maxConns = n }
}

// WithExtensions sets the extension bits advertised in this Swarm's
// handshakes.
func WithExtensions(ext ExtensionBits) Option {
	return func(s *Swarm) { s.extensions = ext }
}

// WithDialer overrides how outbound TCP connections are made. Defaults to
// (&net.Dialer{}).DialContext.
func WithDialer(d Dialer) Option {
	return func(s *Swarm) { s.dialer = d }
}
