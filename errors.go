package swarm

import (
	"fmt"

	"github.com/anacrolix/swarm/internal/errorsx"
)

// Kind identifies which of the two error kinds spec §7 surfaces to callers
// an Error wraps. Handshake timeouts, info-hash mismatches, and ordinary
// transport resets never reach here; those are recovered locally.
type Kind int

const (
	// PortCollision: a second Swarm attempted to attach to a Pool already
	// serving a Swarm with the same info-hash on that port.
	PortCollision Kind = iota
	// ListenFailed: the Pool's TCP bind failed, either with a
	// non-retryable error or after exhausting its EADDRINUSE retries.
	ListenFailed
)

func (k Kind) String() string {
	switch k {
	case PortCollision:
		return "PortCollision"
	case ListenFailed:
		return "ListenFailed"
	default:
		return "Unknown"
	}
}

// Error is the type surfaced through Sink.OnError. It always carries one
// of the two Kinds spec §7 defines.
type Error struct {
	Kind Kind
	Port int
	err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("swarm: %s on port %d: %s", e.Kind, e.Port, e.err)
}

func (e *Error) Unwrap() error { return e.err }

func errPortCollision(port int, infoHash InfoHash) *Error {
	return &Error{
		Kind: PortCollision,
		Port: port,
		err:  errorsx.Errorf("info-hash %x already registered on port %d", infoHash, port),
	}
}

func errListenFailed(port int, cause error) *Error {
	return &Error{
		Kind: ListenFailed,
		Port: port,
		err:  errorsx.Wrap(cause, "listen failed"),
	}
}
