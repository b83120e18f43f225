package swarm

import "github.com/benbjohnson/clock"

// Clock is the time source used for the handshake deadline, the listen
// retry delay, and the (dormant) reconnect backoff schedule. Tests inject
// clock.NewMock() so those paths run without wall-clock sleeps; production
// code gets clock.New() by default.
type Clock = clock.Clock

func defaultClock() Clock {
	return clock.New()
}

// reconnectBackoff is the exponential backoff schedule declared by the
// data model (spec §4.3). No code path in this package consults it yet;
// it is here so a future reconnect implementation has somewhere to read
// from without a schema change.
var reconnectBackoff = []int{1, 5, 15, 30, 60, 120, 300, 600}

// nextBackoff returns the backoff duration in seconds for the given retry
// count, clamped to the last entry of reconnectBackoff.
func nextBackoff(retries int) int {
	if retries < 0 {
		retries = 0
	}
	if retries >= len(reconnectBackoff) {
		retries = len(reconnectBackoff) - 1
	}
	return reconnectBackoff[retries]
}
