package swarm

import (
	"context"
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// freePort grabs an OS-assigned TCP port and immediately releases it, for
// tests that need a real, currently-unused port number.
func freePort(t *testing.T) int {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

// fakeDialer hands back a single pre-built net.Conn for every dial,
// regardless of address. Good for tests with exactly one outbound peer.
type fakeDialer struct {
	conn net.Conn
}

func (f *fakeDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	return f.conn, nil
}

// countingDialer hands back one end of a fresh net.Pipe per dial and
// discards the other end, so every dial counts as an in-flight
// connection that never completes a handshake.
type countingDialer struct {
	mu   sync.Mutex
	dials int
}

func (d *countingDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	d.mu.Lock()
	d.dials++
	d.mu.Unlock()
	client, _ := net.Pipe()
	return client, nil
}

func (d *countingDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}
