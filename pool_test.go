package swarm

import (
	"context"
	"net"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsAddrInUse(t *testing.T) {
	assert.True(t, isAddrInUse(&net.OpError{Op: "listen", Err: syscall.EADDRINUSE}))
	assert.False(t, isAddrInUse(net.ErrClosed))
}

func TestPoolTeardownRemovesRegistryEntry(t *testing.T) {
	port := freePort(t)
	r := NewRegistry()
	s := New(InfoHash{1}, PeerID{1}, WithRegistry(r))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Listen(ctx, port))

	_, ok := r.poolAt(port)
	require.True(t, ok)

	s.Destroy()

	require.Eventually(t, func() bool {
		_, ok := r.poolAt(port)
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestPoolListenFailsAfterRetries(t *testing.T) {
	occupied, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer occupied.Close()
	port := occupied.Addr().(*net.TCPAddr).Port

	r := NewRegistry()
	s := New(InfoHash{1}, PeerID{1}, WithRegistry(r))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err = s.Listen(ctx, port)
	require.Error(t, err)
	var swarmErr *Error
	require.ErrorAs(t, err, &swarmErr)
	assert.Equal(t, ListenFailed, swarmErr.Kind)
}
