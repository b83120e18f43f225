package swarm

import (
	"net"
	"testing"

	"github.com/anacrolix/generics"
	"github.com/stretchr/testify/assert"
)

func TestPeerConnectedStates(t *testing.T) {
	p := newPeer("1.2.3.4:5678")
	assert.False(t, p.connected())

	p.dialing = true
	assert.True(t, p.connected())

	p.dialing = false
	assert.False(t, p.connected())

	p.transport = generics.Some[net.Conn](nil)
	assert.True(t, p.connected())
}

func TestNewPeerDefaults(t *testing.T) {
	p := newPeer("addr")
	assert.Equal(t, "addr", p.addr)
	assert.True(t, p.reconnectEligible)
	assert.Equal(t, 0, p.retries)
	assert.False(t, p.queued)
}
