package swarm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistryAttachCreatesPoolLazily(t *testing.T) {
	port := freePort(t)
	r := NewRegistry()
	_, ok := r.poolAt(port)
	assert.False(t, ok)

	s := New(InfoHash{1}, PeerID{1}, WithRegistry(r))
	r.attach(port, s)

	p, ok := r.poolAt(port)
	assert.True(t, ok)
	assert.Equal(t, port, p.port)

	r.detach(port, s)
}

func TestRegistryRemoveIgnoresStalePool(t *testing.T) {
	port := freePort(t)
	r := NewRegistry()
	current := newPool(port, r)
	r.pools[port] = current

	stale := newPool(port, r)
	r.remove(port, stale)

	p, ok := r.poolAt(port)
	assert.True(t, ok)
	assert.Same(t, current, p)

	r.remove(port, current)
	_, ok = r.poolAt(port)
	assert.False(t, ok)
}
