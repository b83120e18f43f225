package swarm

import (
	"net"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandshakeFramerRoundTrip(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()

	w := attachTransport(local, clock.New(), time.Second)

	infoHash := InfoHash{1, 2, 3}
	peerID := PeerID{4, 5, 6}
	// net.Pipe is synchronous: the remote end must already be reading for
	// the local handshake write to complete.
	var (
		hs  Handshake
		err error
	)
	read := make(chan struct{})
	go func() {
		hs, err = readHandshake(remote)
		close(read)
	}()
	require.NoError(t, w.framer.Handshake(infoHash, peerID, ExtensionBits{}))
	<-read
	require.NoError(t, err)
	assert.Equal(t, infoHash, hs.InfoHash)
	assert.Equal(t, peerID, hs.PeerID)

	remoteInfoHash := InfoHash{9, 9, 9}
	remotePeerID := PeerID{8, 8, 8}
	require.NoError(t, writeHandshake(remote, remoteInfoHash, remotePeerID, ExtensionBits{}))

	select {
	case got := <-w.framer.HandshakeC():
		assert.Equal(t, remoteInfoHash, got.InfoHash)
		assert.Equal(t, remotePeerID, got.PeerID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for handshake")
	}

	buf := make([]byte, 7)
	go func() {
		_, _ = remote.Read(buf)
	}()

	n, err := w.Write([]byte("payload"))
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	select {
	case got := <-w.framer.UploadC():
		assert.Equal(t, 7, got)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for upload accounting")
	}

	require.NoError(t, w.Close())

	select {
	case doneErr := <-w.framer.DoneC():
		assert.NoError(t, doneErr)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for done")
	}
}

func TestHandshakeFramerDeadlineClosesOnTimeout(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()

	mc := clock.NewMock()
	w := attachTransport(local, mc, time.Second)
	_ = w

	mc.Add(time.Second)

	select {
	case <-w.framer.DoneC():
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for handshake deadline to close the transport")
	}
}
