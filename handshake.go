package swarm

import (
	"bytes"
	"io"

	"github.com/anacrolix/swarm/internal/errorsx"
)

// protocolString is sent as the first 20 bytes of every handshake,
// matching the BitTorrent wire protocol's pstrlen+pstr header.
const protocolString = "\x13BitTorrent protocol"

// handshakeHeader is the first of the two messages exchanged during a
// handshake: the protocol string followed by 8 reserved extension bytes.
// Layout grounded on btprotocol/handshake.go's HandshakeMessage.
type handshakeHeader struct {
	Extensions ExtensionBits
}

func (h handshakeHeader) writeTo(w io.Writer) error {
	buf := make([]byte, 28)
	copy(buf[:20], protocolString)
	copy(buf[20:28], h.Extensions[:])
	_, err := w.Write(buf)
	return err
}

func (h *handshakeHeader) readFrom(r io.Reader) error {
	buf := make([]byte, 28)
	if _, err := io.ReadFull(r, buf); err != nil {
		return err
	}
	if !bytes.HasPrefix(buf, []byte(protocolString)) {
		return errorsx.Errorf("unexpected protocol string %q", buf[:20])
	}
	copy(h.Extensions[:], buf[20:])
	return nil
}

// handshakeInfo is the second message: info-hash then peer-id, each 20
// bytes. Layout grounded on btprotocol/handshake.go's
// HandshakeInfoMessage.
type handshakeInfo struct {
	Hash   InfoHash
	PeerID PeerID
}

func (h handshakeInfo) writeTo(w io.Writer) error {
	buf := make([]byte, 40)
	copy(buf[:20], h.Hash[:])
	copy(buf[20:], h.PeerID[:])
	_, err := w.Write(buf)
	return err
}

func (h *handshakeInfo) readFrom(r io.Reader) error {
	buf := make([]byte, 40)
	if _, err := io.ReadFull(r, buf); err != nil {
		return err
	}
	copy(h.Hash[:], buf[:20])
	copy(h.PeerID[:], buf[20:])
	return nil
}

// writeHandshake sends both handshake messages in one call, as
// Framer.Handshake does.
func writeHandshake(w io.Writer, infoHash InfoHash, peerID PeerID, ext ExtensionBits) error {
	if err := (handshakeHeader{Extensions: ext}).writeTo(w); err != nil {
		return errorsx.Wrap(err, "writing handshake header")
	}
	if err := (handshakeInfo{Hash: infoHash, PeerID: peerID}).writeTo(w); err != nil {
		return errorsx.Wrap(err, "writing handshake info")
	}
	return nil
}

// Handshake is the event delivered once a peer's handshake has been fully
// read (spec §6: "Event handshake(info-hash, remote-peer-id, extensions):
// fires once on receipt").
type Handshake struct {
	InfoHash   InfoHash
	PeerID     PeerID
	Extensions ExtensionBits
}

// readHandshake reads both handshake messages, as the Framer does on
// receipt of a peer's handshake.
func readHandshake(r io.Reader) (Handshake, error) {
	var (
		hdr  handshakeHeader
		info handshakeInfo
	)
	if err := hdr.readFrom(r); err != nil {
		return Handshake{}, errorsx.Wrap(err, "reading handshake header")
	}
	if err := info.readFrom(r); err != nil {
		return Handshake{}, errorsx.Wrap(err, "reading handshake info")
	}
	return Handshake{InfoHash: info.Hash, PeerID: info.PeerID, Extensions: hdr.Extensions}, nil
}
