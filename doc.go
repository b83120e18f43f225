// Package swarm manages the population of live peer connections for a
// single BitTorrent info-hash: an outbound connection scheduler that drains
// a FIFO queue of candidate addresses into dials up to a connection
// ceiling, a shared listener pool that demultiplexes inbound connections
// across swarms on the same port by the info-hash found in each peer's
// handshake, and the peer lifecycle that connects the two.
//
// The peer-wire protocol beyond the initial handshake, peer discovery, and
// storage are external collaborators; this package drives a Framer (see
// wire.go) rather than implementing one.
package swarm
