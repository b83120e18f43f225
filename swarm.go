package swarm

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/anacrolix/chansync"
	"github.com/anacrolix/generics"
	"github.com/anacrolix/log"
	"github.com/anacrolix/missinggo"
	syncx "github.com/anacrolix/sync"
	"golang.org/x/sync/errgroup"

	"github.com/anacrolix/swarm/internal/errorsx"
)

// Dialer makes outbound TCP connections for a Swarm's dial queue. The
// default wraps *net.Dialer; tests substitute one that hands back
// net.Pipe ends (spec §6: "a dialer collaborator... address format is a
// plain host:port string").
type Dialer interface {
	DialContext(ctx context.Context, network, addr string) (net.Conn, error)
}

type netDialer struct {
	d net.Dialer
}

func (n *netDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	return n.d.DialContext(ctx, network, addr)
}

func defaultDialer() Dialer { return &netDialer{} }

// Swarm manages every outbound and inbound connection for one torrent
// (spec §1, §3, §4.3). Exactly one Swarm exists per info-hash a caller
// cares about.
type Swarm struct {
	infoHash   InfoHash
	peerID     PeerID
	extensions ExtensionBits

	sink             Sink
	logger           log.Logger
	clock            Clock
	registry         *Registry
	handshakeTimeout time.Duration
	dialer           Dialer
	maxConns         int

	mu     syncx.Mutex
	peers  map[string]*Peer
	q      queue
	port   int
	paused bool

	downloaded int64
	uploaded   int64

	// listening is set exactly once, by whichever of deliverListening or
	// deliverError settles this Swarm's first (and only) Listen call
	// (spec §4.3's listening/error events, made synchronous for whichever
	// goroutine is blocked inside Listen).
	listening    chansync.SetOnce
	listenSettle sync.Once
	listenErr    error

	closed    missinggo.Event
	closeOnce sync.Once
}

// New constructs a Swarm for one torrent. infoHash and peerID identify
// this swarm on the wire; opts override the ambient defaults (spec
// §AMBIENT STACK's functional-options list).
func New(infoHash InfoHash, peerID PeerID, opts ...Option) *Swarm {
	s := &Swarm{
		infoHash:         infoHash,
		peerID:           peerID,
		logger:           defaultLogger(),
		clock:            defaultClock(),
		registry:         DefaultRegistry,
		handshakeTimeout: defaultHandshakeTimeout,
		dialer:           defaultDialer(),
		maxConns:         MaxSize,
		peers:            make(map[string]*Peer),
		q:                &fifoQueue{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewFromText constructs a Swarm from loosely-typed info-hash/peer-id
// input (spec §4.3 construct()): each accepts raw 20-byte binary, or text
// (hex for the info-hash, raw bytes for the peer-id).
func NewFromText(infoHash, peerID interface{}, opts ...Option) (*Swarm, error) {
	ih, err := parseInfoHash(infoHash)
	if err != nil {
		return nil, errorsx.Wrap(err, "parsing info-hash")
	}
	id, err := parsePeerID(peerID)
	if err != nil {
		return nil, errorsx.Wrap(err, "parsing peer-id")
	}
	return New(ih, id, opts...), nil
}

// InfoHash returns this swarm's torrent identifier.
func (s *Swarm) InfoHash() InfoHash { return s.infoHash }

// PeerID returns this swarm's self-identifier.
func (s *Swarm) PeerID() PeerID { return s.peerID }

// Port returns the listening port, or 0 if Listen has not been called.
func (s *Swarm) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

// Downloaded returns the total bytes read across every wire this swarm
// has ever adopted.
func (s *Swarm) Downloaded() int64 { return atomic.LoadInt64(&s.downloaded) }

// Uploaded returns the total bytes written across every wire this swarm
// has ever adopted.
func (s *Swarm) Uploaded() int64 { return atomic.LoadInt64(&s.uploaded) }

// Wires returns the currently adopted wires. The slice is a snapshot;
// mutating it has no effect on the swarm.
func (s *Swarm) Wires() []*Wire {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Wire, 0, len(s.peers))
	for _, p := range s.peers {
		if p.wire.Ok {
			out = append(out, p.wire.Value)
		}
	}
	return out
}

// NumQueued returns the number of addresses currently waiting to be
// dialed.
func (s *Swarm) NumQueued() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.len()
}

// NumConns returns the number of in-flight dials plus established
// connections, i.e. the value MAX_SIZE bounds (spec §4.3).
func (s *Swarm) NumConns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.numConnsLocked()
}

// Closed returns a channel that is closed once Destroy has run to
// completion.
func (s *Swarm) Closed() <-chan struct{} { return s.closed.C() }

func (s *Swarm) numConnsLocked() int {
	n := 0
	for _, p := range s.peers {
		if p.connected() {
			n++
		}
	}
	return n
}

// Add registers addr as a dial candidate (spec §4.3 add()). A repeat
// add for an address already known to this swarm is a no-op: the
// existing Peer record, whatever its state, is left untouched.
func (s *Swarm) Add(addr string) {
	s.mu.Lock()
	if _, exists := s.peers[addr]; exists {
		s.mu.Unlock()
		return
	}
	p := newPeer(addr)
	p.queued = true
	s.peers[addr] = p
	s.q.push(addr)
	s.mu.Unlock()

	go s.drain()
}

// Remove evicts addr from this swarm: it leaves the dial queue, the peer
// table, and any active wire is closed; then drain() tries to fill any
// free slot (spec §4.3 remove()).
func (s *Swarm) Remove(addr string) {
	s.mu.Lock()
	p, ok := s.peers[addr]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.peers, addr)
	if p.queued {
		s.q.remove(addr)
	}
	if p.reconnect.Ok {
		p.reconnect.Value.Stop()
	}
	wire := p.wire
	s.mu.Unlock()

	if wire.Ok {
		wire.Value.Close()
	}
	go s.drain()
}

// Pause stops drain() from dialing any further queued addresses. Already
// established connections and in-flight dials are left running (spec
// §4.3 pause()).
func (s *Swarm) Pause() {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
}

// Resume re-enables drain() and immediately tries to fill any open slots
// (spec §4.3 resume()).
func (s *Swarm) Resume() {
	s.mu.Lock()
	s.paused = false
	s.mu.Unlock()
	go s.drain()
}

// Listen attaches this swarm to the shared Pool for port (creating it if
// this is the first swarm to use that port) and blocks until the Pool
// reports listening or a fatal error, or ctx is done (spec §4.2, §4.4,
// §6). A swarm listens on at most one port for its whole lifetime.
func (s *Swarm) Listen(ctx context.Context, port int) error {
	s.mu.Lock()
	if s.port != 0 {
		s.mu.Unlock()
		return errorsx.Errorf("swarm: already listening on port %d", s.port)
	}
	s.port = port
	s.mu.Unlock()

	s.registry.attach(port, s)

	select {
	case <-s.listening.Done():
		s.mu.Lock()
		err := s.listenErr
		s.mu.Unlock()
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// deliverListening is called by a Pool once its bind succeeds. It is the
// async "listening" event of spec §4.3, and also settles a blocked
// Listen call the first time it or deliverError fires for this swarm.
func (s *Swarm) deliverListening(port int) {
	s.listenSettle.Do(func() {
		s.mu.Lock()
		s.listenErr = nil
		s.mu.Unlock()
		s.listening.Set()
	})
	go s.sink.listening()
}

// deliverError is called by a Pool to report PortCollision or
// ListenFailed (spec §7). Every call reaches the Sink; only the first
// call settles a blocked Listen.
func (s *Swarm) deliverError(err error) {
	s.listenSettle.Do(func() {
		s.mu.Lock()
		s.listenErr = err
		s.mu.Unlock()
		s.listening.Set()
	})
	go s.sink.error(err)
}

// drain pops at most one queued address and starts dialing it, provided
// this swarm is not paused and has a free slot under MAX_SIZE (spec
// §4.3 drain()). It is always invoked asynchronously from the tail of
// whatever handler freed a slot or added work.
func (s *Swarm) drain() {
	s.mu.Lock()
	if s.paused {
		s.mu.Unlock()
		return
	}
	if s.numConnsLocked() >= s.maxConns {
		s.mu.Unlock()
		return
	}
	addr, ok := s.q.pop()
	if !ok {
		s.mu.Unlock()
		return
	}
	p, exists := s.peers[addr]
	if !exists {
		// The address was removed after being queued but before being
		// popped; keep draining rather than losing a slot to a stale
		// entry.
		s.mu.Unlock()
		go s.drain()
		return
	}
	p.queued = false
	p.dialing = true
	s.mu.Unlock()

	go s.dialOne(p)
}

// dialOne performs one outbound connection attempt: dial, send our
// handshake, then wait for the peer's handshake or an early close (spec
// §4.1, §4.3).
func (s *Swarm) dialOne(p *Peer) {
	conn, err := s.dialer.DialContext(context.Background(), "tcp", p.addr)
	if err != nil {
		s.onDialed(p, nil, err)
		return
	}

	w := attachTransport(conn, s.clock, s.handshakeTimeout)
	w.remoteAddr = p.addr
	w.framer.SetRemoteAddr(p.addr)

	if err := w.framer.Handshake(s.infoHash, s.peerID, s.extensions); err != nil {
		w.Close()
		s.onDialed(p, nil, err)
		return
	}

	select {
	case hs := <-w.framer.HandshakeC():
		if hs.InfoHash != s.infoHash {
			w.Close()
			s.onDialed(p, nil, errorsx.Errorf("info-hash mismatch from %s", p.addr))
			return
		}
		s.onDialed(p, w, nil)
	case doneErr := <-w.framer.DoneC():
		if doneErr == nil {
			doneErr = errorsx.New("connection closed before handshake")
		}
		s.onDialed(p, nil, doneErr)
	}
}

// onDialed resolves one outbound attempt started by drain(): a failure
// frees the slot and tries the queue again; a success hands the wire to
// adoptWire, the logic shared with inbound reception.
func (s *Swarm) onDialed(p *Peer, w *Wire, err error) {
	if err != nil {
		s.mu.Lock()
		if cur, ok := s.peers[p.addr]; ok && cur == p {
			p.dialing = false
		}
		s.mu.Unlock()
		log.Str("outbound dial failed").AddValues(p.addr, err).Log(s.logger)
		go s.drain()
		return
	}
	s.adoptWire(p, w)
	go s.drain()
}

// onIncoming is called by a Pool once an inbound connection's handshake
// has named this swarm's info-hash. hs is the handshake the Pool already
// consumed off the wire while routing it here. onIncoming completes the
// handshake by sending this swarm's own, displacing any existing
// peer-table entry for the same address (spec §4.3 "reception displaces
// prior peer-table entries").
func (s *Swarm) onIncoming(p *Peer, w *Wire, hs Handshake) {
	if hs.InfoHash != s.infoHash {
		w.Close()
		return
	}
	if err := w.framer.Handshake(s.infoHash, s.peerID, s.extensions); err != nil {
		w.Close()
		return
	}

	s.mu.Lock()
	if existing, ok := s.peers[p.addr]; ok {
		if existing.queued {
			s.q.remove(p.addr)
		}
		if existing.reconnect.Ok {
			existing.reconnect.Value.Stop()
		}
		oldWire := existing.wire
		delete(s.peers, p.addr)
		s.mu.Unlock()
		if oldWire.Ok {
			oldWire.Value.Close()
		}
		s.mu.Lock()
	}
	s.peers[p.addr] = p
	s.mu.Unlock()

	s.adoptWire(p, w)
}

// adoptWire is the wire-adoption logic shared by dialOne's outbound path
// and onIncoming's inbound path (spec §4.3 "wire adoption logic shared by
// inbound/outbound paths"): it publishes the wire to the Sink, forwards
// byte-flow events into the swarm's counters, and installs the one-shot
// cleanup that runs when the wire's terminal event fires.
func (s *Swarm) adoptWire(p *Peer, w *Wire) {
	s.mu.Lock()
	cur, ok := s.peers[p.addr]
	if !ok || cur != p {
		s.mu.Unlock()
		w.Close()
		return
	}
	p.transport = generics.Some[net.Conn](w.conn)
	p.wire = generics.Some(w)
	p.dialing = false
	p.retries = 0
	s.mu.Unlock()

	go s.sink.wire(w)

	go func() {
		downloadC := w.framer.DownloadC()
		uploadC := w.framer.UploadC()
		doneC := w.framer.DoneC()
		for {
			select {
			case n := <-downloadC:
				atomic.AddInt64(&s.downloaded, int64(n))
				s.sink.download(n)
			case n := <-uploadC:
				atomic.AddInt64(&s.uploaded, int64(n))
				s.sink.upload(n)
			case err := <-doneC:
				s.freeSlot(p, w, err)
				return
			}
		}
	}()
}

// freeSlot runs once per adopted wire, when its terminal event fires. It
// clears the Peer record's transport/wire fields (guarding against a
// stale wire that has already been superseded by onIncoming's
// displacement) and tries to fill the slot it just freed. Reconnection
// is a declared but dormant policy (spec §9): freeSlot never re-queues
// the address on its own.
func (s *Swarm) freeSlot(p *Peer, w *Wire, err error) {
	s.mu.Lock()
	if cur, ok := s.peers[p.addr]; ok && cur == p && p.wire.Ok && p.wire.Value == w {
		p.wire = generics.Option[*Wire]{}
		p.transport = generics.Option[net.Conn]{}
		p.dialing = false
	}
	s.mu.Unlock()

	if err != nil {
		log.Str("wire closed").AddValues(p.addr, err).Log(s.logger)
	}
	go s.drain()
}

// Destroy tears this swarm down: every adopted wire is closed
// concurrently, the dial queue and peer table are cleared, the swarm
// detaches from its Pool if it was listening, and the Sink's OnClose
// fires exactly once (spec §4.3 destroy()).
func (s *Swarm) Destroy() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		port := s.port
		wires := make([]*Wire, 0, len(s.peers))
		for _, p := range s.peers {
			if p.wire.Ok {
				wires = append(wires, p.wire.Value)
			}
			if p.reconnect.Ok {
				p.reconnect.Value.Stop()
			}
		}
		s.peers = make(map[string]*Peer)
		s.q = &fifoQueue{}
		s.mu.Unlock()

		if port != 0 {
			s.registry.detach(port, s)
		}

		var g errgroup.Group
		for _, w := range wires {
			w := w
			g.Go(func() error {
				return w.Close()
			})
		}
		g.Wait()

		s.closed.Set()
		s.sink.close()
	})
}
