package swarm

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"

	catcher "github.com/jbenet/go-temp-err-catcher"
	"github.com/jbenet/goprocess"

	"github.com/anacrolix/log"
	syncx "github.com/anacrolix/sync"
)

// maxListenRetries is spec §4.2's "retry up to 5 times with a 1s delay"
// for EADDRINUSE.
const maxListenRetries = 5

// listenRetryDelay is spec §4.2's 1s delay between EADDRINUSE retries.
const listenRetryDelay = time.Second

// Pool shares a single TCP listening socket among multiple Swarms on the
// same port, routing each inbound connection to the right Swarm by the
// info-hash found in its handshake (spec §4.2).
type Pool struct {
	port     int
	registry *Registry
	clock    Clock
	logger   log.Logger

	mu        syncx.Mutex
	swarms    map[string]*Swarm // keyed by hex info-hash
	listening bool
	started   bool
	listener  net.Listener
	accepted  map[net.Conn]struct{}

	// proc is the accepted-transport child-process tree: each accepted
	// conn is a child, closed en masse when the pool tears down (spec §3:
	// "list of currently accepted inbound transports (for forced
	// teardown)").
	proc goprocess.Process
}

func newPool(port int, r *Registry) *Pool {
	return &Pool{
		port:     port,
		registry: r,
		clock:    defaultClock(),
		logger:   defaultLogger(),
		swarms:   make(map[string]*Swarm),
		accepted: make(map[net.Conn]struct{}),
		proc:     goprocess.WithParent(goprocess.Background()),
	}
}

// attach implements spec §4.2's attach(swarm) contract.
func (p *Pool) attach(s *Swarm) {
	key := s.infoHash.String()

	p.mu.Lock()
	if existing, ok := p.swarms[key]; ok && existing != s {
		p.mu.Unlock()
		go s.deliverError(errPortCollision(p.port, s.infoHash))
		return
	}
	p.swarms[key] = s
	if s.clock != nil {
		p.clock = s.clock
	}

	switch {
	case p.listening:
		p.mu.Unlock()
		go s.deliverListening(p.port)
	case p.started:
		// A bind is already in flight; the bind goroutine will notify
		// every swarm in p.swarms, including this one, once it resolves.
		p.mu.Unlock()
	default:
		p.started = true
		p.mu.Unlock()
		go p.bind()
	}
}

// detach implements spec §4.2's detach(swarm) contract.
func (p *Pool) detach(s *Swarm) {
	p.mu.Lock()
	key := s.infoHash.String()
	if cur, ok := p.swarms[key]; !ok || cur != s {
		p.mu.Unlock()
		return
	}
	delete(p.swarms, key)
	empty := len(p.swarms) == 0
	p.mu.Unlock()

	if empty {
		p.teardown()
	}
}

func (p *Pool) bind() {
	var (
		l   net.Listener
		err error
	)
	for attempt := 0; attempt < maxListenRetries; attempt++ {
		l, err = net.Listen("tcp", fmt.Sprintf(":%d", p.port))
		if err == nil {
			break
		}
		if !isAddrInUse(err) {
			break
		}
		log.Str("address in use, retrying listen").AddValues(p.port, attempt).Log(p.logger)
		p.clock.Sleep(listenRetryDelay)
	}

	if err != nil {
		p.fail(err)
		return
	}

	p.mu.Lock()
	p.listener = l
	p.listening = true
	swarms := p.snapshotSwarms()
	p.mu.Unlock()

	for _, s := range swarms {
		s.deliverListening(p.port)
	}

	go p.acceptLoop()
}

// fail propagates ListenFailed to every swarm registered at the time the
// bind gave up (spec §9's resolved open question: notify each registered
// swarm, not a single one), then removes this now-useless Pool from the
// registry.
func (p *Pool) fail(cause error) {
	p.mu.Lock()
	swarms := p.snapshotSwarms()
	p.mu.Unlock()

	p.registry.remove(p.port, p)

	for _, s := range swarms {
		s.deliverError(errListenFailed(p.port, cause))
	}
}

func (p *Pool) snapshotSwarms() []*Swarm {
	out := make([]*Swarm, 0, len(p.swarms))
	for _, s := range p.swarms {
		out = append(out, s)
	}
	return out
}

func (p *Pool) acceptLoop() {
	var tec catcher.TempErrCatcher
	for {
		conn, err := p.listener.Accept()
		if err != nil {
			if tec.IsTemporary(err) {
				continue
			}
			return
		}
		go p.handleInbound(conn)
	}
}

// handleInbound implements spec §4.2's inbound accept algorithm.
func (p *Pool) handleInbound(conn net.Conn) {
	p.mu.Lock()
	p.accepted[conn] = struct{}{}
	p.mu.Unlock()

	handedOff := make(chan struct{})
	child := p.proc.Go(func(proc goprocess.Process) {
		select {
		case <-proc.Closing():
			conn.Close()
		case <-handedOff:
		}
	})

	drop := func() {
		p.mu.Lock()
		delete(p.accepted, conn)
		p.mu.Unlock()
		child.Close()
	}

	wire := attachTransport(conn, p.clock, defaultHandshakeTimeout)

	select {
	case hs := <-wire.framer.HandshakeC():
		remoteAddr := conn.RemoteAddr().String()
		wire.remoteAddr = remoteAddr
		wire.framer.SetRemoteAddr(remoteAddr)

		p.mu.Lock()
		s, ok := p.swarms[hs.InfoHash.String()]
		delete(p.accepted, conn) // ownership transfers to the swarm, if any
		p.mu.Unlock()
		close(handedOff) // leave the pool's tree without closing conn

		if !ok {
			wire.Close()
			return
		}
		s.onIncoming(newPeer(remoteAddr), wire, hs)
	case <-wire.framer.DoneC():
		drop()
	}
}

// teardown stops accepting, destroys the listener, and forcibly closes
// every currently accepted transport (spec §4.2: "the Pool map empties,
// the Pool tears down").
func (p *Pool) teardown() {
	p.mu.Lock()
	l := p.listener
	p.mu.Unlock()

	if l != nil {
		l.Close()
	}
	p.proc.Close()

	p.registry.remove(p.port, p)
}

func isAddrInUse(err error) bool {
	return errors.Is(err, syscall.EADDRINUSE)
}
