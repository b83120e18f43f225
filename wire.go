package swarm

import (
	"errors"
	"io"
	"net"
	"sync"
	"time"
)

// Framer is the peer-wire protocol collaborator spec §6 describes: it
// turns a duplex byte stream into a handshake event plus download/upload
// byte-flow events and a single terminal event. The full peer-wire
// message set (choke/interest/piece) is out of scope (spec §1); a real
// implementation of one plugs in here without touching Swarm or Pool.
type Framer interface {
	// Handshake serializes and sends the local handshake.
	Handshake(infoHash InfoHash, peerID PeerID, ext ExtensionBits) error
	// Write sends payload bytes and reports them as upload.
	Write(b []byte) (int, error)
	// SetRemoteAddr records the remote address purely for identification.
	SetRemoteAddr(addr string)

	HandshakeC() <-chan Handshake
	DownloadC() <-chan int
	UploadC() <-chan int
	// DoneC yields exactly once: nil for a graceful end/finish, an error
	// otherwise. It is closed afterward so repeat receives return nil.
	DoneC() <-chan error

	io.Closer
}

// Wire is the framed, bidirectional channel published to the application
// once a peer has completed handshake in either direction (spec glossary).
type Wire struct {
	framer     Framer
	conn       net.Conn
	remoteAddr string
}

// RemoteAddr returns the address this wire is connected to.
func (w *Wire) RemoteAddr() string { return w.remoteAddr }

// Write sends payload bytes to the peer; every successful write is
// reported on the underlying Framer's UploadC.
func (w *Wire) Write(b []byte) (int, error) { return w.framer.Write(b) }

// Close tears down the wire's transport. Safe to call more than once.
func (w *Wire) Close() error { return w.framer.Close() }

// attachTransport implements spec §4.1's attach-transport: it wraps conn
// with a protocol framer, starts the handshake deadline, and pipes
// transport-read to framer-read internally. The deadline is cleared the
// moment the peer's handshake arrives.
func attachTransport(conn net.Conn, clk Clock, handshakeTimeout time.Duration) *Wire {
	f := newHandshakeFramer(conn)
	w := &Wire{framer: f, conn: conn}

	deadline := clk.AfterFunc(handshakeTimeout, func() {
		conn.Close()
	})
	f.onHandshake = func() { deadline.Stop() }

	go f.readLoop()

	return w
}

// handshakeFramer is the minimal, real Framer this package ships: it
// performs the handshake described in handshake.go and then reports raw
// byte counts as download/upload, since no peer-wire message parsing is
// in scope (spec §1). Grounded on btprotocol/wire.go's io.Writer-based
// send helper and on peerconn.go's single mainReadLoop goroutine per
// connection.
type handshakeFramer struct {
	conn       net.Conn
	remoteAddr string

	handshakeC chan Handshake
	downloadC  chan int
	uploadC    chan int
	doneC      chan error

	finishOnce sync.Once
	closeOnce  sync.Once

	// onHandshake, if set, runs once when the peer's handshake is read; it
	// exists so attachTransport can stop the deadline timer without a
	// second layer of synchronization.
	onHandshake func()
}

func newHandshakeFramer(conn net.Conn) *handshakeFramer {
	return &handshakeFramer{
		conn:       conn,
		handshakeC: make(chan Handshake, 1),
		downloadC:  make(chan int, 64),
		uploadC:    make(chan int, 64),
		doneC:      make(chan error, 1),
	}
}

func (f *handshakeFramer) Handshake(infoHash InfoHash, peerID PeerID, ext ExtensionBits) error {
	return writeHandshake(f.conn, infoHash, peerID, ext)
}

func (f *handshakeFramer) Write(b []byte) (int, error) {
	n, err := f.conn.Write(b)
	if n > 0 {
		select {
		case f.uploadC <- n:
		default:
		}
	}
	return n, err
}

func (f *handshakeFramer) SetRemoteAddr(addr string) { f.remoteAddr = addr }

func (f *handshakeFramer) HandshakeC() <-chan Handshake { return f.handshakeC }
func (f *handshakeFramer) DownloadC() <-chan int        { return f.downloadC }
func (f *handshakeFramer) UploadC() <-chan int          { return f.uploadC }
func (f *handshakeFramer) DoneC() <-chan error          { return f.doneC }

// Close triggers a graceful framer end: it closes the transport, which
// unblocks the read loop with an error that finish() turns into a nil
// DoneC value.
func (f *handshakeFramer) Close() error {
	f.closeOnce.Do(func() {
		f.conn.Close()
	})
	return nil
}

func (f *handshakeFramer) readLoop() {
	hs, err := readHandshake(f.conn)
	if err != nil {
		f.finish(err)
		return
	}
	if f.onHandshake != nil {
		f.onHandshake()
	}
	select {
	case f.handshakeC <- hs:
	default:
	}

	buf := make([]byte, 4096)
	for {
		n, err := f.conn.Read(buf)
		if n > 0 {
			select {
			case f.downloadC <- n:
			default:
			}
		}
		if err != nil {
			f.finish(err)
			return
		}
	}
}

// finish delivers the terminal event exactly once. A graceful Close()
// surfaces as a nil error on DoneC; any other read/write error surfaces
// as-is so the caller can distinguish reset from End-of-stream if it
// wants to, though spec §7 treats both as "recovered locally".
func (f *handshakeFramer) finish(err error) {
	f.finishOnce.Do(func() {
		if isGracefulClose(err) {
			err = nil
		}
		f.doneC <- err
		close(f.doneC)
	})
}

func isGracefulClose(err error) bool {
	// errors.Is looks through the wrapping readHandshake adds, so a Close
	// before the peer's handshake arrives is graceful too.
	return err == nil ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, net.ErrClosed)
}
