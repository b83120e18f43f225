package swarm

// Sink is the typed, string-free observer set a caller supplies in place of
// a string-keyed event emitter (see design note in spec §9: "expose a
// capability set {observe-wires, observe-byte-flow, observe-lifecycle}").
// All fields are optional; nil funcs are simply not called, matching the
// teacher's own Callbacks type (callbacks.go).
type Sink struct {
	// observe-wires
	OnWire func(w *Wire)

	// observe-byte-flow
	OnDownload func(n int)
	OnUpload   func(n int)

	// observe-lifecycle
	OnListening func()
	OnError     func(err error)
	OnClose     func()
}

func (s Sink) wire(w *Wire) {
	if s.OnWire != nil {
		s.OnWire(w)
	}
}

func (s Sink) download(n int) {
	if s.OnDownload != nil {
		s.OnDownload(n)
	}
}

func (s Sink) upload(n int) {
	if s.OnUpload != nil {
		s.OnUpload(n)
	}
}

func (s Sink) listening() {
	if s.OnListening != nil {
		s.OnListening()
	}
}

func (s Sink) error(err error) {
	if s.OnError != nil {
		s.OnError(err)
	}
}

func (s Sink) close() {
	if s.OnClose != nil {
		s.OnClose()
	}
}
