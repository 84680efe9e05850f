// Package channel implements an in-memory link endpoint: outbound frames
// are queued on a Go channel and inbound frames are delivered by explicit
// injection, rather than real device I/O. It backs the engine's test suites
// in place of a TUN device
package channel

// Endpoint is a link layer endpoint whose outbound frames can be drained
// from C and whose inbound frames are driven by Inject. It satisfies
// ipv4.LinkEndpoint structurally
type Endpoint struct {
	dispatch func(b []byte)
	mtu      uint32

	// C receives a copy of every frame written via WritePacket
	C chan []byte
}

// New creates a channel endpoint with the given outbound queue depth and MTU
func New(size int, mtu uint32) *Endpoint {
	return &Endpoint{
		C:   make(chan []byte, size),
		mtu: mtu,
	}
}

// Inject delivers an inbound frame to whatever dispatch function is
// currently attached
func (e *Endpoint) Inject(b []byte) {
	cp := make([]byte, len(b))
	copy(cp, b)
	if e.dispatch != nil {
		e.dispatch(cp)
	}
}

// Attach saves dispatch for later use by Inject
func (e *Endpoint) Attach(dispatch func(b []byte)) {
	e.dispatch = dispatch
}

// MTU returns the value given to New
func (e *Endpoint) MTU() uint32 {
	return e.mtu
}

// WritePacket queues a copy of b on C
func (e *Endpoint) WritePacket(b []byte) error {
	cp := make([]byte, len(b))
	copy(cp, b)
	e.C <- cp
	return nil
}
