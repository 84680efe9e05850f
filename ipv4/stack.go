// Package ipv4 implements the IPv4 network layer: a small interface/routing
// table, inbound header validation and protocol dispatch, and outbound
// header construction. It plays the role spec.md treats as an external
// collaborator ("the upstream IP layer") and spec.md §4.G/§4.H/§4.I describe
// in full
package ipv4

import (
	"log"
	"sync"
	"time"

	"github.com/YaoZengzeng/yutcp/header"
	"github.com/YaoZengzeng/yutcp/types"
)

// LinkEndpoint is the minimal contract a link layer device must satisfy to
// be attached to a Nic. It is defined here, inside ipv4, rather than in a
// shared package, so link-layer implementations (link/channel,
// link/tundev) can satisfy it structurally without importing ipv4
type LinkEndpoint interface {
	// MTU returns the maximum size, in bytes, of a frame this endpoint can
	// carry
	MTU() uint32

	// WritePacket writes a single outbound frame. Implementations may drop
	// the frame if the device is momentarily not writable
	WritePacket(b []byte) error

	// Attach registers dispatch to be called with each inbound frame's
	// bytes. Attach must not block; a device-backed endpoint starts its own
	// read loop
	Attach(dispatch func(b []byte))
}

// UpcallFunc is called once per inbound IPv4 datagram whose protocol number
// matches the one it was registered under
type UpcallFunc func(src, dst types.Address, payload []byte, nic types.NicId)

// Nic is a single network interface: an address, a link endpoint, and the
// stack it belongs to
type Nic struct {
	stack *Stack
	id    types.NicId
	addr  types.Address
	ep    LinkEndpoint
}

// Stack is the IPv4 network layer. It owns the interface table, the routing
// table, the per-transport-protocol upcall registry, and the periodic timer
// registry
type Stack struct {
	mu        sync.Mutex
	nics      map[types.NicId]*Nic
	routes    []types.Route
	protocols map[types.TransportProtocolNumber]UpcallFunc
	nextID    uint32
}

// NewStack creates an empty Stack
func NewStack() *Stack {
	return &Stack{
		nics:      make(map[types.NicId]*Nic),
		protocols: make(map[types.TransportProtocolNumber]UpcallFunc),
	}
}

// RegisterTransportProtocol registers the upcall invoked for every inbound
// datagram carrying the given transport protocol number. It is
// ip_protocol_register in spec.md's external-interface table
func (s *Stack) RegisterTransportProtocol(proto types.TransportProtocolNumber, fn UpcallFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.protocols[proto] = fn
}

// RegisterTimer starts a goroutine that calls fn every interval, forever.
// It is timer_register in spec.md's external-interface table; the TCP
// engine's 100ms retransmission tick is wired through this
func (s *Stack) RegisterTimer(interval time.Duration, fn func()) {
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for range t.C {
			fn()
		}
	}()
}

// CreateNic creates a Nic with the given id, bound to the given link
// endpoint, and attaches its inbound dispatch loop
func (s *Stack) CreateNic(id types.NicId, ep LinkEndpoint) error {
	s.mu.Lock()
	if _, ok := s.nics[id]; ok {
		s.mu.Unlock()
		return types.ErrDuplicateNicId
	}
	n := &Nic{stack: s, id: id, ep: ep}
	s.nics[id] = n
	s.mu.Unlock()

	ep.Attach(n.deliver)
	return nil
}

// AddAddress assigns addr as the unicast address of the given Nic
func (s *Stack) AddAddress(id types.NicId, addr types.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nics[id]
	if !ok {
		return types.ErrUnknownNicId
	}
	n.addr = addr
	return nil
}

// SetRouteTable replaces the stack's routing table
func (s *Stack) SetRouteTable(routes []types.Route) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes = routes
}

// RouteGetIface returns the Nic and local address that should be used to
// reach remote, by scanning the route table for the first row whose masked
// Destination matches remote, matching spec.md §6's ip_route_get_iface
func (s *Stack) RouteGetIface(remote types.Address) (types.NicId, types.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.routes {
		if matchAddress(remote, r.Destination, r.Mask) {
			n, ok := s.nics[r.Nic]
			if !ok {
				continue
			}
			return r.Nic, n.addr, nil
		}
	}
	return 0, "", types.ErrNoRoute
}

func matchAddress(addr, dest, mask types.Address) bool {
	if len(addr) != len(dest) || len(dest) != len(mask) {
		return false
	}
	for i := range addr {
		if addr[i]&mask[i] != dest[i]&mask[i] {
			return false
		}
	}
	return true
}

// deliver validates an inbound frame's IPv4 header and dispatches its
// payload to the upcall registered for its protocol number. It is the
// input half of spec.md §4.H: tcp_input's checksum/length/broadcast guard
// generalized across any registered transport protocol
func (n *Nic) deliver(b []byte) {
	if header.IPVersion(b) != header.IPv4Version {
		log.Printf("ipv4: dropped non-IPv4 frame on nic %d", n.id)
		return
	}

	ip := header.IPv4(b)
	if !ip.IsValid(len(b)) {
		log.Printf("ipv4: dropped malformed datagram on nic %d", n.id)
		return
	}

	xsum := ip.CalculateChecksum()
	if xsum != 0 && xsum != 0xffff {
		log.Printf("ipv4: dropped datagram with bad header checksum on nic %d", n.id)
		return
	}

	src := ip.SourceAddress()
	dst := ip.DestinationAddress()
	if isBroadcast(src) || isBroadcast(dst) {
		log.Printf("ipv4: dropped datagram with broadcast src/dst on nic %d", n.id)
		return
	}

	n.stack.mu.Lock()
	fn, ok := n.stack.protocols[ip.TransportProtocol()]
	n.stack.mu.Unlock()
	if !ok {
		log.Printf("ipv4: no upcall registered for protocol %d", ip.TransportProtocol())
		return
	}

	fn(src, dst, ip.Payload(), n.id)
}

func isBroadcast(addr types.Address) bool {
	if len(addr) != header.IPv4AddressSize {
		return false
	}
	for i := 0; i < len(addr); i++ {
		if addr[i] != 0xff {
			return false
		}
	}
	return true
}

// Output builds an IPv4 datagram carrying payload for proto from src to dst
// and writes it through the link endpoint of the Nic the route table
// selects for dst. It is ip_output from spec.md §4.H/§6
func (s *Stack) Output(proto types.TransportProtocolNumber, payload []byte, src, dst types.Address) error {
	nicID, _, err := s.RouteGetIface(dst)
	if err != nil {
		return err
	}

	s.mu.Lock()
	n, ok := s.nics[nicID]
	if ok {
		s.nextID++
	}
	id := uint16(s.nextID)
	s.mu.Unlock()
	if !ok {
		return types.ErrUnknownNicId
	}

	total := header.IPv4MinimumSize + len(payload)
	b := make([]byte, total)
	ip := header.IPv4(b)
	ip.Encode(&header.IPv4Fields{
		IHL:         header.IPv4MinimumSize,
		TotalLength: uint16(total),
		ID:          id,
		TTL:         64,
		Protocol:    uint8(proto),
		SrcAddr:     src,
		DstAddr:     dst,
	})
	copy(b[header.IPv4MinimumSize:], payload)
	ip.SetChecksum(^ip.CalculateChecksum())

	return n.ep.WritePacket(b)
}

// NicMTU returns the MTU of the given Nic's link endpoint, used by the TCP
// engine to compute MSS when an open (active or passive) completes
func (s *Stack) NicMTU(id types.NicId) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nics[id]
	if !ok {
		return 0, types.ErrUnknownNicId
	}
	return n.ep.MTU(), nil
}
