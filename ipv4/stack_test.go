package ipv4

import (
	"testing"
	"time"

	"github.com/YaoZengzeng/yutcp/header"
	"github.com/YaoZengzeng/yutcp/link/channel"
	"github.com/YaoZengzeng/yutcp/types"
)

const testNic types.NicId = 1

var (
	localAddr  = types.Address("\x0a\x00\x00\x01")
	remoteAddr = types.Address("\x0a\x00\x00\x02")
)

func newTestStack(t *testing.T) (*Stack, *channel.Endpoint) {
	t.Helper()
	ep := channel.New(4, 1500)
	s := NewStack()
	if err := s.CreateNic(testNic, ep); err != nil {
		t.Fatalf("CreateNic: %v", err)
	}
	if err := s.AddAddress(testNic, localAddr); err != nil {
		t.Fatalf("AddAddress: %v", err)
	}
	s.SetRouteTable([]types.Route{
		{Destination: types.Address("\x00\x00\x00\x00"), Mask: types.Address("\x00\x00\x00\x00"), Nic: testNic},
	})
	return s, ep
}

func TestOutputProducesValidDatagram(t *testing.T) {
	s, ep := newTestStack(t)

	payload := []byte("payload")
	if err := s.Output(header.TCPProtocolNumber, payload, localAddr, remoteAddr); err != nil {
		t.Fatalf("Output: %v", err)
	}

	select {
	case frame := <-ep.C:
		ip := header.IPv4(frame)
		if !ip.IsValid(len(frame)) {
			t.Fatalf("produced datagram failed IsValid")
		}
		if xsum := ip.CalculateChecksum(); xsum != 0 && xsum != 0xffff {
			t.Fatalf("bad header checksum: %#x", xsum)
		}
		if got := ip.SourceAddress(); got != localAddr {
			t.Fatalf("SourceAddress: got %v, want %v", got, localAddr)
		}
		if got := ip.DestinationAddress(); got != remoteAddr {
			t.Fatalf("DestinationAddress: got %v, want %v", got, remoteAddr)
		}
		if string(ip.Payload()) != string(payload) {
			t.Fatalf("Payload: got %q, want %q", ip.Payload(), payload)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for outbound frame")
	}
}

func TestDeliverDispatchesToRegisteredProtocol(t *testing.T) {
	s, ep := newTestStack(t)

	got := make(chan []byte, 1)
	s.RegisterTransportProtocol(header.TCPProtocolNumber, func(src, dst types.Address, payload []byte, nic types.NicId) {
		got <- payload
	})

	payload := []byte("segment")
	b := make([]byte, header.IPv4MinimumSize+len(payload))
	ip := header.IPv4(b)
	ip.Encode(&header.IPv4Fields{
		IHL:         header.IPv4MinimumSize,
		TotalLength: uint16(len(b)),
		TTL:         64,
		Protocol:    uint8(header.TCPProtocolNumber),
		SrcAddr:     remoteAddr,
		DstAddr:     localAddr,
	})
	copy(ip.Payload(), payload)
	ip.SetChecksum(^ip.CalculateChecksum())

	ep.Inject(b)

	select {
	case p := <-got:
		if string(p) != string(payload) {
			t.Fatalf("got payload %q, want %q", p, payload)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for upcall")
	}
}

func TestDeliverDropsBadChecksum(t *testing.T) {
	s, _ := newTestStack(t)

	got := make(chan []byte, 1)
	s.RegisterTransportProtocol(header.TCPProtocolNumber, func(src, dst types.Address, payload []byte, nic types.NicId) {
		got <- payload
	})

	b := make([]byte, header.IPv4MinimumSize)
	ip := header.IPv4(b)
	ip.Encode(&header.IPv4Fields{
		IHL:         header.IPv4MinimumSize,
		TotalLength: uint16(len(b)),
		TTL:         64,
		Protocol:    uint8(header.TCPProtocolNumber),
		SrcAddr:     remoteAddr,
		DstAddr:     localAddr,
	})
	ip.SetChecksum(0x1234) // deliberately wrong

	s.nics[testNic].deliver(b)

	select {
	case <-got:
		t.Fatal("upcall fired for a datagram with a bad checksum")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRouteGetIfaceNoMatch(t *testing.T) {
	s := NewStack()
	if _, _, err := s.RouteGetIface(remoteAddr); err != types.ErrNoRoute {
		t.Fatalf("got %v, want ErrNoRoute", err)
	}
}
