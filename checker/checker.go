// Package checker provides helpers for checking the validity and properties
// of packets in tests, mirroring the assertion idiom of a chained checker
// function
package checker

import (
	"testing"

	"github.com/YaoZengzeng/yutcp/checksum"
	"github.com/YaoZengzeng/yutcp/header"
	"github.com/YaoZengzeng/yutcp/types"
)

// NetworkChecker is a function to check a property of an IPv4 packet
type NetworkChecker func(*testing.T, header.IPv4)

// TransportChecker is a function to check a property of a TCP segment
type TransportChecker func(*testing.T, header.TCP)

// IPv4 checks the validity and properties of the given IPv4 packet. It is
// expected to be used in conjunction with other network checkers for
// specific properties. For example, to check the source and destination
// address, one would call:
//
// checker.IPv4(t, b, checker.SrcAddr(x), checker.DstAddr(y))
func IPv4(t *testing.T, b []byte, checkers ...NetworkChecker) {
	ip := header.IPv4(b)

	if !ip.IsValid(len(b)) {
		t.Fatalf("Not a valid IPv4 packet")
	}

	xsum := ip.CalculateChecksum()
	if xsum != 0 && xsum != 0xffff {
		t.Fatalf("Bad checksum: 0x%x, checksum in packet: 0x%x", xsum, ip.Checksum())
	}

	for _, f := range checkers {
		f(t, ip)
	}
}

// SrcAddr creates a checker that checks the source address
func SrcAddr(addr types.Address) NetworkChecker {
	return func(t *testing.T, h header.IPv4) {
		if a := h.SourceAddress(); a != addr {
			t.Fatalf("Bad source address, got %v, want %v", a, addr)
		}
	}
}

// DstAddr creates a checker that checks the destination address
func DstAddr(addr types.Address) NetworkChecker {
	return func(t *testing.T, h header.IPv4) {
		if a := h.DestinationAddress(); a != addr {
			t.Fatalf("Bad destination address, got %v, want %v", a, addr)
		}
	}
}

// PayloadLen creates a checker that checks the payload length
func PayloadLen(plen int) NetworkChecker {
	return func(t *testing.T, h header.IPv4) {
		if l := len(h.Payload()); l != plen {
			t.Fatalf("Bad payload length, got %v, want %v", l, plen)
		}
	}
}

// TCP creates a checker that checks the transport protocol is TCP, verifies
// the TCP checksum, and runs any additional transport checkers
func TCP(checkers ...TransportChecker) NetworkChecker {
	return func(t *testing.T, h header.IPv4) {
		if p := h.TransportProtocol(); p != header.TCPProtocolNumber {
			t.Fatalf("Bad protocol, got %v, want %v", p, header.TCPProtocolNumber)
		}

		tcp := header.TCP(h.Payload())
		l := uint16(len(tcp))

		xsum := header.CalculatePseudoHeaderChecksum(h.SourceAddress(), h.DestinationAddress(), l)
		xsum = checksum.Checksum(tcp, xsum)

		if xsum != 0 && xsum != 0xffff {
			t.Fatalf("Bad checksum: 0x%x, checksum in segment: 0x%x", xsum, tcp.Checksum())
		}

		for _, f := range checkers {
			f(t, tcp)
		}
	}
}

// SrcPort creates a checker that checks the source port
func SrcPort(port uint16) TransportChecker {
	return func(t *testing.T, h header.TCP) {
		if p := h.SourcePort(); p != port {
			t.Fatalf("Bad source port, got %v, want %v", p, port)
		}
	}
}

// DstPort creates a checker that checks the destination port
func DstPort(port uint16) TransportChecker {
	return func(t *testing.T, h header.TCP) {
		if p := h.DestinationPort(); p != port {
			t.Fatalf("Bad destination port, got %v, want %v", p, port)
		}
	}
}

// SeqNum creates a checker that checks the sequence number
func SeqNum(seq uint32) TransportChecker {
	return func(t *testing.T, h header.TCP) {
		if s := h.SequenceNumber(); s != seq {
			t.Fatalf("Bad sequence number, got %v, want %v", s, seq)
		}
	}
}

// AckNum creates a checker that checks the ack number
func AckNum(ack uint32) TransportChecker {
	return func(t *testing.T, h header.TCP) {
		if a := h.AckNumber(); a != ack {
			t.Fatalf("Bad ack number, got %v, want %v", a, ack)
		}
	}
}

// TCPFlags creates a checker that checks the tcp flags
func TCPFlags(flags uint8) TransportChecker {
	return func(t *testing.T, h header.TCP) {
		if f := h.Flags(); f != flags {
			t.Fatalf("Bad flags, got 0x%x, want 0x%x", f, flags)
		}
	}
}

// TCPFlagsMatch creates a checker that checks the tcp flags, masked by the
// given mask, match the supplied flags
func TCPFlagsMatch(flags, mask uint8) TransportChecker {
	return func(t *testing.T, h header.TCP) {
		if f := h.Flags(); (f & mask) != (flags & mask) {
			t.Fatalf("Bad masked flags, got 0x%x, want 0x%x, mask 0x%x", f, flags, mask)
		}
	}
}

// Window creates a checker that checks the tcp window
func Window(window uint16) TransportChecker {
	return func(t *testing.T, h header.TCP) {
		if w := h.WindowSize(); w != window {
			t.Fatalf("Bad window, got 0x%x, want 0x%x", w, window)
		}
	}
}
