// Package icmp implements a passive ICMPv4 receiver: it validates the
// one's-complement checksum of an inbound message and pretty-prints it by
// type. It never replies, matching spec.md §4.F and the non-goals carried
// from the original icmp_input/icmp_print
package icmp

import (
	"log"

	"github.com/YaoZengzeng/yutcp/checksum"
	"github.com/YaoZengzeng/yutcp/header"
	"github.com/YaoZengzeng/yutcp/ipv4"
	"github.com/YaoZengzeng/yutcp/types"
)

// Receiver is the passive ICMP companion registered with the IP layer
type Receiver struct{}

// NewReceiver creates a Receiver and registers its upcall with ipStack
func NewReceiver(ipStack *ipv4.Stack) *Receiver {
	r := &Receiver{}
	ipStack.RegisterTransportProtocol(header.ICMPv4ProtocolNumber, r.Deliver)
	return r
}

// Deliver is the inbound upcall: validate then print, per
// original_source/icmp.c's icmp_input
func (r *Receiver) Deliver(src, dst types.Address, payload []byte, nic types.NicId) {
	if len(payload) < header.ICMPv4MinimumSize {
		log.Printf("icmp: dropped short message from %v (%d bytes)", src, len(payload))
		return
	}

	if xsum := checksum.Checksum(payload, 0); xsum != 0 && xsum != 0xffff {
		log.Printf("icmp: dropped message from %v with bad checksum", src)
		return
	}

	msg := header.ICMPv4(payload)
	print(src, dst, msg)
}

// print renders msg the way original_source/icmp.c's icmp_print does:
// type/code/checksum always, plus type-specific fields
func print(src, dst types.Address, msg header.ICMPv4) {
	t := msg.Type()
	log.Printf("icmp: %v > %v: type=%s code=%d sum=0x%04x",
		src, dst, header.TypeString(t), msg.Code(), msg.Checksum())

	switch t {
	case header.ICMPv4Echo, header.ICMPv4EchoReply:
		if len(msg) >= header.ICMPv4EchoMinimumSize {
			log.Printf("icmp:   id=%d seq=%d", msg.Identifier(), msg.SequenceNumber())
		}
	case header.ICMPv4DstUnreachable:
		log.Printf("icmp:   %s", header.DstUnreachableCodeString(msg.Code()))
		printInnerIP(msg.Payload())
	default:
		log.Printf("icmp:   unhandled type, %d bytes of type-dependent data", len(msg)-header.ICMPv4MinimumSize)
	}
}

// printInnerIP decodes the offending datagram's IP header that a
// destination-unreachable message carries past its 8-byte ICMP header and
// prints its protocol and addresses. This is a supplement beyond
// original_source/icmp.c, which only prints the generic "dep" field for
// this case; RFC 792 specifies the inner header is always present, though
// truncated to its own header plus 8 bytes of payload, so this deliberately
// does not call IPv4.IsValid (which rejects a header whose TotalLength
// exceeds the truncated buffer it's embedded in)
func printInnerIP(b []byte) {
	if len(b) < header.IPv4MinimumSize {
		return
	}
	inner := header.IPv4(b)
	if int(inner.HeaderLength()) > len(b) {
		return
	}
	log.Printf("icmp:   offending datagram: proto=%d %v > %v",
		inner.Protocol(), inner.SourceAddress(), inner.DestinationAddress())
}
