package header

import (
	"encoding/binary"

	"github.com/YaoZengzeng/yutcp/types"
)

type ICMPv4 []byte

const (
	// ICMPv4MinimumSize is the minimum size of a valid ICMP packet
	ICMPv4MinimumSize = 4

	// ICMPv4EchoMinimumSize is the minimum size of a valid echo/echo-reply
	// packet, including the identifier and sequence number fields
	ICMPv4EchoMinimumSize = 8

	// ICMPv4ProtocolNumber is the ICMP transport protocol number
	ICMPv4ProtocolNumber types.TransportProtocolNumber = 1
)

// ICMPv4Type is the ICMP type field described in RFC 792
type ICMPv4Type byte

// Values of ICMPv4Type defined in RFC 792
const (
	ICMPv4EchoReply      ICMPv4Type = 0
	ICMPv4DstUnreachable ICMPv4Type = 3
	ICMPv4SrcQuench      ICMPv4Type = 4
	ICMPv4Redirect       ICMPv4Type = 5
	ICMPv4Echo           ICMPv4Type = 8
	ICMPv4TimeExceeded   ICMPv4Type = 11
	ICMPv4ParamProblem   ICMPv4Type = 12
	ICMPv4Timestamp      ICMPv4Type = 13
	ICMPv4TimestampReply ICMPv4Type = 14
	ICMPv4InfoRequest    ICMPv4Type = 15
	ICMPv4InfoReply      ICMPv4Type = 16
)

// TypeString renders t the way the original icmp_type_ntoa did, for logging
func TypeString(t ICMPv4Type) string {
	switch t {
	case ICMPv4EchoReply:
		return "EchoReply"
	case ICMPv4DstUnreachable:
		return "DestinationUnreachable"
	case ICMPv4SrcQuench:
		return "SourceQuench"
	case ICMPv4Redirect:
		return "Redirect"
	case ICMPv4Echo:
		return "Echo"
	case ICMPv4TimeExceeded:
		return "TimeExceeded"
	case ICMPv4ParamProblem:
		return "ParameterProblem"
	case ICMPv4Timestamp:
		return "Timestamp"
	case ICMPv4TimestampReply:
		return "TimestampReply"
	case ICMPv4InfoRequest:
		return "InformationRequest"
	case ICMPv4InfoReply:
		return "InformationReply"
	default:
		return "Unknown"
	}
}

// Destination-unreachable codes, per RFC 792
const (
	ICMPv4NetUnreachable     = 0
	ICMPv4HostUnreachable    = 1
	ICMPv4ProtoUnreachable   = 2
	ICMPv4PortUnreachable    = 3
	ICMPv4FragmentationNeeded = 4
	ICMPv4SourceRouteFailed  = 5
)

// DstUnreachableCodeString renders a destination-unreachable code field
func DstUnreachableCodeString(code byte) string {
	switch code {
	case ICMPv4NetUnreachable:
		return "network unreachable"
	case ICMPv4HostUnreachable:
		return "host unreachable"
	case ICMPv4ProtoUnreachable:
		return "protocol unreachable"
	case ICMPv4PortUnreachable:
		return "port unreachable"
	case ICMPv4FragmentationNeeded:
		return "fragmentation needed and DF set"
	case ICMPv4SourceRouteFailed:
		return "source route failed"
	default:
		return "unknown code"
	}
}

// Type is the ICMP type field
func (b ICMPv4) Type() ICMPv4Type {
	return ICMPv4Type(b[0])
}

// SetType sets the ICMP type field
func (b ICMPv4) SetType(t ICMPv4Type) { b[0] = byte(t) }

// Code is the ICMP code field. Its meaning depends on the value of Type
func (b ICMPv4) Code() byte { return b[1] }

// SetCode sets the ICMP code field
func (b ICMPv4) SetCode(c byte) { b[1] = c }

// Checksum is the ICMP checksum field
func (b ICMPv4) Checksum() uint16 {
	return binary.BigEndian.Uint16(b[2:])
}

// SetChecksum sets the ICMP checksum field
func (b ICMPv4) SetChecksum(checksum uint16) {
	binary.BigEndian.PutUint16(b[2:], checksum)
}

// Identifier is the identifier field of an echo or echo-reply message
func (b ICMPv4) Identifier() uint16 {
	return binary.BigEndian.Uint16(b[4:])
}

// SetIdentifier sets the identifier field of an echo or echo-reply message
func (b ICMPv4) SetIdentifier(id uint16) {
	binary.BigEndian.PutUint16(b[4:], id)
}

// SequenceNumber is the sequence number field of an echo or echo-reply message
func (b ICMPv4) SequenceNumber() uint16 {
	return binary.BigEndian.Uint16(b[6:])
}

// SetSequenceNumber sets the sequence number field of an echo or echo-reply
// message
func (b ICMPv4) SetSequenceNumber(s uint16) {
	binary.BigEndian.PutUint16(b[6:], s)
}

// Payload returns the bytes beyond the fixed 8-byte header, i.e. past the
// identifier/sequence-number (or "unused") word
func (b ICMPv4) Payload() []byte {
	return b[ICMPv4EchoMinimumSize:]
}
