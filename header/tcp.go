package header

import (
	"encoding/binary"

	"github.com/YaoZengzeng/yutcp/checksum"
	"github.com/YaoZengzeng/yutcp/types"
)

const (
	srcPort    = 0
	dstPort    = 2
	seqNum     = 4
	ackNum     = 8
	dataOffset = 12
	tcpFlags   = 13
	winSize    = 14
	tcpChecksum = 16
	urgentPtr  = 18
)

// Flags that may be set in a TCP segment
const (
	TCPFlagFin = 1 << iota
	TCPFlagSyn
	TCPFlagRst
	TCPFlagPsh
	TCPFlagAck
	TCPFlagUrg
)

// TCP option kinds, per RFC 793/1323. Only MSS is decoded; the others are
// recognized so option parsing can skip past them
const (
	TCPOptionEOL = 0
	TCPOptionNOP = 1
	TCPOptionMSS = 2
)

// TCPFields contains the fields of a TCP packet. It is used to describe the
// fields of a packet that needs to be encoded
type TCPFields struct {
	SrcPort    uint16
	DstPort    uint16
	SeqNum     uint32
	AckNum     uint32
	Flags      uint8
	WindowSize uint16
}

// TCP represents a TCP header and any trailing options, stored in network
// byte order
type TCP []byte

const (
	// TCPMinimumSize is the size of a TCP header with no options
	TCPMinimumSize = 20

	// TCPProtocolNumber is TCP's transport protocol number
	TCPProtocolNumber types.TransportProtocolNumber = 6
)

func (b TCP) SourcePort() uint16 {
	return binary.BigEndian.Uint16(b[srcPort:])
}

func (b TCP) DestinationPort() uint16 {
	return binary.BigEndian.Uint16(b[dstPort:])
}

func (b TCP) SequenceNumber() uint32 {
	return binary.BigEndian.Uint32(b[seqNum:])
}

func (b TCP) AckNumber() uint32 {
	return binary.BigEndian.Uint32(b[ackNum:])
}

// DataOffset returns the size, in bytes, of the header plus options
func (b TCP) DataOffset() uint8 {
	return (b[dataOffset] >> 4) * 4
}

// Payload returns the segment's payload, i.e. everything past the options
func (b TCP) Payload() []byte {
	return b[b.DataOffset():]
}

// Options returns the option bytes between the fixed header and the payload
func (b TCP) Options() []byte {
	return b[TCPMinimumSize:b.DataOffset()]
}

func (b TCP) Flags() uint8 {
	return b[tcpFlags]
}

func (b TCP) WindowSize() uint16 {
	return binary.BigEndian.Uint16(b[winSize:])
}

func (b TCP) Checksum() uint16 {
	return binary.BigEndian.Uint16(b[tcpChecksum:])
}

func (b TCP) SetSourcePort(port uint16) {
	binary.BigEndian.PutUint16(b[srcPort:], port)
}

func (b TCP) SetDestinationPort(port uint16) {
	binary.BigEndian.PutUint16(b[dstPort:], port)
}

func (b TCP) SetChecksum(xsum uint16) {
	binary.BigEndian.PutUint16(b[tcpChecksum:], xsum)
}

// Encode writes f into b's fixed header, sets the data offset to
// TCPMinimumSize (this module never emits options), and zeroes the checksum
// and urgent pointer fields so the caller can compute the checksum next
func (b TCP) Encode(f *TCPFields) {
	binary.BigEndian.PutUint16(b[srcPort:], f.SrcPort)
	binary.BigEndian.PutUint16(b[dstPort:], f.DstPort)
	binary.BigEndian.PutUint32(b[seqNum:], f.SeqNum)
	binary.BigEndian.PutUint32(b[ackNum:], f.AckNum)
	b[dataOffset] = (TCPMinimumSize / 4) << 4
	b[tcpFlags] = f.Flags
	binary.BigEndian.PutUint16(b[winSize:], f.WindowSize)
	b.SetChecksum(0)
	binary.BigEndian.PutUint16(b[urgentPtr:], 0)
}

// CalculatePseudoHeaderChecksum folds the IPv4 pseudo-header described by
// src, dst and the TCP segment length into a partial checksum that the
// caller threads through checksum.Checksum along with the segment bytes
func CalculatePseudoHeaderChecksum(src, dst types.Address, totalLen uint16) uint16 {
	xsum := checksum.Checksum([]byte(src), 0)
	xsum = checksum.Checksum([]byte(dst), xsum)
	xsum = checksum.Checksum([]byte{0, uint8(TCPProtocolNumber)}, xsum)
	return checksum.Checksum([]byte{uint8(totalLen >> 8), uint8(totalLen)}, xsum)
}

// ParsedOptions holds the subset of option data this module decodes. It is
// kept for observability only; the engine does not act on it
type ParsedOptions struct {
	// MSS is the maximum segment size advertised by the peer, or 0 if the
	// option was absent
	MSS uint16
}

// ParseOptions walks a TCP option list for observability. Only MSS is
// decoded (window scale, SACK and timestamps are not); unknown options are
// skipped using their own length byte
func ParseOptions(b []byte) ParsedOptions {
	opts := ParsedOptions{}
	i := 0
	for i < len(b) {
		kind := b[i]
		switch kind {
		case TCPOptionEOL:
			return opts
		case TCPOptionNOP:
			i++
		case TCPOptionMSS:
			if i+4 > len(b) {
				return opts
			}
			opts.MSS = binary.BigEndian.Uint16(b[i+2:])
			i += 4
		default:
			if i+1 >= len(b) || b[i+1] == 0 {
				return opts
			}
			i += int(b[i+1])
		}
	}
	return opts
}

// FlagString renders flags in a six-character "UAPRSF" fixed-width form, with
// "-" in place of each flag that is not set
func FlagString(flags uint8) string {
	letters := "FSRPAU"
	out := []byte("------")
	for i := 0; i < len(letters); i++ {
		if flags&(1<<uint(i)) != 0 {
			out[5-i] = letters[i]
		}
	}
	return string(out)
}
