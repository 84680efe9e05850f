package tcp

import (
	"github.com/YaoZengzeng/yutcp/checksum"
	"github.com/YaoZengzeng/yutcp/header"
	"github.com/YaoZengzeng/yutcp/seqnum"
	"github.com/YaoZengzeng/yutcp/types"
)

// segInfo is the ephemeral per-segment summary spec.md §3 calls seg_info:
// the fields the state machine reasons about, independent of the wire
// encoding they arrived in
type segInfo struct {
	seq seqnum.Value
	ack seqnum.Value
	// len is the sequence-space length of the segment: payload length plus
	// one for each of SYN and FIN
	len seqnum.Size
	wnd seqnum.Size
	up  seqnum.Value

	flags   uint8
	payload []byte
	opts    header.ParsedOptions
}

// consume is the number of sequence-space units this segment occupies
func (s *segInfo) consume() seqnum.Size {
	return s.len
}

// decodeSegment verifies the length and the checksum (over the src/dst
// pseudo-header) of a TCP segment and extracts its seg_info. It is decode+verify_checksum from spec.md §4.A
func decodeSegment(b []byte, src, dst types.Address) (header.TCP, segInfo, error) {
	if len(b) < header.TCPMinimumSize {
		return nil, segInfo{}, types.ErrInvalidSegment
	}

	tcp := header.TCP(b)
	dataOff := int(tcp.DataOffset())
	if dataOff < header.TCPMinimumSize || dataOff > len(b) {
		return nil, segInfo{}, types.ErrInvalidSegment
	}

	xsum := header.CalculatePseudoHeaderChecksum(src, dst, uint16(len(b)))
	xsum = checksum.Checksum(b, xsum)
	if xsum != 0 && xsum != 0xffff {
		return nil, segInfo{}, types.ErrInvalidSegment
	}

	payload := tcp.Payload()
	flags := tcp.Flags()
	l := seqnum.Size(len(payload))
	if flags&header.TCPFlagSyn != 0 {
		l++
	}
	if flags&header.TCPFlagFin != 0 {
		l++
	}

	seg := segInfo{
		seq:     seqnum.Value(tcp.SequenceNumber()),
		ack:     seqnum.Value(tcp.AckNumber()),
		len:     l,
		wnd:     seqnum.Size(tcp.WindowSize()),
		flags:   flags,
		payload: payload,
		opts:    header.ParseOptions(tcp.Options()),
	}
	return tcp, seg, nil
}

// buildSegment encodes a TCP segment with the given fields and computes its
// checksum against the given pseudo-header addresses. It is encode from
// spec.md §4.A
func buildSegment(local, remote types.FullAddress, seq, ack seqnum.Value, flags uint8, wnd seqnum.Size, payload []byte) []byte {
	b := make([]byte, header.TCPMinimumSize+len(payload))
	tcp := header.TCP(b)
	tcp.Encode(&header.TCPFields{
		SrcPort:    local.Port,
		DstPort:    remote.Port,
		SeqNum:     uint32(seq),
		AckNum:     uint32(ack),
		Flags:      flags,
		WindowSize: uint16(wnd),
	})
	copy(b[header.TCPMinimumSize:], payload)

	xsum := header.CalculatePseudoHeaderChecksum(local.Addr, remote.Addr, uint16(len(b)))
	xsum = checksum.Checksum(b, xsum)
	tcp.SetChecksum(^xsum)

	return b
}
