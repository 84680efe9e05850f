package tcp

import (
	"github.com/YaoZengzeng/yutcp/header"
	"github.com/YaoZengzeng/yutcp/seqnum"
	"github.com/YaoZengzeng/yutcp/types"
)

// segmentArrives applies RFC 793 §3.9 "SEGMENT ARRIVES" to the PCB table,
// per spec.md §4.C. eng.mu is held by the caller throughout
func (eng *Engine) segmentArrives(local, remote types.FullAddress, nic types.NicId, seg segInfo) {
	p := eng.table.selectPCB(local, remote)

	// 1. Demux
	if p == nil || p.state == StateClosed {
		switch {
		case seg.flags&header.TCPFlagRst != 0:
			// discard
		case seg.flags&header.TCPFlagAck == 0:
			eng.sendRST(local, remote, 0, seg.seq.Add(seg.len), header.TCPFlagRst|header.TCPFlagAck)
		default:
			eng.sendRST(local, remote, seg.ack, 0, header.TCPFlagRst)
		}
		return
	}

	switch p.state {
	case StateListen:
		eng.segmentArrivesListen(p, local, remote, nic, seg)
		return
	case StateSynSent:
		eng.segmentArrivesSynSent(p, remote, seg)
		return
	}

	eng.segmentArrivesOtherwise(p, remote, seg)
}

func (eng *Engine) segmentArrivesListen(p *pcb, local, remote types.FullAddress, nic types.NicId, seg segInfo) {
	if seg.flags&header.TCPFlagRst != 0 {
		return
	}
	if seg.flags&header.TCPFlagAck != 0 {
		eng.sendRST(local, remote, seg.ack, 0, header.TCPFlagRst)
		return
	}
	if seg.flags&header.TCPFlagSyn == 0 {
		return
	}

	p.local = local
	p.remote = remote
	p.nic = nic
	p.rcvWnd = recvBufSize
	p.rcvNxt = seg.seq.Add(1)
	p.irs = seg.seq
	p.iss = genISS()
	p.sndUna = p.iss
	p.sndNxt = p.iss.Add(1)
	p.state = StateSynReceived

	eng.emit(p, header.TCPFlagSyn|header.TCPFlagAck, p.iss, p.rcvNxt, p.rcvWnd, nil)
}

func (eng *Engine) segmentArrivesSynSent(p *pcb, remote types.FullAddress, seg segInfo) {
	ackAcceptable := seg.flags&header.TCPFlagAck != 0 && seg.ack.LessThanEq(p.sndNxt) && p.iss.LessThan(seg.ack)

	if seg.flags&header.TCPFlagAck != 0 && !ackAcceptable {
		if seg.flags&header.TCPFlagRst == 0 {
			eng.sendRST(p.local, remote, seg.ack, 0, header.TCPFlagRst)
		}
		return
	}

	if seg.flags&header.TCPFlagRst != 0 {
		if seg.flags&header.TCPFlagAck != 0 {
			// ACK was present and already found acceptable above: the peer
			// refused the connection, per spec.md S2
			p.state = StateClosed
			p.waker.Assert()
		}
		return
	}

	if seg.flags&header.TCPFlagSyn == 0 {
		return
	}

	p.rcvNxt = seg.seq.Add(1)
	p.irs = seg.seq

	if seg.flags&header.TCPFlagAck != 0 {
		p.sndUna = seg.ack
		cleanup(p)
	}

	if p.iss.LessThan(p.sndUna) {
		p.state = StateEstablished
		p.sndWnd = seg.wnd
		p.sndWl1 = seg.seq
		p.sndWl2 = seg.ack
		eng.emit(p, header.TCPFlagAck, p.sndNxt, p.rcvNxt, p.rcvWnd, nil)
		p.waker.Assert()
		return
	}

	// Simultaneous open: spec.md §9 open question (ii), left unimplemented
	// as the original tcp_segment_arrives itself marks with a TODO
}

// acceptable implements spec.md §4.C 3.1
func acceptable(p *pcb, seg segInfo) bool {
	if p.rcvWnd == 0 {
		return seg.len == 0 && seg.seq == p.rcvNxt
	}
	if seg.len == 0 {
		return seg.seq.InWindow(p.rcvNxt, p.rcvWnd)
	}
	first := seg.seq.InWindow(p.rcvNxt, p.rcvWnd)
	last := seg.seq.Add(seg.len - 1).InWindow(p.rcvNxt, p.rcvWnd)
	return first || last
}

func (eng *Engine) segmentArrivesOtherwise(p *pcb, remote types.FullAddress, seg segInfo) {
	// 3.1 Acceptability
	if !acceptable(p, seg) {
		if seg.flags&header.TCPFlagRst == 0 {
			eng.emit(p, header.TCPFlagAck, p.sndNxt, p.rcvNxt, p.rcvWnd, nil)
		}
		return
	}

	// 3.2 ACK field
	if seg.flags&header.TCPFlagAck == 0 {
		return
	}

	switch p.state {
	case StateSynReceived:
		if p.sndUna.LessThanEq(seg.ack) && seg.ack.LessThanEq(p.sndNxt) {
			p.state = StateEstablished
			p.sndWnd = seg.wnd
			p.sndWl1 = seg.seq
			p.sndWl2 = seg.ack
			p.waker.Assert()
		} else {
			eng.sendRST(p.local, remote, seg.ack, 0, header.TCPFlagRst)
			return
		}

	case StateEstablished:
		switch {
		case p.sndUna.LessThan(seg.ack) && seg.ack.LessThanEq(p.sndNxt):
			p.sndUna = seg.ack
			cleanup(p)
			if p.sndWl1.LessThan(seg.seq) || (p.sndWl1 == seg.seq && p.sndWl2.LessThanEq(seg.ack)) {
				p.sndWnd = seg.wnd
				p.sndWl1 = seg.seq
				p.sndWl2 = seg.ack
			}
		case seg.ack.LessThan(p.sndUna):
			// stale ACK, ignore
		case p.sndNxt.LessThan(seg.ack):
			eng.emit(p, header.TCPFlagAck, p.sndNxt, p.rcvNxt, p.rcvWnd, nil)
			return
		}

	default:
		// States beyond ESTABLISHED are never entered by this engine
		// (spec.md §9 open question (i)); nothing to do here
		return
	}

	// 3.3 Payload (ESTABLISHED only)
	if p.state == StateEstablished && len(seg.payload) > 0 {
		if p.rcvNxt != seg.seq || p.rcvWnd < seqnum.Size(len(seg.payload)) {
			eng.emit(p, header.TCPFlagAck, p.sndNxt, p.rcvNxt, p.rcvWnd, nil)
			return
		}

		offset := recvBufSize - int(p.rcvWnd)
		copy(p.buf[offset:], seg.payload)
		p.rcvNxt = p.rcvNxt.Add(seqnum.Size(len(seg.payload)))
		p.rcvWnd -= seqnum.Size(len(seg.payload))
		eng.emit(p, header.TCPFlagAck, p.sndNxt, p.rcvNxt, p.rcvWnd, nil)
		p.waker.Assert()
	}

	// 3.4 FIN handling is a documented gap (spec.md §4.C 3.4 / §9 (i)):
	// seg.len already counted a FIN bit for acceptability/window purposes,
	// but no teardown transition is entered here.
}
