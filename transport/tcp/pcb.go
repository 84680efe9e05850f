package tcp

import (
	"crypto/rand"
	"encoding/binary"
	"time"

	"github.com/YaoZengzeng/yutcp/header"
	"github.com/YaoZengzeng/yutcp/ilist"
	"github.com/YaoZengzeng/yutcp/seqnum"
	"github.com/YaoZengzeng/yutcp/sleep"
	"github.com/YaoZengzeng/yutcp/types"
)

// State is a TCP connection state, per RFC 793 §3.2
type State int

// The states a PCB can be in. NONE means the slot is free
const (
	StateNone State = iota
	StateClosed
	StateListen
	StateSynSent
	StateSynReceived
	StateEstablished
	StateFinWait1
	StateFinWait2
	StateCloseWait
	StateClosing
	StateLastAck
	StateTimeWait
)

func (s State) String() string {
	switch s {
	case StateNone:
		return "NONE"
	case StateClosed:
		return "CLOSED"
	case StateListen:
		return "LISTEN"
	case StateSynSent:
		return "SYN_SENT"
	case StateSynReceived:
		return "SYN_RECEIVED"
	case StateEstablished:
		return "ESTABLISHED"
	case StateFinWait1:
		return "FIN_WAIT1"
	case StateFinWait2:
		return "FIN_WAIT2"
	case StateCloseWait:
		return "CLOSE_WAIT"
	case StateClosing:
		return "CLOSING"
	case StateLastAck:
		return "LAST_ACK"
	case StateTimeWait:
		return "TIME_WAIT"
	default:
		return "UNKNOWN"
	}
}

// queueEntry is an unacknowledged outbound segment, per spec.md §3's
// "Unacknowledged-segment entry"
type queueEntry struct {
	ilist.Entry

	firstSent time.Time
	lastSent  time.Time
	rto       time.Duration

	seq     seqnum.Value
	flags   uint8
	payload []byte
}

// consume is the number of sequence-space bytes this entry covers: payload
// length plus one for each of SYN and FIN
func (e *queueEntry) consume() seqnum.Size {
	l := seqnum.Size(len(e.payload))
	if e.flags&header.TCPFlagSyn != 0 {
		l++
	}
	if e.flags&header.TCPFlagFin != 0 {
		l++
	}
	return l
}

// pcb is a Protocol Control Block: the complete per-connection state record
// described by spec.md §3
type pcb struct {
	desc  int
	state State

	local  types.FullAddress
	remote types.FullAddress
	nic    types.NicId

	sndUna seqnum.Value
	sndNxt seqnum.Value
	sndWnd seqnum.Size
	sndUp  seqnum.Value
	sndWl1 seqnum.Value
	sndWl2 seqnum.Value
	iss    seqnum.Value

	rcvNxt seqnum.Value
	rcvWnd seqnum.Size
	rcvUp  seqnum.Value
	irs    seqnum.Value

	mss uint16

	buf [recvBufSize]byte

	waker sleep.Waker

	queue ilist.List
}

// reset clears p back to an unused NONE slot
func (p *pcb) reset() {
	desc := p.desc
	*p = pcb{desc: desc}
}

// table is the fixed-size PCB pool, spec.md §3's "Fixed pool of 16 PCBs,
// externally addressable by an integer descriptor equal to the slot index"
type table struct {
	pcbs [pcbTableSize]pcb
}

func newTable() *table {
	t := &table{}
	for i := range t.pcbs {
		t.pcbs[i].desc = i
	}
	return t
}

// alloc returns the first NONE slot, transitioned to CLOSED, per spec.md
// §4.B
func (t *table) alloc() (*pcb, error) {
	for i := range t.pcbs {
		p := &t.pcbs[i]
		if p.state == StateNone {
			p.reset()
			p.state = StateClosed
			p.rcvWnd = recvBufSize
			return p, nil
		}
	}
	return nil, types.ErrNoFreePCB
}

// get bounds-checks desc and rejects NONE slots
func (t *table) get(desc int) (*pcb, error) {
	if desc < 0 || desc >= len(t.pcbs) {
		return nil, types.ErrBadDescriptor
	}
	p := &t.pcbs[desc]
	if p.state == StateNone {
		return nil, types.ErrBadDescriptor
	}
	return p, nil
}

// release implements spec.md §4.B release: if the PCB's waker still has a
// listener, wake it and return without freeing; the woken caller is
// responsible for calling release again on its own eventual exit.
// Otherwise the queue is drained and the slot zeroed
func (t *table) release(p *pcb) {
	if p.waker.HasListener() {
		p.waker.Assert()
		return
	}

	for e := p.queue.Front(); e != nil; {
		next := e.Next()
		p.queue.Remove(e)
		e = next
	}
	p.reset()
}

// collides reports whether an existing non-NONE PCB already owns exactly
// (local, remote), per spec.md invariant 4
func (t *table) collides(local, remote types.FullAddress) bool {
	for i := range t.pcbs {
		p := &t.pcbs[i]
		if p.state == StateNone {
			continue
		}
		if p.local == local && p.remote == remote {
			return true
		}
	}
	return false
}

// selectPCB finds the best-matching non-CLOSED PCB for a segment arriving
// from remote to local, per spec.md §4.B select match rules
func (t *table) selectPCB(local, remote types.FullAddress) *pcb {
	var best *pcb
	bestIsListen := true

	for i := range t.pcbs {
		p := &t.pcbs[i]
		if p.state == StateNone || p.state == StateClosed {
			continue
		}

		if p.local.Port != local.Port {
			continue
		}

		if !(p.local.Addr == local.Addr || p.local.Addr == types.AnyAddress) {
			continue
		}

		isListen := false
		if p.remote == remote {
			// exact match
		} else if p.remote.Addr == types.AnyAddress && p.remote.Port == 0 {
			isListen = true
		} else {
			continue
		}

		if best == nil {
			best = p
			bestIsListen = isListen
			continue
		}

		// A non-LISTEN match wins over a LISTEN match
		if bestIsListen && !isListen {
			best = p
			bestIsListen = isListen
		}
	}

	return best
}

// genISS draws a random ISS from a cryptographically-nonpredictable source,
// per spec.md §9's fix for the original's weak generator
func genISS() seqnum.Value {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return seqnum.Value(0)
	}
	return seqnum.Value(binary.BigEndian.Uint32(b[:]))
}
