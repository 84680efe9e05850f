package tcp

import (
	"log"
	"time"

	"github.com/YaoZengzeng/yutcp/seqnum"
)

// enqueue appends an unacknowledged-segment entry to p's queue, per
// spec.md §4.D "Enqueue": called on every emission carrying SYN, FIN, or a
// non-empty payload
func enqueue(p *pcb, seq seqnum.Value, flags uint8, payload []byte, now time.Time) {
	cp := make([]byte, len(payload))
	copy(cp, payload)
	e := &queueEntry{
		firstSent: now,
		lastSent:  now,
		rto:       initialRTO,
		seq:       seq,
		flags:     flags,
		payload:   cp,
	}
	p.queue.PushBack(e)
}

// cleanup pops every queue entry fully acknowledged by p.sndUna, per
// spec.md §4.D "Cleanup" and invariant 6
func cleanup(p *pcb) {
	for {
		front := p.queue.Front()
		if front == nil {
			return
		}
		e := front.(*queueEntry)
		if !e.seq.Add(e.consume()).LessThanEq(p.sndUna) {
			return
		}
		p.queue.Remove(e)
	}
}

// tick walks every live PCB's unacked queue, emitting retries with
// exponential back-off or forcing the connection closed once the overall
// deadline elapses. It is the retransmission engine's 100ms timer callback,
// spec.md §4.D "Tick"
func (eng *Engine) tick(now time.Time) {
	eng.mu.Lock()
	defer eng.mu.Unlock()

	for i := range eng.table.pcbs {
		p := &eng.table.pcbs[i]
		if p.state == StateNone {
			continue
		}

		for e := p.queue.Front(); e != nil; {
			qe := e.(*queueEntry)
			next := e.Next()

			if now.Sub(qe.firstSent) > retransDeadline {
				log.Printf("tcp: pcb %d retransmission deadline exceeded, closing", p.desc)
				p.state = StateClosed
				p.waker.Assert()
				break
			}

			if now.Sub(qe.lastSent) > qe.rto {
				eng.rawEmit(p, qe.flags, qe.seq, p.rcvNxt, p.rcvWnd, qe.payload)
				qe.lastSent = now
				qe.rto *= 2
			}

			e = next
		}
	}
}
