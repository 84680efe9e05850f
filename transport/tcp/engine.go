// Package tcp implements the TCP endpoint engine: the PCB table, the RFC
// 793 §3.9 SEGMENT ARRIVES state machine, the retransmission scheduler, and
// the blocking open/close/send/receive user-command surface
package tcp

import (
	"log"
	"sync"
	"time"

	"github.com/YaoZengzeng/yutcp/header"
	"github.com/YaoZengzeng/yutcp/ipv4"
	"github.com/YaoZengzeng/yutcp/seqnum"
	"github.com/YaoZengzeng/yutcp/sleep"
	"github.com/YaoZengzeng/yutcp/tmutex"
	"github.com/YaoZengzeng/yutcp/types"
)

// interrupter is a one-shot broadcast cancellation signal: closing its
// channel wakes every goroutine currently selecting on c(), the way a
// process-wide SIGINT wakes every task blocked in the original's
// sched_task_sleep. signal is idempotent so a handler that fires more than
// once (a second Ctrl-C) never panics on a double close
type interrupter struct {
	mu sync.Mutex
	ch chan struct{}
}

func newInterrupter() *interrupter {
	return &interrupter{ch: make(chan struct{})}
}

func (i *interrupter) signal() {
	i.mu.Lock()
	defer i.mu.Unlock()
	select {
	case <-i.ch:
	default:
		close(i.ch)
	}
}

func (i *interrupter) c() <-chan struct{} {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.ch
}

// Engine is the TCP endpoint engine. One Engine owns the entire PCB table
// and the single engine-wide mutex spec.md §5 requires
type Engine struct {
	mu      tmutex.Mutex
	table   *table
	ipStack *ipv4.Stack
	intr    *interrupter
}

// NewEngine creates an Engine bound to the given IP layer, registers its
// inbound upcall, and starts the 100ms retransmission timer. This is
// spec.md §4.G's "Timer & Dispatch"
func NewEngine(ipStack *ipv4.Stack) *Engine {
	eng := &Engine{
		table:   newTable(),
		ipStack: ipStack,
		intr:    newInterrupter(),
	}
	eng.mu.Init()

	ipStack.RegisterTransportProtocol(header.TCPProtocolNumber, eng.deliver)
	ipStack.RegisterTimer(tickInterval, eng.tickNow)

	return eng
}

// Interrupt delivers spec.md §5/§9's signal-driven cancellation to every
// command currently parked in suspend: each one wakes, observes the
// interruption, and returns ErrInterrupted (EINTR), surfacing any partial
// progress already made. cmd/yutcpd calls this from its SIGINT/SIGTERM
// handler. Interrupt is idempotent and safe to call more than once
func (eng *Engine) Interrupt() {
	eng.intr.signal()
}

func (eng *Engine) tickNow() {
	eng.tick(time.Now())
}

// deliver is the inbound upcall registered with the IP layer: decode,
// locate a PCB, and run the state machine
func (eng *Engine) deliver(src, dst types.Address, payload []byte, nic types.NicId) {
	tcpHdr, seg, err := decodeSegment(payload, src, dst)
	if err != nil {
		log.Printf("tcp: dropped malformed segment from %v: %v", src, err)
		return
	}

	local := types.FullAddress{Addr: dst, Port: tcpHdr.DestinationPort()}
	remote := types.FullAddress{Addr: src, Port: tcpHdr.SourcePort()}

	eng.mu.Lock()
	defer eng.mu.Unlock()

	eng.segmentArrives(local, remote, nic, seg)
}

// emit builds and sends a TCP segment for p's connection, enqueueing a
// retransmission entry when it carries SYN, FIN, or payload bytes, per
// spec.md §4.D "Enqueue"
func (eng *Engine) emit(p *pcb, flags uint8, seq, ack seqnum.Value, wnd seqnum.Size, payload []byte) {
	eng.rawEmit(p, flags, seq, ack, wnd, payload)

	if flags&(header.TCPFlagSyn|header.TCPFlagFin) != 0 || len(payload) > 0 {
		enqueue(p, seq, flags, payload, time.Now())
	}
}

// rawEmit builds and sends a TCP segment for p's connection without
// touching the retransmission queue. It is the split the original
// implementation draws between tcp_output_segment (raw emit) and
// tcp_output (emit+enqueue): tick's retransmit path re-sends an existing
// queueEntry in place and must not push a duplicate onto the queue
func (eng *Engine) rawEmit(p *pcb, flags uint8, seq, ack seqnum.Value, wnd seqnum.Size, payload []byte) {
	b := buildSegment(p.local, p.remote, seq, ack, flags, wnd, payload)
	if err := eng.ipStack.Output(header.TCPProtocolNumber, b, p.local.Addr, p.remote.Addr); err != nil {
		log.Printf("tcp: pcb %d output error: %v", p.desc, err)
	}
}

// sendRST emits a bare RST (optionally ACK) segment not tied to any live
// PCB, used by the unknown-connection and rejected-segment paths of
// spec.md §4.C
func (eng *Engine) sendRST(local, remote types.FullAddress, seq, ack seqnum.Value, flags uint8) {
	b := buildSegment(local, remote, seq, ack, flags, 0, nil)
	if err := eng.ipStack.Output(header.TCPProtocolNumber, b, local.Addr, remote.Addr); err != nil {
		log.Printf("tcp: reset output error: %v", err)
	}
}

// suspendWakerID / suspendInterruptID identify which waker woke a suspend
// call: the PCB's own, or the engine-wide interrupt signal
const (
	suspendWakerID = iota
	suspendInterruptID
)

// suspend atomically releases eng.mu and parks the calling goroutine until
// either p.waker is asserted or the engine is interrupted, reacquiring
// eng.mu before returning. It is spec.md §5's "atomic suspend-and-release
// primitive": the Waker's assertion state outliving the Sleeper
// registration is what makes the release-then-park window race-free.
// The returned bool reports whether the wake was due to interruption
// (spec.md §9's signal-driven cancellation), in which case the caller must
// surface ErrInterrupted
func (eng *Engine) suspend(p *pcb) bool {
	var s sleep.Sleeper
	s.AddWaker(&p.waker, suspendWakerID)

	var interruptWaker sleep.Waker
	s.AddWaker(&interruptWaker, suspendInterruptID)

	done := make(chan struct{})
	go func() {
		select {
		case <-eng.intr.c():
			interruptWaker.Assert()
		case <-done:
		}
	}()

	eng.mu.Unlock()
	id, _ := s.Fetch(true)
	s.Done()
	close(done)
	eng.mu.Lock()

	return id == suspendInterruptID
}
