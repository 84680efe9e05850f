package tcp

import (
	"testing"
	"time"

	"github.com/YaoZengzeng/yutcp/header"
	"github.com/YaoZengzeng/yutcp/ipv4"
	"github.com/YaoZengzeng/yutcp/link/channel"
	"github.com/YaoZengzeng/yutcp/seqnum"
	"github.com/YaoZengzeng/yutcp/types"
)

const testNic types.NicId = 1

var (
	testLocal  = types.Address("\x0a\x00\x00\x01")
	testRemote = types.Address("\x0a\x00\x00\x02")
)

func newTestEngine(t *testing.T) (*Engine, *channel.Endpoint) {
	t.Helper()
	ep := channel.New(8, 1500)
	stack := ipv4.NewStack()
	if err := stack.CreateNic(testNic, ep); err != nil {
		t.Fatalf("CreateNic: %v", err)
	}
	if err := stack.AddAddress(testNic, testLocal); err != nil {
		t.Fatalf("AddAddress: %v", err)
	}
	stack.SetRouteTable([]types.Route{
		{Destination: types.Address("\x00\x00\x00\x00"), Mask: types.Address("\x00\x00\x00\x00"), Nic: testNic},
	})

	eng := &Engine{table: newTable()}
	eng.mu.Init()
	eng.ipStack = stack
	return eng, ep
}

func establishedPCB(eng *Engine) *pcb {
	p, _ := eng.table.alloc()
	p.local = types.FullAddress{Addr: testLocal, Port: 80}
	p.remote = types.FullAddress{Addr: testRemote, Port: 9000}
	p.nic = testNic
	p.state = StateEstablished
	p.iss = seqnum.Value(1000)
	p.sndUna = p.iss.Add(1)
	p.sndNxt = p.sndUna
	p.sndWnd = 65535
	p.rcvWnd = recvBufSize
	return p
}

func TestEnqueueCleanupInvariant(t *testing.T) {
	eng, _ := newTestEngine(t)
	p := establishedPCB(eng)

	now := time.Unix(0, 0)
	enqueue(p, p.sndNxt, header.TCPFlagAck|header.TCPFlagPsh, []byte("hello"), now)
	p.sndNxt = p.sndNxt.Add(5)

	// Partial ack covering only 3 bytes must not clear the entry
	p.sndUna = p.sndUna.Add(3)
	cleanup(p)
	if p.queue.Empty() {
		t.Fatalf("cleanup removed an entry not fully acknowledged")
	}

	// Full ack must clear it, satisfying invariant 2: every remaining entry
	// has snd.una < entry.seq + entry.consume
	p.sndUna = p.sndUna.Add(2)
	cleanup(p)
	if !p.queue.Empty() {
		t.Fatalf("cleanup left a fully acknowledged entry in the queue")
	}
}

func TestTickRetransmitsWithBackoff(t *testing.T) {
	eng, ep := newTestEngine(t)
	p := establishedPCB(eng)

	start := time.Unix(1000, 0)
	enqueue(p, p.sndNxt, header.TCPFlagAck|header.TCPFlagPsh, []byte("X"), start)
	p.sndNxt = p.sndNxt.Add(1)

	qe := p.queue.Front().(*queueEntry)
	if qe.rto != initialRTO {
		t.Fatalf("initial rto = %v, want %v", qe.rto, initialRTO)
	}

	// Before the rto elapses, tick must not re-emit
	eng.tick(start.Add(50 * time.Millisecond))
	select {
	case <-ep.C:
		t.Fatalf("tick re-emitted before the rto elapsed")
	default:
	}

	// Past the rto, tick re-emits and doubles the backoff
	eng.tick(start.Add(initialRTO + time.Millisecond))
	select {
	case <-ep.C:
	default:
		t.Fatalf("tick did not re-emit past the rto")
	}
	if qe.rto != initialRTO*2 {
		t.Fatalf("rto after one retransmit = %v, want %v", qe.rto, initialRTO*2)
	}

	// A retransmit must mutate the existing entry in place, not push a
	// duplicate onto the queue
	n := 0
	for e := p.queue.Front(); e != nil; e = e.Next() {
		n++
	}
	if n != 1 {
		t.Fatalf("queue length after one retransmit = %d, want 1", n)
	}
}

func TestTickForcesClosedPastDeadline(t *testing.T) {
	eng, _ := newTestEngine(t)
	p := establishedPCB(eng)

	start := time.Unix(2000, 0)
	enqueue(p, p.sndNxt, header.TCPFlagAck|header.TCPFlagPsh, []byte("X"), start)
	p.sndNxt = p.sndNxt.Add(1)

	eng.tick(start.Add(retransDeadline + time.Second))

	if p.state != StateClosed {
		t.Fatalf("pcb state = %v, want CLOSED after the retransmission deadline", p.state)
	}
	if !p.waker.IsAsserted() {
		t.Fatalf("expected the waker to be asserted after a forced close")
	}
}
