package tcp_test

import (
	"testing"
	"time"

	"github.com/YaoZengzeng/yutcp/checker"
	"github.com/YaoZengzeng/yutcp/header"
	"github.com/YaoZengzeng/yutcp/seqnum"
	"github.com/YaoZengzeng/yutcp/transport/tcp/enginetest"
	"github.com/YaoZengzeng/yutcp/types"
)

type openResult struct {
	desc int
	err  error
}

// S1: passive three-way handshake
func TestPassiveHandshake(t *testing.T) {
	c := enginetest.New(t)

	const listenPort = 80
	const peerPort = 9000

	results := make(chan openResult, 1)
	go func() {
		desc, err := c.Eng.Open(types.FullAddress{Addr: types.AnyAddress, Port: listenPort}, types.FullAddress{}, false)
		results <- openResult{desc, err}
	}()
	// Give the listener a moment to register before the peer's SYN arrives
	time.Sleep(10 * time.Millisecond)

	peerISS := seqnum.Value(1000)
	c.SendSegment(listenPort, peerPort, peerISS, 0, header.TCPFlagSyn, 4096, nil)

	tcpHdr := c.RecvSegment(time.Second)
	if tcpHdr.Flags() != header.TCPFlagSyn|header.TCPFlagAck {
		t.Fatalf("got flags %s, want SYN|ACK", header.FlagString(tcpHdr.Flags()))
	}
	if got, want := tcpHdr.AckNumber(), uint32(peerISS.Add(1)); got != want {
		t.Fatalf("ack = %d, want %d", got, want)
	}
	iss := seqnum.Value(tcpHdr.SequenceNumber())

	c.SendSegment(listenPort, peerPort, peerISS.Add(1), iss.Add(1), header.TCPFlagAck, 4096, nil)

	select {
	case r := <-results:
		if r.err != nil {
			t.Fatalf("Open returned error: %v", r.err)
		}
		if r.desc < 0 {
			t.Fatalf("Open returned descriptor %d, want >= 0", r.desc)
		}
	case <-time.After(time.Second):
		t.Fatal("Open never returned")
	}
}

// S2: active open, peer refuses
func TestActiveOpenRefused(t *testing.T) {
	c := enginetest.New(t)

	results := make(chan openResult, 1)
	go func() {
		desc, err := c.Eng.Open(types.FullAddress{Addr: types.AnyAddress}, types.FullAddress{Addr: enginetest.RemoteAddr, Port: 80}, true)
		results <- openResult{desc, err}
	}()

	tcpHdr := c.RecvSegment(time.Second)
	if tcpHdr.Flags() != header.TCPFlagSyn {
		t.Fatalf("got flags %s, want SYN", header.FlagString(tcpHdr.Flags()))
	}
	iss := seqnum.Value(tcpHdr.SequenceNumber())
	localPort := tcpHdr.SourcePort()

	c.SendSegment(localPort, 80, 0, iss.Add(1), header.TCPFlagRst|header.TCPFlagAck, 0, nil)

	select {
	case r := <-results:
		if r.err == nil {
			t.Fatalf("Open succeeded, want ErrConnectionRefused")
		}
		if r.desc != -1 {
			t.Fatalf("Open returned descriptor %d, want -1", r.desc)
		}
	case <-time.After(time.Second):
		t.Fatal("Open never returned")
	}
}

// establish drives a passive handshake to completion and returns the
// resulting descriptor, the peer's next expected seq/ack state, and the
// connection's iss
func establish(t *testing.T, c *enginetest.Context, listenPort, peerPort uint16) (desc int, iss, peerSeq seqnum.Value) {
	t.Helper()

	results := make(chan openResult, 1)
	go func() {
		d, err := c.Eng.Open(types.FullAddress{Addr: types.AnyAddress, Port: listenPort}, types.FullAddress{}, false)
		results <- openResult{d, err}
	}()
	time.Sleep(10 * time.Millisecond)

	peerISS := seqnum.Value(1000)
	c.SendSegment(listenPort, peerPort, peerISS, 0, header.TCPFlagSyn, 4096, nil)

	tcpHdr := c.RecvSegment(time.Second)
	localISS := seqnum.Value(tcpHdr.SequenceNumber())

	c.SendSegment(listenPort, peerPort, peerISS.Add(1), localISS.Add(1), header.TCPFlagAck, 4096, nil)

	select {
	case r := <-results:
		if r.err != nil {
			t.Fatalf("Open: %v", r.err)
		}
		return r.desc, localISS, peerISS.Add(1)
	case <-time.After(time.Second):
		t.Fatal("Open never returned")
	}
	return
}

// S3: data echo
func TestDataEcho(t *testing.T) {
	c := enginetest.New(t)
	const listenPort, peerPort = 80, 9000

	desc, iss, _ := establish(t, c, listenPort, peerPort)

	sent := make(chan int, 1)
	go func() {
		n, err := c.Eng.Send(desc, []byte("hello"))
		if err != nil {
			t.Errorf("Send: %v", err)
		}
		sent <- n
	}()

	checker.IPv4(t, []byte(c.RecvFrame(time.Second)),
		checker.SrcAddr(enginetest.LocalAddr),
		checker.DstAddr(enginetest.RemoteAddr),
		checker.TCP(
			checker.SrcPort(listenPort),
			checker.DstPort(peerPort),
			checker.SeqNum(uint32(iss.Add(1))),
			checker.TCPFlags(header.TCPFlagAck|header.TCPFlagPsh),
		),
	)

	select {
	case n := <-sent:
		if n != 5 {
			t.Fatalf("Send returned %d, want 5", n)
		}
	case <-time.After(time.Second):
		t.Fatal("Send never returned")
	}
}

// S5: out-of-window data
func TestOutOfWindowData(t *testing.T) {
	c := enginetest.New(t)
	const listenPort, peerPort = 80, 9000

	desc, _, peerNext := establish(t, c, listenPort, peerPort)
	_ = desc

	// Send 10 bytes far outside the receive window (which defaults to the
	// full 65535-byte buffer on a freshly established connection)
	c.SendSegment(listenPort, peerPort, peerNext.Add(100000), seqnum.Value(0), header.TCPFlagAck, 4096, make([]byte, 10))

	tcpHdr := c.RecvSegment(time.Second)
	if tcpHdr.Flags() != header.TCPFlagAck {
		t.Fatalf("got flags %s, want bare ACK", header.FlagString(tcpHdr.Flags()))
	}
	if got, want := tcpHdr.AckNumber(), uint32(peerNext); got != want {
		t.Fatalf("ack = %d, want %d (receive buffer must be untouched)", got, want)
	}
}

// Signal-driven cancellation (spec.md §5/§9): Interrupt wakes a blocked
// Receive with ErrInterrupted rather than leaving it parked forever
func TestInterruptCancelsBlockedReceive(t *testing.T) {
	c := enginetest.New(t)
	const listenPort, peerPort = 80, 9000

	desc, _, _ := establish(t, c, listenPort, peerPort)

	results := make(chan error, 1)
	go func() {
		_, err := c.Eng.Receive(desc, make([]byte, 16))
		results <- err
	}()

	// Give Receive a moment to block on the empty receive buffer before
	// interrupting it
	time.Sleep(10 * time.Millisecond)
	c.Eng.Interrupt()

	select {
	case err := <-results:
		if err != types.ErrInterrupted {
			t.Fatalf("Receive returned %v, want ErrInterrupted", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Receive never returned after Interrupt")
	}
}

// S6: unknown connection
func TestUnknownConnectionReset(t *testing.T) {
	c := enginetest.New(t)

	const lport, rport = 12345, 9000
	c.SendSegment(lport, rport, seqnum.Value(500), seqnum.Value(900), header.TCPFlagAck, 4096, nil)

	tcpHdr := c.RecvSegment(time.Second)
	if tcpHdr.Flags() != header.TCPFlagRst {
		t.Fatalf("got flags %s, want RST", header.FlagString(tcpHdr.Flags()))
	}
	if got, want := tcpHdr.SequenceNumber(), uint32(900); got != want {
		t.Fatalf("seq = %d, want %d (the unmatched segment's ack)", got, want)
	}
}
