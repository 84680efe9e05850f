// Package enginetest wires a tcp.Engine to an in-memory link/channel
// endpoint through an ipv4.Stack, and provides helpers to observe outbound
// segments and inject inbound ones, in the style of the teacher's
// transport/tcp/testing/context package
package enginetest

import (
	"testing"
	"time"

	"github.com/YaoZengzeng/yutcp/checksum"
	"github.com/YaoZengzeng/yutcp/header"
	"github.com/YaoZengzeng/yutcp/ipv4"
	"github.com/YaoZengzeng/yutcp/link/channel"
	"github.com/YaoZengzeng/yutcp/seqnum"
	"github.com/YaoZengzeng/yutcp/transport/tcp"
	"github.com/YaoZengzeng/yutcp/types"
)

const (
	// NicID is the fixed nic id every context is created with
	NicID types.NicId = 1

	// MTU is the fixed link MTU every context is created with
	MTU = 1500
)

var (
	// LocalAddr and RemoteAddr are the fixed endpoints used throughout the
	// engine test suite: LocalAddr is assigned to the nic under test,
	// RemoteAddr is the address the simulated peer sends from
	LocalAddr  = types.Address("\x0a\x00\x00\x01")
	RemoteAddr = types.Address("\x0a\x00\x00\x02")
)

// Context bundles an Engine with the plumbing needed to drive it in tests
type Context struct {
	T   *testing.T
	Eng *tcp.Engine
	EP  *channel.Endpoint
}

// New creates an Engine wired to a channel endpoint on NicID, with LocalAddr
// assigned and a default route out that nic
func New(t *testing.T) *Context {
	t.Helper()

	ep := channel.New(8, MTU)
	stack := ipv4.NewStack()
	if err := stack.CreateNic(NicID, ep); err != nil {
		t.Fatalf("enginetest: CreateNic: %v", err)
	}
	if err := stack.AddAddress(NicID, LocalAddr); err != nil {
		t.Fatalf("enginetest: AddAddress: %v", err)
	}
	stack.SetRouteTable([]types.Route{
		{Destination: types.Address("\x00\x00\x00\x00"), Mask: types.Address("\x00\x00\x00\x00"), Nic: NicID},
	})

	return &Context{
		T:   t,
		Eng: tcp.NewEngine(stack),
		EP:  ep,
	}
}

// RecvFrame waits for the next outbound IPv4 frame written through the
// endpoint, failing the test if none arrives within the timeout. Returned
// bytes are suitable for checker.IPv4
func (c *Context) RecvFrame(timeout time.Duration) []byte {
	c.T.Helper()
	select {
	case frame := <-c.EP.C:
		return frame
	case <-time.After(timeout):
		c.T.Fatalf("enginetest: timed out waiting for an outbound segment")
		return nil
	}
}

// RecvSegment is RecvFrame, with the returned frame's TCP header and
// payload already sliced out
func (c *Context) RecvSegment(timeout time.Duration) header.TCP {
	c.T.Helper()
	frame := c.RecvFrame(timeout)
	ip := header.IPv4(frame)
	if !ip.IsValid(len(frame)) {
		c.T.Fatalf("enginetest: outbound frame failed IsValid")
	}
	return header.TCP(ip.Payload())
}

// ExpectNoSegment fails the test if a segment is emitted within the given
// window
func (c *Context) ExpectNoSegment(window time.Duration) {
	c.T.Helper()
	select {
	case <-c.EP.C:
		c.T.Fatalf("enginetest: unexpected outbound segment")
	case <-time.After(window):
	}
}

// SendSegment builds and injects an inbound segment from RemoteAddr:rport
// to LocalAddr:lport, as if it had just arrived on the wire
func (c *Context) SendSegment(lport, rport uint16, seq, ack seqnum.Value, flags uint8, wnd uint16, payload []byte) {
	tcpLen := header.TCPMinimumSize + len(payload)
	b := make([]byte, tcpLen)
	seg := header.TCP(b)
	seg.Encode(&header.TCPFields{
		SrcPort:    rport,
		DstPort:    lport,
		SeqNum:     uint32(seq),
		AckNum:     uint32(ack),
		Flags:      flags,
		WindowSize: wnd,
	})
	copy(b[header.TCPMinimumSize:], payload)

	xsum := header.CalculatePseudoHeaderChecksum(RemoteAddr, LocalAddr, uint16(tcpLen))
	xsum = checksum.Checksum(b, xsum)
	seg.SetChecksum(^xsum)

	total := header.IPv4MinimumSize + tcpLen
	frame := make([]byte, total)
	ip := header.IPv4(frame)
	ip.Encode(&header.IPv4Fields{
		IHL:         header.IPv4MinimumSize,
		TotalLength: uint16(total),
		TTL:         64,
		Protocol:    uint8(header.TCPProtocolNumber),
		SrcAddr:     RemoteAddr,
		DstAddr:     LocalAddr,
	})
	copy(ip.Payload(), b)
	ip.SetChecksum(^ip.CalculateChecksum())

	c.EP.Inject(frame)
}
