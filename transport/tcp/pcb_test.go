package tcp

import (
	"testing"

	"github.com/YaoZengzeng/yutcp/sleep"
	"github.com/YaoZengzeng/yutcp/types"
)

func TestTableAllocReleaseCycle(t *testing.T) {
	tb := newTable()

	p, err := tb.alloc()
	if err != nil {
		t.Fatalf("alloc: %v", err)
	}
	if p.state != StateClosed {
		t.Fatalf("newly allocated pcb state = %v, want CLOSED", p.state)
	}

	desc := p.desc
	tb.release(p)

	if got, err := tb.get(desc); err == nil {
		t.Fatalf("get after release returned %v, want ErrBadDescriptor", got)
	}
}

func TestTableAllocExhaustion(t *testing.T) {
	tb := newTable()
	for i := 0; i < pcbTableSize; i++ {
		if _, err := tb.alloc(); err != nil {
			t.Fatalf("alloc %d: %v", i, err)
		}
	}
	if _, err := tb.alloc(); err != types.ErrNoFreePCB {
		t.Fatalf("got %v, want ErrNoFreePCB", err)
	}
}

func TestTableReleaseWakesRegisteredListener(t *testing.T) {
	tb := newTable()
	p, _ := tb.alloc()

	// Simulate a goroutine parked in eng.suspend(p): it has registered its
	// Sleeper with p.waker but no wake has fired yet
	var s sleep.Sleeper
	s.AddWaker(&p.waker, 0)

	tb.release(p)

	// release must not have freed the slot: a listener is still registered
	// and is expected to observe the pcb and release it again itself
	if p.state == StateNone {
		t.Fatalf("release freed a pcb with a registered listener")
	}
	if !p.waker.IsAsserted() {
		t.Fatalf("release did not wake the registered listener")
	}
}

func TestTableReleaseFreesPCBWithNoListener(t *testing.T) {
	tb := newTable()
	p, _ := tb.alloc()
	desc := p.desc

	// No Sleeper has ever registered with p.waker: nothing is parked on it,
	// so release must free the slot outright
	tb.release(p)

	if _, err := tb.get(desc); err == nil {
		t.Fatalf("release kept a pcb alive with no registered listener")
	}
}

func TestSelectPCBPrefersNonListen(t *testing.T) {
	tb := newTable()

	listener, _ := tb.alloc()
	listener.state = StateListen
	listener.local = types.FullAddress{Addr: types.AnyAddress, Port: 80}
	listener.remote = types.FullAddress{Addr: types.AnyAddress, Port: 0}

	established, _ := tb.alloc()
	established.state = StateEstablished
	established.local = types.FullAddress{Addr: types.Address("\x0a\x00\x00\x01"), Port: 80}
	established.remote = types.FullAddress{Addr: types.Address("\x0a\x00\x00\x02"), Port: 9000}

	got := tb.selectPCB(established.local, established.remote)
	if got != established {
		t.Fatalf("selectPCB returned the listener instead of the exact match")
	}

	got = tb.selectPCB(types.FullAddress{Addr: types.Address("\x0a\x00\x00\x01"), Port: 80},
		types.FullAddress{Addr: types.Address("\x0a\x00\x00\x03"), Port: 12345})
	if got != listener {
		t.Fatalf("selectPCB did not fall back to the listener for an unmatched remote")
	}
}

func TestCollides(t *testing.T) {
	tb := newTable()
	p, _ := tb.alloc()
	local := types.FullAddress{Addr: types.Address("\x0a\x00\x00\x01"), Port: 80}
	remote := types.FullAddress{Addr: types.Address("\x0a\x00\x00\x02"), Port: 9000}
	p.local = local
	p.remote = remote

	if !tb.collides(local, remote) {
		t.Fatalf("expected a collision against the allocated pcb's exact pair")
	}
	if tb.collides(local, types.FullAddress{Addr: types.Address("\x0a\x00\x00\x03"), Port: 1}) {
		t.Fatalf("did not expect a collision against a different remote")
	}
}
