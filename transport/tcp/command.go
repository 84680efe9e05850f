package tcp

import (
	"github.com/YaoZengzeng/yutcp/header"
	"github.com/YaoZengzeng/yutcp/seqnum"
	"github.com/YaoZengzeng/yutcp/types"
)

// Open implements spec.md §4.E open(local, remote, active). It takes the
// engine mutex, performs the handshake-initiating work, and suspends the
// caller on the PCB's waker until the connection resolves
func (eng *Engine) Open(local, remote types.FullAddress, active bool) (int, error) {
	eng.mu.Lock()
	defer eng.mu.Unlock()

	p, err := eng.table.alloc()
	if err != nil {
		return -1, err
	}

	if active {
		if local.Addr == types.AnyAddress || local.Addr == "" {
			nicID, addr, err := eng.ipStack.RouteGetIface(remote.Addr)
			if err != nil {
				eng.table.release(p)
				return -1, err
			}
			local.Addr = addr
			p.nic = nicID
		}

		if local.Port == 0 {
			found := false
			for port := dynamicPortMin; port <= dynamicPortMax; port++ {
				cand := types.FullAddress{Addr: local.Addr, Port: uint16(port)}
				if !eng.table.collides(cand, remote) {
					local.Port = uint16(port)
					found = true
					break
				}
			}
			if !found {
				eng.table.release(p)
				return -1, types.ErrNoPortAvailable
			}
		} else if eng.table.collides(local, remote) {
			eng.table.release(p)
			return -1, types.ErrPortInUse
		}

		p.local = local
		p.remote = remote
		p.rcvWnd = recvBufSize
		p.iss = genISS()
		p.sndUna = p.iss
		p.sndNxt = p.iss.Add(1)
		p.state = StateSynSent

		eng.emit(p, header.TCPFlagSyn, p.iss, 0, p.rcvWnd, nil)
	} else {
		p.local = local
		p.remote = types.FullAddress{Addr: types.AnyAddress, Port: 0}
		p.rcvWnd = recvBufSize
		p.state = StateListen
	}

	for {
		if eng.suspend(p) {
			p.state = StateClosed
			eng.table.release(p)
			return -1, types.ErrInterrupted
		}

		switch p.state {
		case StateSynReceived:
			// passive branch re-entering the suspension
			continue
		case StateEstablished:
			// Re-resolve the owning nic unconditionally at open-completion,
			// matching original_source/tcp.c's tcp_cmd_open: an active open
			// with an explicit (non-wildcard) local address never had its
			// nic set at SYN time, and the route could in principle have
			// changed since
			nicID, _, err := eng.ipStack.RouteGetIface(p.remote.Addr)
			if err != nil {
				eng.table.release(p)
				return -1, err
			}
			p.nic = nicID

			mtu, err := eng.ipStack.NicMTU(p.nic)
			if err != nil {
				eng.table.release(p)
				return -1, err
			}
			p.mss = uint16(int(mtu) - (ipHeaderMinSize + tcpHeaderMinSize))
			return p.desc, nil
		default:
			eng.table.release(p)
			return -1, types.ErrConnectionRefused
		}
	}
}

// Close implements spec.md §4.E close(desc): emit RST, force CLOSED,
// release the PCB. Graceful FIN-based close is a documented gap (spec.md §9
// open question iii)
func (eng *Engine) Close(desc int) error {
	eng.mu.Lock()
	defer eng.mu.Unlock()

	p, err := eng.table.get(desc)
	if err != nil {
		return err
	}

	eng.emit(p, header.TCPFlagRst, p.sndNxt, 0, 0, nil)
	p.state = StateClosed
	eng.table.release(p)
	return nil
}

// Send implements spec.md §4.E send(desc, bytes): only valid in
// ESTABLISHED, loops emitting up to min(mss, remaining, cap) bytes per
// segment, suspending while the usable window is zero
func (eng *Engine) Send(desc int, b []byte) (int, error) {
	eng.mu.Lock()
	defer eng.mu.Unlock()

	p, err := eng.table.get(desc)
	if err != nil {
		return -1, err
	}
	if p.state != StateEstablished {
		return -1, types.ErrInvalidEndpointState
	}

	sent := 0
	for sent < len(b) {
		outstanding := p.sndUna.Size(p.sndNxt)
		var usable seqnum.Size
		if outstanding < p.sndWnd {
			usable = p.sndWnd - outstanding
		}

		if usable == 0 {
			if eng.suspend(p) {
				if sent > 0 {
					return sent, nil
				}
				return -1, types.ErrInterrupted
			}
			if p.state != StateEstablished {
				eng.table.release(p)
				if sent > 0 {
					return sent, nil
				}
				return -1, types.ErrAborted
			}
			continue
		}

		n := len(b) - sent
		if p.mss > 0 && n > int(p.mss) {
			n = int(p.mss)
		}
		if n > int(usable) {
			n = int(usable)
		}

		chunk := b[sent : sent+n]
		eng.emit(p, header.TCPFlagAck|header.TCPFlagPsh, p.sndNxt, p.rcvNxt, p.rcvWnd, chunk)
		p.sndNxt = p.sndNxt.Add(seqnum.Size(n))
		sent += n
	}

	return sent, nil
}

// Receive implements spec.md §4.E receive(desc, buf, size): only valid in
// ESTABLISHED, suspends while the receive buffer is empty, then copies and
// slides down at most len(buf) bytes
func (eng *Engine) Receive(desc int, b []byte) (int, error) {
	eng.mu.Lock()
	defer eng.mu.Unlock()

	p, err := eng.table.get(desc)
	if err != nil {
		return -1, err
	}
	if p.state != StateEstablished {
		return -1, types.ErrInvalidEndpointState
	}

	for p.rcvWnd == recvBufSize {
		if eng.suspend(p) {
			return -1, types.ErrInterrupted
		}
		if p.state != StateEstablished {
			eng.table.release(p)
			return -1, types.ErrAborted
		}
	}

	occupancy := recvBufSize - int(p.rcvWnd)
	n := len(b)
	if n > occupancy {
		n = occupancy
	}

	copy(b, p.buf[:n])
	copy(p.buf[:occupancy-n], p.buf[n:occupancy])
	p.rcvWnd += seqnum.Size(n)

	return n, nil
}
