// Package tundev implements a link layer endpoint backed by a Linux TUN
// device, for reading and writing raw IPv4 datagrams
package tundev

import (
	"log"
	"syscall"
	"unsafe"

	"github.com/YaoZengzeng/yutcp/header"
)

// blockingPoll parks in a ppoll(2) syscall until one of the nfds pollfd
// entries at fds becomes ready, or until timeout milliseconds have passed;
// a negative timeout waits indefinitely
func blockingPoll(fds unsafe.Pointer, nfds int, timeout int64) (n int, err syscall.Errno) {
	var ts *syscall.Timespec
	if timeout >= 0 {
		t := syscall.NsecToTimespec(timeout * 1e6)
		ts = &t
	}
	r, _, e := syscall.Syscall6(syscall.SYS_PPOLL, uintptr(fds), uintptr(nfds), uintptr(unsafe.Pointer(ts)), 0, 0, 0)
	return int(r), e
}

// readBufSize is the size of the flat buffer used to read one frame at a
// time; it comfortably exceeds any MTU this module expects to see on a TUN
// device
const readBufSize = 65536

// Endpoint is a link layer endpoint reading and writing a TUN device's file
// descriptor. It satisfies ipv4.LinkEndpoint structurally
type Endpoint struct {
	// fd is the file descriptor used to send and receive packets
	fd int

	// mtu (maximum transmission unit) is the maximum size of a packet
	mtu uint32
}

// MTU returns the value discovered during construction
func (e *Endpoint) MTU() uint32 {
	return e.mtu
}

// WritePacket writes an outbound datagram to the file descriptor. If it is
// not writable right now, the frame is dropped
func (e *Endpoint) WritePacket(b []byte) error {
	return NonBlockingWrite(e.fd, b)
}

// Attach launches the goroutine that reads frames from the file descriptor
// and passes each one to dispatch
func (e *Endpoint) Attach(dispatch func(b []byte)) {
	go e.dispatchLoop(dispatch)
}

func (e *Endpoint) dispatchLoop(dispatch func(b []byte)) {
	buf := make([]byte, readBufSize)
	for {
		n, err := blockingRead(e.fd, buf)
		if err != nil {
			log.Printf("tundev: read error: %v", err)
			return
		}
		if n <= 0 {
			continue
		}

		if header.IPVersion(buf[:n]) != header.IPv4Version {
			log.Printf("tundev: unknown network protocol, dropped")
			continue
		}

		dispatch(buf[:n])
	}
}

// blockingRead reads from a file descriptor that is set up as non-blocking,
// parking in a poll() syscall until the file descriptor becomes readable
func blockingRead(fd int, buf []byte) (int, error) {
	for {
		n, _, e := syscall.RawSyscall(syscall.SYS_READ, uintptr(fd), uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
		if e == 0 {
			return int(n), nil
		}

		event := struct {
			fd      uint32
			events  int16
			revents int16
		}{
			fd:     uint32(fd),
			events: 1, // POLLIN
		}

		_, e = blockingPoll(unsafe.Pointer(&event), 1, -1)
		if e != 0 && e != syscall.EINTR {
			return 0, TranslateErrno(e)
		}
	}
}

// NonBlockingWrite writes the given buffer to a file descriptor. It fails if
// partial data is written
func NonBlockingWrite(fd int, buf []byte) error {
	var ptr unsafe.Pointer
	if len(buf) > 0 {
		ptr = unsafe.Pointer(&buf[0])
	}

	_, _, e := syscall.RawSyscall(syscall.SYS_WRITE, uintptr(fd), uintptr(ptr), uintptr(len(buf)))
	if e != 0 {
		return TranslateErrno(e)
	}

	return nil
}

// getmtu determines the MTU of a network interface device
func getmtu(name string) (uint32, error) {
	fd, err := syscall.Socket(syscall.AF_INET, syscall.SOCK_DGRAM, 0)
	if err != nil {
		return 0, err
	}
	defer syscall.Close(fd)

	var ifreq struct {
		name [16]byte
		mtu  int32
		_    [20]byte
	}

	copy(ifreq.name[:], name)
	_, _, errno := syscall.Syscall(syscall.SYS_IOCTL, uintptr(fd), syscall.SIOCGIFMTU, uintptr(unsafe.Pointer(&ifreq)))
	if errno != 0 {
		return 0, errno
	}

	return uint32(ifreq.mtu), nil
}

// open opens the specified tun device and returns its file descriptor
func open(name string) (int, error) {
	fd, err := syscall.Open("/dev/net/tun", syscall.O_RDWR, 0)
	if err != nil {
		return -1, err
	}

	var ifreq struct {
		name  [16]byte
		flags uint16
		_     [22]byte
	}

	copy(ifreq.name[:], name)
	ifreq.flags = syscall.IFF_TUN | syscall.IFF_NO_PI
	_, _, errno := syscall.Syscall(syscall.SYS_IOCTL, uintptr(fd), syscall.TUNSETIFF, uintptr(unsafe.Pointer(&ifreq)))
	if errno != 0 {
		syscall.Close(fd)
		return -1, errno
	}

	return fd, nil
}

// New opens the named tun device and returns a new Endpoint bound to it
func New(tunName string) (*Endpoint, error) {
	mtu, err := getmtu(tunName)
	if err != nil {
		return nil, err
	}

	fd, err := open(tunName)
	if err != nil {
		return nil, err
	}

	if err := syscall.SetNonblock(fd, true); err != nil {
		return nil, err
	}

	return &Endpoint{fd: fd, mtu: mtu}, nil
}
