// Command yutcpd wires a TUN device to the TCP engine and exposes a small
// interactive command loop (open/send/receive/close) over stdin, in the
// style of the teacher's original sample wiring
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/YaoZengzeng/yutcp/ipv4"
	"github.com/YaoZengzeng/yutcp/link/tundev"
	"github.com/YaoZengzeng/yutcp/transport/icmp"
	"github.com/YaoZengzeng/yutcp/transport/tcp"
	"github.com/YaoZengzeng/yutcp/types"
)

func main() {
	tunName := flag.String("tun", "tun0", "name of the TUN device to attach")
	localAddr := flag.String("addr", "192.168.1.1", "local IPv4 address to assign to the TUN nic")
	route := flag.String("route", "0.0.0.0/0", "default route, in CIDR form, via the TUN nic")
	flag.Parse()

	addr, err := parseAddress(*localAddr)
	if err != nil {
		log.Fatalf("yutcpd: bad -addr: %v", err)
	}

	dest, mask, err := parseCIDR(*route)
	if err != nil {
		log.Fatalf("yutcpd: bad -route: %v", err)
	}

	ep, err := tundev.New(*tunName)
	if err != nil {
		log.Fatalf("yutcpd: opening %s: %v", *tunName, err)
	}

	const nicID types.NicId = 1

	ipStack := ipv4.NewStack()
	if err := ipStack.CreateNic(nicID, ep); err != nil {
		log.Fatalf("yutcpd: creating nic: %v", err)
	}
	if err := ipStack.AddAddress(nicID, addr); err != nil {
		log.Fatalf("yutcpd: assigning address: %v", err)
	}
	ipStack.SetRouteTable([]types.Route{
		{Destination: dest, Mask: mask, Nic: nicID},
	})

	eng := tcp.NewEngine(ipStack)
	icmp.NewReceiver(ipStack)

	watchSignals(eng)

	log.Printf("yutcpd: listening on %s (%s)", *tunName, addr)
	runShell(eng)
}

// watchSignals delivers spec.md §9's signal-driven cancellation: a SIGINT
// or SIGTERM interrupts every command currently blocked in eng.Open/Send/
// Receive, each of which wakes and returns ErrInterrupted (EINTR) instead
// of hanging forever
func watchSignals(eng *tcp.Engine) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		s := <-c
		log.Printf("yutcpd: received %s, interrupting blocked commands", s)
		eng.Interrupt()
	}()
}

// runShell reads simple line-oriented commands from stdin:
//
//	listen <port>
//	connect <addr> <port>
//	send <desc> <text>
//	recv <desc> <n>
//	close <desc>
func runShell(eng *tcp.Engine) {
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "listen":
			if len(fields) != 2 {
				fmt.Println("usage: listen <port>")
				continue
			}
			port, _ := strconv.Atoi(fields[1])
			local := types.FullAddress{Addr: types.AnyAddress, Port: uint16(port)}
			desc, err := eng.Open(local, types.FullAddress{}, false)
			report("listen", desc, err)

		case "connect":
			if len(fields) != 3 {
				fmt.Println("usage: connect <addr> <port>")
				continue
			}
			raddr, err := parseAddress(fields[1])
			if err != nil {
				fmt.Println(err)
				continue
			}
			rport, _ := strconv.Atoi(fields[2])
			local := types.FullAddress{Addr: types.AnyAddress, Port: 0}
			remote := types.FullAddress{Addr: raddr, Port: uint16(rport)}
			desc, err := eng.Open(local, remote, true)
			report("connect", desc, err)

		case "send":
			if len(fields) < 3 {
				fmt.Println("usage: send <desc> <text>")
				continue
			}
			desc, _ := strconv.Atoi(fields[1])
			text := strings.Join(fields[2:], " ")
			n, err := eng.Send(desc, []byte(text))
			report("send", n, err)

		case "recv":
			if len(fields) != 3 {
				fmt.Println("usage: recv <desc> <n>")
				continue
			}
			desc, _ := strconv.Atoi(fields[1])
			n, _ := strconv.Atoi(fields[2])
			buf := make([]byte, n)
			got, err := eng.Receive(desc, buf)
			if err != nil {
				fmt.Println("error:", err)
				continue
			}
			fmt.Printf("recv: %q\n", buf[:got])

		case "close":
			if len(fields) != 2 {
				fmt.Println("usage: close <desc>")
				continue
			}
			desc, _ := strconv.Atoi(fields[1])
			if err := eng.Close(desc); err != nil {
				fmt.Println("error:", err)
			}

		default:
			fmt.Println("unknown command:", fields[0])
		}
	}
}

func report(cmd string, n int, err error) {
	if err != nil {
		fmt.Printf("%s: error: %v\n", cmd, err)
		return
	}
	fmt.Printf("%s: %d\n", cmd, n)
}

// parseAddress converts a dotted-decimal IPv4 string into a types.Address
func parseAddress(s string) (types.Address, error) {
	ip := net.ParseIP(s)
	if ip == nil {
		return "", fmt.Errorf("invalid address %q", s)
	}
	ip4 := ip.To4()
	if ip4 == nil {
		return "", fmt.Errorf("not an IPv4 address: %q", s)
	}
	return types.Address(ip4), nil
}

// parseCIDR converts a CIDR string into destination and mask addresses
func parseCIDR(s string) (dest, mask types.Address, err error) {
	_, ipNet, err := net.ParseCIDR(s)
	if err != nil {
		return "", "", err
	}
	return types.Address(ipNet.IP.To4()), types.Address(net.IP(ipNet.Mask).To4()), nil
}
