package types

import "fmt"

// Address is a byte slice cast as a string that represents the address of a
// network node. For this module it always holds the 4 raw octets of an IPv4
// address
type Address string

// String renders a 4-byte Address in dotted-decimal form
func (a Address) String() string {
	if len(a) != 4 {
		return fmt.Sprintf("%x", string(a))
	}
	return fmt.Sprintf("%d.%d.%d.%d", a[0], a[1], a[2], a[3])
}

// String renders a FullAddress as "addr:port"
func (f FullAddress) String() string {
	return fmt.Sprintf("%s:%d", f.Addr, f.Port)
}

// NicId identifies a network interface card within a Stack
type NicId int

// NetworkProtocolNumber is the number of a network protocol (e.g. IPv4)
type NetworkProtocolNumber uint32

// TransportProtocolNumber is the number of a transport protocol (e.g. TCP, ICMP)
type TransportProtocolNumber uint32

// AnyAddress is the wildcard address used in LISTEN and in PCB lookup
const AnyAddress Address = "\x00\x00\x00\x00"

// FullAddress is an (address, port) endpoint. The wildcard address
// AnyAddress and wildcard port 0 are sentinels used in LISTEN and in lookup
type FullAddress struct {
	Addr Address
	Port uint16
}
