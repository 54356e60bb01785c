package netio

import "fmt"

// MAC is a 6-byte Ethernet hardware address.
type MAC [6]byte

// String renders mac in the conventional colon-separated hex form.
func (mac MAC) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", mac[0], mac[1], mac[2], mac[3], mac[4], mac[5])
}

// MulticastMAC is the reserved Ethernet destination for RIPv2 multicast
// traffic, the link-layer counterpart of the IP multicast group
// 224.0.0.9 (RFC 2453 Section 4).
var MulticastMAC = MAC{0x01, 0x00, 0x5E, 0x00, 0x00, 0x09}

// MulticastAddr is 224.0.0.9 in network-order uint32 form.
const MulticastAddr uint32 = 0xE0000009

// LinkSender transmits a fully-framed IPv4 datagram out of one interface
// to one link-layer destination. Implementations are synchronous and
// fire-and-forget: the control plane never retries a failed send.
type LinkSender interface {
	SendIPPacket(datagram []byte, ifIndex int, dst MAC) error
}

// ArpResolver resolves an IPv4 next hop to its MAC address on a given
// interface. Used only by the forwarding path, never by the RIP control
// plane itself (which always addresses the fixed multicast MAC or echoes
// a sender's MAC back to it). Implementations may trigger asynchronous ARP
// resolution and should rate-limit retries themselves.
type ArpResolver interface {
	ResolveMAC(ifIndex int, addr uint32) (MAC, bool)
}
