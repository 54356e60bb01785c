//go:build linux

package netio

import (
	"encoding/binary"
	"fmt"
	"net"
	"sync"

	"golang.org/x/sys/unix"
)

// htons converts a host-order uint16 to network order, for use with the
// kernel's AF_PACKET protocol field (which it expects in network order).
func htons(v uint16) uint16 {
	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf, v)
	return binary.LittleEndian.Uint16(buf)
}

// RawLinkDriver sends and receives raw IPv4 datagrams over an AF_PACKET
// SOCK_DGRAM socket bound to ETH_P_IP: the kernel strips and fills the
// Ethernet header on receive and transmit respectively, so buf is exactly
// the IPv4 datagram the control plane builds and parses, and the
// link-layer destination is supplied per-send via a sockaddr_ll rather
// than embedded in buf.
//
// One RawLinkDriver serves every configured interface; ifIndex in
// SendIPPacket and the ifIndex returned from Receive are Linux interface
// indexes (net.Interface.Index), matching router.Interface.IfIndex when
// the daemon wires interfaces up at startup.
type RawLinkDriver struct {
	fd int

	mu     sync.Mutex
	closed bool
}

// NewRawLinkDriver opens one AF_PACKET socket shared by all interfaces.
// The socket is not bound to a single interface; SendIPPacket and Receive
// address interfaces individually via ifIndex.
func NewRawLinkDriver() (*RawLinkDriver, error) {
	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_DGRAM, int(htons(unix.ETH_P_IP)))
	if err != nil {
		return nil, fmt.Errorf("open AF_PACKET socket: %w", err)
	}
	return &RawLinkDriver{fd: fd}, nil
}

// SendIPPacket transmits datagram out of the interface identified by
// ifIndex to the link-layer destination dst. It satisfies LinkSender.
func (d *RawLinkDriver) SendIPPacket(datagram []byte, ifIndex int, dst MAC) error {
	addr := unix.SockaddrLinklayer{
		Protocol: htons(unix.ETH_P_IP),
		Ifindex:  ifIndex,
		Halen:    6,
	}
	copy(addr.Addr[:6], dst[:])

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return fmt.Errorf("send on interface %d: %w", ifIndex, unix.EBADF)
	}

	if err := unix.Sendto(d.fd, datagram, 0, &addr); err != nil {
		return fmt.Errorf("send on interface %d to %s: %w", ifIndex, dst, err)
	}
	return nil
}

// Receive blocks for the next inbound IPv4 datagram and returns it along
// with the sender's link-layer source MAC and the receiving interface
// index, the three pieces of metadata router.Router.ReceiveIPPacket needs.
func (d *RawLinkDriver) Receive(buf []byte) (n int, srcMAC MAC, ifIndex int, err error) {
	n, from, err := unix.Recvfrom(d.fd, buf, 0)
	if err != nil {
		return 0, MAC{}, 0, fmt.Errorf("receive: %w", err)
	}

	ll, ok := from.(*unix.SockaddrLinklayer)
	if !ok {
		return n, MAC{}, 0, fmt.Errorf("receive: unexpected sockaddr type %T", from)
	}

	copy(srcMAC[:], ll.Addr[:6])
	return n, srcMAC, ll.Ifindex, nil
}

// Close releases the underlying socket.
func (d *RawLinkDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	return unix.Close(d.fd)
}

// InterfaceIndex looks up the Linux interface index for a named interface,
// a convenience for the daemon's startup wiring (router.Interface.IfIndex
// values come from here).
func InterfaceIndex(name string) (int, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return 0, fmt.Errorf("lookup interface %q: %w", name, err)
	}
	return iface.Index, nil
}
