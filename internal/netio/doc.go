// Package netio defines the boundary between the RIP control plane and the
// host-supplied link layer: raw IPv4 frame transmission and reception,
// ARP resolution, and interface state monitoring.
//
// The Linux-specific driver uses an AF_PACKET socket bound to ETH_P_IP via
// golang.org/x/sys/unix, so the kernel handles Ethernet framing while the
// control plane's buffers hold exactly the IPv4 datagram (RFC 791).
package netio
