// Package ipv4 builds and validates the IPv4/UDP framing this router wraps
// RIP messages in (RFC 791, RFC 768), and implements the forwarding
// primitive for transit datagrams.
package ipv4

import (
	"errors"

	"github.com/ripd-project/ripd/internal/wire"
)

// Sentinel errors for the forwarding primitive. Either one means the caller
// must drop the datagram without forwarding it; the distinct values exist so
// the drop can be counted under its own reason.
var (
	ErrChecksumMismatch = errors.New("ipv4: header checksum mismatch")
	ErrTTLExpired       = errors.New("ipv4: ttl expired")
)

// HeaderLen is the length in bytes of an IPv4 header with no options, the
// only form this router ever produces or forwards.
const HeaderLen = 20

// UDPHeaderLen is the length in bytes of a UDP header.
const UDPHeaderLen = 8

// RIPHeaderOffset is the fixed byte offset of the RIP payload inside a full
// datagram: HeaderLen + UDPHeaderLen.
const RIPHeaderOffset = HeaderLen + UDPHeaderLen

// RIPPort is the well-known UDP port RIP uses for both source and
// destination (RFC 2453 Section 1).
const RIPPort uint16 = 520

// ripTOS is the Type of Service byte this router stamps on every outbound
// RIP datagram: internetwork control.
const ripTOS = 0xC0

// ripTTL is the IP TTL this router stamps on every outbound RIP datagram;
// RIP traffic is link-local multicast and never needs to cross a router.
const ripTTL = 1

// protoUDP is the IPv4 protocol number for UDP.
const protoUDP = 0x11

// versionIHL is the Version/IHL byte for a 20-byte header with no options:
// version 4, IHL 5 (words).
const versionIHL = 0x45

// AssembleRIPDatagram builds the IPv4 and UDP headers around a RIP payload
// already written at buf[RIPHeaderOffset : RIPHeaderOffset+payloadLen], and
// returns the total datagram length.
//
// identification is the current value of the caller's 16-bit identification
// counter; AssembleRIPDatagram does not advance it. The control plane
// advances the counter by the returned total length after each send.
func AssembleRIPDatagram(buf []byte, payloadLen int, identification uint16, srcAddr, dstAddr uint32) int {
	totalLen := RIPHeaderOffset + payloadLen
	udpLen := UDPHeaderLen + payloadLen

	udp := buf[HeaderLen : HeaderLen+UDPHeaderLen]
	wire.WriteU16BE(udp[0:2], RIPPort)
	wire.WriteU16BE(udp[2:4], RIPPort)
	wire.WriteU16BE(udp[4:6], uint16(udpLen))
	wire.WriteU16BE(udp[6:8], 0) // UDP checksum is optional over IPv4; left 0

	ip := buf[0:HeaderLen]
	ip[0] = versionIHL
	ip[1] = ripTOS
	wire.WriteU16BE(ip[2:4], uint16(totalLen))
	wire.WriteU16BE(ip[4:6], identification)
	wire.WriteU16BE(ip[6:8], 0) // flags/fragment offset
	ip[8] = ripTTL
	ip[9] = protoUDP
	wire.WriteU16BE(ip[10:12], 0) // checksum, filled below
	wire.WriteU32BE(ip[12:16], srcAddr)
	wire.WriteU32BE(ip[16:20], dstAddr)

	wire.WriteU16BE(ip[10:12], wire.ChecksumBytes(ip))

	return totalLen
}

// SrcAddr reads the IPv4 source address from a datagram.
func SrcAddr(datagram []byte) uint32 {
	return wire.ReadU32BE(datagram[12:16])
}

// DstAddr reads the IPv4 destination address from a datagram.
func DstAddr(datagram []byte) uint32 {
	return wire.ReadU32BE(datagram[16:20])
}

// IHL returns the header length in 32-bit words, as carried in the low
// nibble of the Version/IHL byte.
func IHL(datagram []byte) int {
	return int(datagram[0] & 0x0F)
}

// TTL reads the IPv4 TTL byte.
func TTL(datagram []byte) uint8 {
	return datagram[8]
}

// IsRIPDatagram reports whether datagram is addressed to the RIP control
// plane: an option-free UDP datagram to destination port 520, the only
// layout the RIP codec's fixed offset 28 can decode. Anything else on the
// wire is transit traffic for the forwarding plane.
func IsRIPDatagram(datagram []byte) bool {
	if len(datagram) < RIPHeaderOffset {
		return false
	}
	if datagram[0] != versionIHL || datagram[9] != protoUDP {
		return false
	}
	return wire.ReadU16BE(datagram[HeaderLen+2:HeaderLen+4]) == RIPPort
}

// Forward validates and updates a received IPv4 datagram for transit:
// it verifies the header checksum, decrements TTL, and recomputes the
// checksum in place. It returns ErrChecksumMismatch if the checksum did not
// validate and ErrTTLExpired if decrementing TTL would produce zero; in
// either case the caller must drop the datagram without forwarding it.
//
// The checksum is verified and recomputed over IHL*2 16-bit words (the
// header length in words, not bytes), matching RFC 791's checksum field
// definition.
func Forward(datagram []byte) error {
	ihlWords := IHL(datagram) * 2
	header := datagram[:ihlWords*2]

	if wire.ChecksumBytes(header) != 0 {
		return ErrChecksumMismatch
	}

	ttl := header[8]
	if ttl <= 1 {
		header[8] = 0
		return ErrTTLExpired
	}
	header[8] = ttl - 1

	wire.WriteU16BE(header[10:12], 0)
	wire.WriteU16BE(header[10:12], wire.ChecksumBytes(header))

	return nil
}
