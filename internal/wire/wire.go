// Package wire implements the endian-safe integer codec and one's-complement
// checksum shared by the RIPv2 and IPv4/UDP framing layers.
//
// All multi-byte fields in this router are big-endian on the wire. Every
// field access in the higher-level codecs goes through this package so that
// there are no reinterpreted memory views or implicit byte-order
// assumptions at the call site.
package wire

import "encoding/binary"

// ReadU16BE reads a big-endian uint16 from buf[0:2].
func ReadU16BE(buf []byte) uint16 {
	return binary.BigEndian.Uint16(buf)
}

// ReadU32BE reads a big-endian uint32 from buf[0:4].
func ReadU32BE(buf []byte) uint32 {
	return binary.BigEndian.Uint32(buf)
}

// WriteU16BE writes v to buf[0:2] in big-endian order.
func WriteU16BE(buf []byte, v uint16) {
	binary.BigEndian.PutUint16(buf, v)
}

// WriteU32BE writes v to buf[0:4] in big-endian order.
func WriteU32BE(buf []byte, v uint32) {
	binary.BigEndian.PutUint32(buf, v)
}
