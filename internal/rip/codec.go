package rip

import (
	"errors"
	"fmt"

	"github.com/ripd-project/ripd/internal/wire"
)

// ripHeaderOffset is the fixed byte offset of the RIP header inside a full
// IPv4 datagram: a 20-byte IPv4 header (no options) plus an 8-byte UDP
// header (RFC 2453 Section 4).
const ripHeaderOffset = 20 + 8

// minDatagramLen is the smallest legal datagram Unmarshal accepts: headers
// plus zero RIP entries (an empty Response is a legal no-op update).
const minDatagramLen = ripHeaderOffset + HeaderSize

// Sentinel errors for RIP codec validation failures, in validation order.
// Every failure means the packet is malformed and the caller drops it
// silently — the distinct sentinels exist for tests and logging, not for
// differing control flow.
var (
	ErrShortDatagram    = errors.New("rip: datagram shorter than header")
	ErrBadEntryAlign    = errors.New("rip: datagram length not aligned to entry size")
	ErrTooManyEntries   = errors.New("rip: entry count exceeds maximum")
	ErrBadCommand       = errors.New("rip: command is neither request nor response")
	ErrBadVersion       = errors.New("rip: version is not 2")
	ErrNonContiguous    = errors.New("rip: entry mask is not contiguous")
	ErrBadMetricBytes   = errors.New("rip: entry metric low bytes are nonzero")
	ErrMetricOutOfRange = errors.New("rip: entry metric byte is out of range [1, 16]")
	ErrBufTooSmall      = errors.New("rip: buffer too small to marshal packet")
	ErrTooManyToMarshal = errors.New("rip: packet has more than MaxEntries entries")
)

// Unmarshal decodes a RIP message out of datagram, a buffer holding a full
// IPv4 datagram starting at offset 0. Validation proceeds length first,
// then command, then version, then per-entry mask and metric checks; the
// first failure determines the sentinel error returned.
func Unmarshal(datagram []byte) (*Packet, error) {
	totalLen := len(datagram)

	// Step 1: (len - 32) mod 20 == 0.
	if totalLen < minDatagramLen {
		return nil, fmt.Errorf("unmarshal rip packet: length %d: %w", totalLen, ErrShortDatagram)
	}
	if (totalLen-minDatagramLen)%EntrySize != 0 {
		return nil, fmt.Errorf("unmarshal rip packet: length %d: %w", totalLen, ErrBadEntryAlign)
	}

	// Step 2: n = (len - 32) / 20 <= 25.
	numEntries := (totalLen - minDatagramLen) / EntrySize
	if numEntries > MaxEntries {
		return nil, fmt.Errorf("unmarshal rip packet: %d entries: %w", numEntries, ErrTooManyEntries)
	}

	header := datagram[ripHeaderOffset:]

	// Step 3: command in {1, 2}.
	command := Command(header[0])
	if command != CommandRequest && command != CommandResponse {
		return nil, fmt.Errorf("unmarshal rip packet: command %d: %w", header[0], ErrBadCommand)
	}

	// Step 4: version == 2.
	if header[1] != Version {
		return nil, fmt.Errorf("unmarshal rip packet: version %d: %w", header[1], ErrBadVersion)
	}

	entries := make([]Entry, numEntries)
	body := header[HeaderSize:]
	for i := range entries {
		off := i * EntrySize
		entry := body[off : off+EntrySize]

		addr := wire.ReadU32BE(entry[4:8])
		mask := wire.ReadU32BE(entry[8:12])
		nexthop := wire.ReadU32BE(entry[12:16])
		metricField := wire.ReadU32BE(entry[16:20])

		// Step 5: mask is contiguous.
		if !wire.IsContiguousMask(mask) {
			return nil, fmt.Errorf("unmarshal rip packet: entry %d mask %#x: %w", i, mask, ErrNonContiguous)
		}

		// Step 6: low 24 bits of metric are zero, high byte in [1, 16].
		if metricField&0x00FFFFFF != 0 {
			return nil, fmt.Errorf("unmarshal rip packet: entry %d metric field %#x: %w", i, metricField, ErrBadMetricBytes)
		}
		metric := uint8(metricField >> 24)
		if metric < 1 || metric > MetricInfinity {
			return nil, fmt.Errorf("unmarshal rip packet: entry %d metric %d: %w", i, metric, ErrMetricOutOfRange)
		}

		entries[i] = Entry{Addr: addr, Mask: mask, NextHop: nexthop, Metric: metric}
	}

	return &Packet{Command: command, Entries: entries}, nil
}

// Marshal serializes pkt's RIP header and entries into buf, starting at
// buf[0], and returns the number of bytes written.
//
// For a Request, exactly one synthetic all-zero entry with metric byte 16
// is written regardless of pkt.Entries; pkt.Entries is expected to hold
// that entry already (see NewFullTableRequest) but is not otherwise
// consulted for a Request. For a Response, every entry in pkt.Entries is
// written; callers are responsible for chunking to MaxEntries per
// datagram.
func Marshal(pkt *Packet, buf []byte) (int, error) {
	if pkt.Command == CommandResponse && len(pkt.Entries) > MaxEntries {
		return 0, fmt.Errorf("marshal rip packet: %d entries: %w", len(pkt.Entries), ErrTooManyToMarshal)
	}

	numEntries := 1
	if pkt.Command == CommandResponse {
		numEntries = len(pkt.Entries)
	}
	need := HeaderSize + numEntries*EntrySize
	if len(buf) < need {
		return 0, fmt.Errorf("marshal rip packet: need %d bytes, have %d: %w", need, len(buf), ErrBufTooSmall)
	}

	buf[0] = uint8(pkt.Command)
	buf[1] = Version
	buf[2] = 0
	buf[3] = 0

	if pkt.Command == CommandRequest {
		entry := buf[HeaderSize : HeaderSize+EntrySize]
		clear(entry)
		wire.WriteU32BE(entry[16:20], uint32(MetricInfinity)<<24)
		return HeaderSize + EntrySize, nil
	}

	for i, e := range pkt.Entries {
		off := HeaderSize + i*EntrySize
		entry := buf[off : off+EntrySize]
		wire.WriteU16BE(entry[0:2], addressFamilyIP)
		wire.WriteU16BE(entry[2:4], 0) // route tag, always zero
		wire.WriteU32BE(entry[4:8], e.Addr)
		wire.WriteU32BE(entry[8:12], e.Mask)
		wire.WriteU32BE(entry[12:16], e.NextHop)
		wire.WriteU32BE(entry[16:20], uint32(e.Metric)<<24)
	}

	return need, nil
}
