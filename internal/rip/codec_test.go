package rip_test

import (
	"reflect"
	"testing"

	"github.com/ripd-project/ripd/internal/rip"
)

// wrapInDatagram prepends a 28-byte synthetic IPv4+UDP header (the RIP
// header always sits at offset 28 in a full datagram) ahead of payload,
// as if a real ipv4 framer had filled in total length and the rest of
// the headers.
func wrapInDatagram(payload []byte) []byte {
	datagram := make([]byte, 28+len(payload))
	copy(datagram[28:], payload)
	return datagram
}

func TestMarshalUnmarshalRoundTripResponse(t *testing.T) {
	t.Parallel()

	pkt := &rip.Packet{
		Command: rip.CommandResponse,
		Entries: []rip.Entry{
			{Addr: 0x0A000000, Mask: 0xFFFFFF00, NextHop: 0, Metric: 1},
			{Addr: 0xC0A80200, Mask: 0xFFFFFF00, NextHop: 0x0A000002, Metric: 3},
		},
	}

	buf := make([]byte, 1024)
	n, err := rip.Marshal(pkt, buf)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	datagram := wrapInDatagram(buf[:n])
	got, err := rip.Unmarshal(datagram)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if !reflect.DeepEqual(got, pkt) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, pkt)
	}
}

func TestMarshalUnmarshalRoundTripRequest(t *testing.T) {
	t.Parallel()

	pkt := rip.NewFullTableRequest()

	buf := make([]byte, 64)
	n, err := rip.Marshal(pkt, buf)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if n != rip.HeaderSize+rip.EntrySize {
		t.Fatalf("Marshal request wrote %d bytes, want %d", n, rip.HeaderSize+rip.EntrySize)
	}

	got, err := rip.Unmarshal(wrapInDatagram(buf[:n]))
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Command != rip.CommandRequest {
		t.Fatalf("command = %v, want Request", got.Command)
	}
	if len(got.Entries) != 1 || got.Entries[0].Metric != rip.MetricInfinity {
		t.Fatalf("request entry = %+v, want single metric-16 entry", got.Entries)
	}
	if got.Entries[0].Addr != 0 || got.Entries[0].Mask != 0 || got.Entries[0].NextHop != 0 {
		t.Fatalf("request entry fields not all zero: %+v", got.Entries[0])
	}
}

func TestUnmarshalEmptyResponseIsNoOp(t *testing.T) {
	t.Parallel()

	pkt := &rip.Packet{Command: rip.CommandResponse, Entries: nil}
	buf := make([]byte, 64)
	n, err := rip.Marshal(pkt, buf)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	got, err := rip.Unmarshal(wrapInDatagram(buf[:n]))
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Command != rip.CommandResponse || len(got.Entries) != 0 {
		t.Fatalf("got %+v, want empty Response", got)
	}
}

func TestUnmarshalRejectsTooManyEntries(t *testing.T) {
	t.Parallel()

	entries := make([]rip.Entry, rip.MaxEntries+1)
	for i := range entries {
		entries[i] = rip.Entry{Metric: 1}
	}

	buf := make([]byte, rip.HeaderSize+len(entries)*rip.EntrySize)
	buf[0] = uint8(rip.CommandResponse)
	buf[1] = rip.Version
	for i := range entries {
		off := rip.HeaderSize + i*rip.EntrySize
		buf[off+16] = 1 // metric byte
	}

	_, err := rip.Unmarshal(wrapInDatagram(buf))
	if err == nil {
		t.Fatal("expected error for entry count exceeding MaxEntries")
	}
}

func TestUnmarshalRejectsBadAlignment(t *testing.T) {
	t.Parallel()

	datagram := make([]byte, 28+rip.HeaderSize+7) // not a multiple of EntrySize
	_, err := rip.Unmarshal(datagram)
	if err == nil {
		t.Fatal("expected error for misaligned length")
	}
}

func TestUnmarshalRejectsBadCommand(t *testing.T) {
	t.Parallel()

	buf := make([]byte, rip.HeaderSize)
	buf[0] = 3 // neither 1 nor 2
	buf[1] = rip.Version

	_, err := rip.Unmarshal(wrapInDatagram(buf))
	if err == nil {
		t.Fatal("expected error for invalid command")
	}
}

func TestUnmarshalRejectsBadVersion(t *testing.T) {
	t.Parallel()

	buf := make([]byte, rip.HeaderSize)
	buf[0] = uint8(rip.CommandResponse)
	buf[1] = 1 // not version 2

	_, err := rip.Unmarshal(wrapInDatagram(buf))
	if err == nil {
		t.Fatal("expected error for invalid version")
	}
}

func TestUnmarshalRejectsNonContiguousMask(t *testing.T) {
	t.Parallel()

	buf := make([]byte, rip.HeaderSize+rip.EntrySize)
	buf[0] = uint8(rip.CommandResponse)
	buf[1] = rip.Version
	entry := buf[rip.HeaderSize:]
	entry[8], entry[9], entry[10], entry[11] = 0xFF, 0x00, 0xFF, 0x00 // non-contiguous mask
	entry[16] = 1                                                    // metric byte

	_, err := rip.Unmarshal(wrapInDatagram(buf))
	if err == nil {
		t.Fatal("expected error for non-contiguous mask")
	}
}

func TestUnmarshalRejectsMetricOutOfRange(t *testing.T) {
	t.Parallel()

	for _, metric := range []byte{0, 17, 255} {
		buf := make([]byte, rip.HeaderSize+rip.EntrySize)
		buf[0] = uint8(rip.CommandResponse)
		buf[1] = rip.Version
		buf[rip.HeaderSize+16] = metric

		if _, err := rip.Unmarshal(wrapInDatagram(buf)); err == nil {
			t.Fatalf("expected error for metric %d", metric)
		}
	}
}

func TestUnmarshalRejectsNonzeroMetricLowBytes(t *testing.T) {
	t.Parallel()

	buf := make([]byte, rip.HeaderSize+rip.EntrySize)
	buf[0] = uint8(rip.CommandResponse)
	buf[1] = rip.Version
	buf[rip.HeaderSize+18] = 1 // nonzero in the low 24 bits
	buf[rip.HeaderSize+16] = 1

	_, err := rip.Unmarshal(wrapInDatagram(buf))
	if err == nil {
		t.Fatal("expected error for nonzero metric low bytes")
	}
}

func TestMarshalRejectsTooManyEntries(t *testing.T) {
	t.Parallel()

	pkt := &rip.Packet{
		Command: rip.CommandResponse,
		Entries: make([]rip.Entry, rip.MaxEntries+1),
	}
	_, err := rip.Marshal(pkt, make([]byte, 4096))
	if err == nil {
		t.Fatal("expected error marshaling more than MaxEntries entries")
	}
}
