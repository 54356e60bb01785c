// Package router implements the RIPv2 control plane — the timer-driven
// broadcast, request/response handling with poisoned-route echo, split
// horizon export, and initialization announcements that sit on top of the
// routing table, RIP codec, and IPv4/UDP framer — and the forwarding plane
// for transit datagrams, which combines the framer's forwarding primitive
// with the table's longest-prefix match and the host's ARP resolver.
//
// The control plane is single-threaded and event-driven by contract: its
// three entry points, Init, PerSec, and ReceiveIPPacket, each run to
// completion, and none may be re-entered from inside a callback the
// control plane makes to its LinkSender.
package router

import (
	"errors"
	"fmt"

	"github.com/ripd-project/ripd/internal/ipv4"
	"github.com/ripd-project/ripd/internal/netio"
	"github.com/ripd-project/ripd/internal/rip"
	"github.com/ripd-project/ripd/internal/table"
	"github.com/ripd-project/ripd/internal/wire"
)

// broadcastIntervalUsec is the periodic full-table broadcast interval,
// 5 seconds expressed in the microsecond clock entry points use.
const broadcastIntervalUsec uint64 = 5_000_000

// interfaceRouteLen is the prefix length installed for every configured
// interface's directly connected route at Init.
const interfaceRouteLen uint8 = 24

// initialIdentification is the IPv4 identification counter's seed value.
const initialIdentification uint16 = 0x4C80

// scratchBufLen is the capacity of the reused outbound datagram buffer:
// header room plus a full 25-entry RIP response.
const scratchBufLen = ipv4.RIPHeaderOffset + rip.HeaderSize + rip.MaxEntries*rip.EntrySize

// Interface is one configured physical interface: its address and the
// index the rest of the system (the table, the link driver) identifies it
// by.
type Interface struct {
	Addr    uint32
	IfIndex int
}

// Metrics is the observability hook the control plane reports route
// updates, packet counts, and drop reasons to. Satisfied by
// *ripmetrics.Collector; kept as a narrow interface here so this package
// does not import internal/metrics.
type Metrics interface {
	RecordRouteUpdate(result string, tableSize int)
	IncPacketsSent(command string)
	IncPacketsReceived()
	IncPacketsForwarded()
	IncPacketsDropped(reason string)
	IncPoisonedEchoes()
	IncBroadcasts()
}

// Route update outcomes and packet labels, matching internal/metrics'
// Result*/Command*/Reason* constants without importing that package.
const (
	resultInstalled = "installed"
	resultImproved  = "improved"
	resultRejected  = "rejected"
	resultWithdrawn = "withdrawn"

	commandRequest  = "request"
	commandResponse = "response"

	reasonMalformed     = "malformed"
	reasonChecksum      = "checksum"
	reasonTTLExpired    = "ttl_expired"
	reasonNoRoute       = "no_route"
	reasonARPUnresolved = "arp_unresolved"
)

// noopMetrics discards every call. Used as the Router's default so
// r.metrics is never nil and every call site can be unconditional.
type noopMetrics struct{}

func (noopMetrics) RecordRouteUpdate(string, int) {}
func (noopMetrics) IncPacketsSent(string)         {}
func (noopMetrics) IncPacketsReceived()           {}
func (noopMetrics) IncPacketsForwarded()          {}
func (noopMetrics) IncPacketsDropped(string)      {}
func (noopMetrics) IncPoisonedEchoes()            {}
func (noopMetrics) IncBroadcasts()                {}

// Option configures optional Router behavior.
type Option func(*Router)

// WithMetrics attaches a Metrics reporter to the router. If m is nil, the
// router keeps its default no-op reporter.
func WithMetrics(m Metrics) Option {
	return func(r *Router) {
		if m != nil {
			r.metrics = m
		}
	}
}

// WithBroadcastInterval overrides the default 5-second full-table
// broadcast interval. usec of 0 leaves the default in place.
func WithBroadcastInterval(usec uint64) Option {
	return func(r *Router) {
		if usec != 0 {
			r.broadcastInterval = usec
		}
	}
}

// Router holds all process-wide control-plane state: the routing table,
// the IPv4 identification counter, the last broadcast timestamp, and the
// configured interfaces. It has no goroutines and no internal locking;
// callers must serialize calls to its entry points themselves (the
// embedding daemon does this by running a single event loop).
type Router struct {
	table             *table.Table
	interfaces        []Interface
	identification    uint16
	lastBroadcast     uint64
	broadcastInterval uint64
	scratch           []byte

	sender  netio.LinkSender
	arp     netio.ArpResolver
	metrics Metrics
}

// New constructs a Router over the given interfaces, using sender to
// transmit outbound datagrams and arp to resolve forwarding next hops.
// Call Init before any other entry point.
func New(interfaces []Interface, sender netio.LinkSender, arp netio.ArpResolver, opts ...Option) *Router {
	r := &Router{
		table:             table.New(),
		interfaces:        interfaces,
		identification:    initialIdentification,
		broadcastInterval: broadcastIntervalUsec,
		scratch:           make([]byte, scratchBufLen),
		sender:            sender,
		arp:               arp,
		metrics:           noopMetrics{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Table returns the router's routing table, for read-only inspection by a
// management surface (CLI, metrics).
func (r *Router) Table() *table.Table {
	return r.table
}

// Init installs each configured interface's directly connected route and
// sends a full-table Request out of every interface.
func (r *Router) Init(now uint64) error {
	r.identification = initialIdentification
	r.lastBroadcast = now

	for _, iface := range r.interfaces {
		entry := table.Entry{
			Addr:    table.CanonicalAddr(iface.Addr, interfaceRouteLen),
			Len:     interfaceRouteLen,
			IfIndex: iface.IfIndex,
			NextHop: 0,
			Metric:  0,
		}
		r.updateTable(true, entry)
	}

	for _, iface := range r.interfaces {
		if err := r.sendRequest(iface); err != nil {
			return fmt.Errorf("router init: interface %d: %w", iface.IfIndex, err)
		}
	}

	return nil
}

// PerSec is the periodic tick. If at least the configured broadcast
// interval (5 s by default, see WithBroadcastInterval) has passed since the
// last broadcast, it exports the full table on every interface and
// advances the last-broadcast timestamp. Otherwise it is a no-op; a missed
// tick is folded into the next call.
func (r *Router) PerSec(now uint64) error {
	if now < r.lastBroadcast+r.broadcastInterval {
		return nil
	}
	r.lastBroadcast = now
	r.metrics.IncBroadcasts()

	for _, iface := range r.interfaces {
		if err := r.exportFullTable(iface, netio.MulticastAddr, netio.MulticastMAC); err != nil {
			return fmt.Errorf("router persec: interface %d: %w", iface.IfIndex, err)
		}
	}
	return nil
}

// ReceiveIPPacket processes one inbound frame already validated as
// Ethernet-framed IPv4 by the link driver. Datagrams addressed to UDP port
// 520 go to the RIP control plane; anything else is transit traffic handed
// to the forwarding plane. A RIP datagram that fails decoding is silently
// ignored, matching the no-exceptions error policy of the control plane.
func (r *Router) ReceiveIPPacket(datagram []byte, srcMAC netio.MAC, ifIndex int) error {
	if !ipv4.IsRIPDatagram(datagram) {
		r.forwardTransit(datagram)
		return nil
	}

	pkt, err := rip.Unmarshal(datagram)
	if err != nil {
		r.metrics.IncPacketsDropped(reasonMalformed)
		return nil
	}
	r.metrics.IncPacketsReceived()

	srcAddr := ipv4.SrcAddr(datagram)

	switch pkt.Command {
	case rip.CommandRequest:
		return r.exportFullTable(r.interfaceByIndex(ifIndex), srcAddr, srcMAC)
	case rip.CommandResponse:
		return r.ingestResponse(pkt, srcAddr, srcMAC, ifIndex)
	default:
		return nil
	}
}

// forwardTransit runs the forwarding plane for one transit datagram:
// checksum verify and TTL decrement, then a longest-prefix-match lookup,
// ARP resolution of the next hop, and retransmission out of the selected
// egress interface. Every drop path counts its own reason; nothing here is
// an error the caller could act on, matching the fire-and-forget policy of
// every other send.
func (r *Router) forwardTransit(datagram []byte) {
	if len(datagram) < ipv4.HeaderLen {
		r.metrics.IncPacketsDropped(reasonMalformed)
		return
	}

	switch err := ipv4.Forward(datagram); {
	case errors.Is(err, ipv4.ErrChecksumMismatch):
		r.metrics.IncPacketsDropped(reasonChecksum)
		return
	case errors.Is(err, ipv4.ErrTTLExpired):
		r.metrics.IncPacketsDropped(reasonTTLExpired)
		return
	}

	dstAddr := ipv4.DstAddr(datagram)
	nextHop, ifIndex, ok := r.table.Query(dstAddr)
	if !ok {
		r.metrics.IncPacketsDropped(reasonNoRoute)
		return
	}

	// A zero next hop is a directly connected route: deliver straight to
	// the destination itself.
	target := nextHop
	if target == 0 {
		target = dstAddr
	}

	if r.arp == nil {
		r.metrics.IncPacketsDropped(reasonARPUnresolved)
		return
	}
	dstMAC, ok := r.arp.ResolveMAC(ifIndex, target)
	if !ok {
		r.metrics.IncPacketsDropped(reasonARPUnresolved)
		return
	}

	if r.sender != nil {
		if err := r.sender.SendIPPacket(datagram, ifIndex, dstMAC); err != nil {
			return
		}
	}
	r.metrics.IncPacketsForwarded()
}

// Update installs or withdraws a route directly, exposed so a management
// plane can inject or remove static routes outside of RIP learning.
func (r *Router) Update(insert bool, entry table.Entry) bool {
	return r.updateTable(insert, entry)
}

// updateTable applies entry to the table and reports the outcome to
// Metrics. Outcome classification for a successful insert (installed vs.
// improved) is derived from whether the table grew, since table.Update
// reports success/failure only.
func (r *Router) updateTable(insert bool, entry table.Entry) bool {
	before := r.table.Len()
	ok := r.table.Update(insert, entry)

	var result string
	switch {
	case !ok:
		result = resultRejected
	case !insert:
		result = resultWithdrawn
	case r.table.Len() > before:
		result = resultInstalled
	default:
		result = resultImproved
	}
	r.metrics.RecordRouteUpdate(result, r.table.Len())

	return ok
}

// ingestResponse applies each reachable entry of a received Response to the
// table and, for every entry that actually changed the table, collects a
// poisoned-reverse echo entry. If any entry changed the table, a single
// Response carrying the poisoned echoes is sent back to the sender.
func (r *Router) ingestResponse(pkt *rip.Packet, srcAddr uint32, srcMAC netio.MAC, ifIndex int) error {
	var poisoned []rip.Entry

	for _, e := range pkt.Entries {
		if e.Metric >= rip.MetricInfinity {
			continue
		}

		prefixLen, ok := wire.MaskToPrefix(e.Mask)
		if !ok {
			continue
		}

		candidate := table.Entry{
			Addr:    table.CanonicalAddr(e.Addr, prefixLen),
			Len:     prefixLen,
			IfIndex: ifIndex,
			NextHop: e.NextHop,
			Metric:  e.Metric,
		}

		if !r.updateTable(true, candidate) {
			continue
		}

		poisoned = append(poisoned, rip.Entry{
			Addr:    candidate.Addr,
			Mask:    e.Mask,
			NextHop: candidate.NextHop,
			Metric:  rip.MetricInfinity,
		})
	}

	if len(poisoned) == 0 {
		return nil
	}

	r.metrics.IncPoisonedEchoes()
	return r.sendResponse(r.interfaceByIndex(ifIndex), srcAddr, srcMAC, poisoned)
}

// exportFullTable serializes the entire routing table, applying split
// horizon with poisoned reverse against egress interface iface, and sends
// it as one or more chunked Response datagrams to dstAddr/dstMAC.
func (r *Router) exportFullTable(iface Interface, dstAddr uint32, dstMAC netio.MAC) error {
	snapshot := r.table.Snapshot()
	entries := make([]rip.Entry, 0, len(snapshot))

	for _, e := range snapshot {
		metric := e.Metric + 1
		if e.IfIndex == iface.IfIndex || metric > rip.MetricInfinity {
			metric = rip.MetricInfinity
		}
		entries = append(entries, rip.Entry{
			Addr:    e.Addr,
			Mask:    wire.PrefixToMask(e.Len),
			NextHop: e.NextHop,
			Metric:  metric,
		})
	}

	if len(entries) == 0 {
		return r.sendResponse(iface, dstAddr, dstMAC, nil)
	}

	for len(entries) > 0 {
		n := len(entries)
		if n > rip.MaxEntries {
			n = rip.MaxEntries
		}
		if err := r.sendResponse(iface, dstAddr, dstMAC, entries[:n]); err != nil {
			return err
		}
		entries = entries[n:]
	}
	return nil
}

// sendRequest emits the single-entry full-table Request this router sends
// out of iface at startup, addressed to the RIP multicast group.
func (r *Router) sendRequest(iface Interface) error {
	pkt := rip.NewFullTableRequest()
	n, err := rip.Marshal(pkt, r.scratch[ipv4.RIPHeaderOffset:])
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	if err := r.send(iface, netio.MulticastAddr, netio.MulticastMAC, n); err != nil {
		return err
	}
	r.metrics.IncPacketsSent(commandRequest)
	return nil
}

// sendResponse marshals entries as a single RIP Response and transmits it
// out of iface to dstAddr/dstMAC. entries must not exceed rip.MaxEntries;
// callers that may exceed it (exportFullTable) chunk beforehand.
func (r *Router) sendResponse(iface Interface, dstAddr uint32, dstMAC netio.MAC, entries []rip.Entry) error {
	pkt := &rip.Packet{Command: rip.CommandResponse, Entries: entries}
	n, err := rip.Marshal(pkt, r.scratch[ipv4.RIPHeaderOffset:])
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}
	if err := r.send(iface, dstAddr, dstMAC, n); err != nil {
		return err
	}
	r.metrics.IncPacketsSent(commandResponse)
	return nil
}

// send frames the payloadLen bytes already written at
// r.scratch[ipv4.RIPHeaderOffset:] into an IPv4+UDP datagram and hands it to
// the link sender, then advances the identification counter by the
// datagram's total length.
func (r *Router) send(iface Interface, dstAddr uint32, dstMAC netio.MAC, payloadLen int) error {
	total := ipv4.AssembleRIPDatagram(r.scratch[:ipv4.RIPHeaderOffset+payloadLen], payloadLen, r.identification, iface.Addr, dstAddr)
	r.identification += uint16(total)

	if r.sender == nil {
		return nil
	}
	return r.sender.SendIPPacket(r.scratch[:total], iface.IfIndex, dstMAC)
}

// interfaceByIndex returns the configured Interface for ifIndex, or a
// zero-value Interface carrying ifIndex if no such interface was
// configured. Receive processing always has an ifIndex supplied by the
// link driver, so this is a defensive fallback, not an expected path.
func (r *Router) interfaceByIndex(ifIndex int) Interface {
	for _, iface := range r.interfaces {
		if iface.IfIndex == ifIndex {
			return iface
		}
	}
	return Interface{IfIndex: ifIndex}
}
