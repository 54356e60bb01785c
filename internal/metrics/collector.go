// Package ripmetrics defines the Prometheus instrumentation for the RIP
// control plane.
package ripmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// -------------------------------------------------------------------------
// Prometheus Metric Constants
// -------------------------------------------------------------------------

const (
	namespace = "ripd"
)

// Label names for ripd metrics.
const (
	labelResult  = "result"
	labelCommand = "command"
	labelReason  = "reason"
)

// -------------------------------------------------------------------------
// Collector — Prometheus RIP Metrics
// -------------------------------------------------------------------------

// Collector holds all ripd Prometheus metrics.
//
//   - RoutesInstalled tracks the current table size.
//   - RouteUpdates counts table mutations by outcome, for alerting on
//     churn or a route table silently filling up.
//   - PacketsSent/PacketsReceived/PacketsForwarded/PacketsDropped track
//     on-wire volume and the reason for each drop.
//   - PoisonedEchoes and Broadcasts count the two kinds of Response a
//     router emits.
type Collector struct {
	// RoutesInstalled is the current number of entries in the routing
	// table. Set directly rather than incremented/decremented, since the
	// table owns the authoritative count.
	RoutesInstalled prometheus.Gauge

	// RouteUpdates counts table.Update outcomes, labeled "installed",
	// "improved", "rejected", or "withdrawn".
	RouteUpdates *prometheus.CounterVec

	// PacketsSent counts RIP datagrams transmitted, labeled "request" or
	// "response".
	PacketsSent *prometheus.CounterVec

	// PacketsReceived counts RIP datagrams accepted off the wire.
	PacketsReceived prometheus.Counter

	// PacketsForwarded counts transit datagrams retransmitted by the
	// forwarding plane.
	PacketsForwarded prometheus.Counter

	// PacketsDropped counts datagrams dropped by the control or forwarding
	// plane, labeled "malformed", "checksum", "ttl_expired", "no_route",
	// or "arp_unresolved".
	PacketsDropped *prometheus.CounterVec

	// PoisonedEchoes counts poisoned-reverse echo Responses emitted when
	// an ingested Response changes the table (RFC 2453 split horizon with
	// poisoned reverse).
	PoisonedEchoes prometheus.Counter

	// Broadcasts counts periodic full-table Responses emitted by PerSec.
	Broadcasts prometheus.Counter
}

// NewCollector creates a Collector with all ripd metrics registered against
// the provided prometheus.Registerer. If reg is nil, prometheus.DefaultRegisterer
// is used.
//
// All metrics are created with the "ripd_" namespace prefix to avoid
// collisions with other exporters.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := newMetrics()

	reg.MustRegister(
		c.RoutesInstalled,
		c.RouteUpdates,
		c.PacketsSent,
		c.PacketsReceived,
		c.PacketsForwarded,
		c.PacketsDropped,
		c.PoisonedEchoes,
		c.Broadcasts,
	)

	return c
}

// newMetrics creates all Prometheus metrics without registering them.
func newMetrics() *Collector {
	return &Collector{
		RoutesInstalled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "routes_installed",
			Help:      "Current number of entries in the routing table.",
		}),

		RouteUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "route_updates_total",
			Help:      "Total routing table update outcomes, by result.",
		}, []string{labelResult}),

		PacketsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_sent_total",
			Help:      "Total RIP datagrams transmitted, by command.",
		}, []string{labelCommand}),

		PacketsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_received_total",
			Help:      "Total RIP datagrams accepted off the wire.",
		}),

		PacketsForwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_forwarded_total",
			Help:      "Total transit datagrams retransmitted by the forwarding plane.",
		}),

		PacketsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_dropped_total",
			Help:      "Total datagrams dropped by the control or forwarding plane, by reason.",
		}, []string{labelReason}),

		PoisonedEchoes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poisoned_echoes_total",
			Help:      "Total poisoned-reverse echo Responses emitted on a table change.",
		}),

		Broadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcasts_total",
			Help:      "Total periodic full-table Responses emitted by PerSec.",
		}),
	}
}

// -------------------------------------------------------------------------
// Route Updates
// -------------------------------------------------------------------------

// Route update outcomes, matching the labelResult values RouteUpdates uses.
const (
	ResultInstalled = "installed"
	ResultImproved  = "improved"
	ResultRejected  = "rejected"
	ResultWithdrawn = "withdrawn"
)

// RecordRouteUpdate increments the route update counter for the given
// outcome and syncs RoutesInstalled to the table's current size.
func (c *Collector) RecordRouteUpdate(result string, tableSize int) {
	c.RouteUpdates.WithLabelValues(result).Inc()
	c.RoutesInstalled.Set(float64(tableSize))
}

// -------------------------------------------------------------------------
// Packet Counters
// -------------------------------------------------------------------------

// RIP commands, matching the labelCommand values PacketsSent uses.
const (
	CommandRequest  = "request"
	CommandResponse = "response"
)

// Packet drop reasons, matching the labelReason values PacketsDropped uses.
const (
	ReasonMalformed     = "malformed"
	ReasonChecksum      = "checksum"
	ReasonTTLExpired    = "ttl_expired"
	ReasonNoRoute       = "no_route"
	ReasonARPUnresolved = "arp_unresolved"
)

// IncPacketsSent increments the transmitted datagram counter for the given
// command.
func (c *Collector) IncPacketsSent(command string) {
	c.PacketsSent.WithLabelValues(command).Inc()
}

// IncPacketsReceived increments the accepted-datagram counter.
func (c *Collector) IncPacketsReceived() {
	c.PacketsReceived.Inc()
}

// IncPacketsForwarded increments the forwarded-transit-datagram counter.
func (c *Collector) IncPacketsForwarded() {
	c.PacketsForwarded.Inc()
}

// IncPacketsDropped increments the dropped-datagram counter for the given
// reason.
func (c *Collector) IncPacketsDropped(reason string) {
	c.PacketsDropped.WithLabelValues(reason).Inc()
}

// -------------------------------------------------------------------------
// Response Kinds
// -------------------------------------------------------------------------

// IncPoisonedEchoes increments the poisoned-reverse echo counter.
func (c *Collector) IncPoisonedEchoes() {
	c.PoisonedEchoes.Inc()
}

// IncBroadcasts increments the periodic full-table broadcast counter.
func (c *Collector) IncBroadcasts() {
	c.Broadcasts.Inc()
}
