// Command ripd is an embedded IPv4 software router speaking RIPv2 (RFC 2453).
package main

import (
	"context"
	"encoding/binary"
	"flag"
	"fmt"
	"log/slog"
	"net/netip"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/ripd-project/ripd/internal/config"
	"github.com/ripd-project/ripd/internal/ipv4"
	ripmetrics "github.com/ripd-project/ripd/internal/metrics"
	"github.com/ripd-project/ripd/internal/netio"
	"github.com/ripd-project/ripd/internal/router"
	"github.com/ripd-project/ripd/internal/server"
	"github.com/ripd-project/ripd/internal/table"
	appversion "github.com/ripd-project/ripd/internal/version"
)

// shutdownTimeout is the maximum time to wait for the HTTP server to drain
// active connections during graceful shutdown.
const shutdownTimeout = 10 * time.Second

// rawRecvBufferSize is the scratch buffer used to read one inbound frame
// off the link driver; comfortably larger than any Ethernet MTU.
const rawRecvBufferSize = 2048

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to configuration file (YAML)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("failed to load configuration",
			slog.String("error", err.Error()),
		)
		return 1
	}

	logger := newLogger(cfg.Log)

	logger.Info("ripd starting",
		slog.String("version", appversion.Version),
		slog.String("http_addr", cfg.HTTP.Addr),
		slog.String("metrics_addr", cfg.Metrics.Addr),
	)

	reg := prometheus.NewRegistry()
	collector := ripmetrics.NewCollector(reg)

	driver, err := netio.NewRawLinkDriver()
	if err != nil {
		logger.Error("failed to open raw link driver", slog.String("error", err.Error()))
		return 1
	}
	defer func() {
		if err := driver.Close(); err != nil {
			logger.Warn("failed to close raw link driver", slog.String("error", err.Error()))
		}
	}()

	interfaces, err := buildInterfaces(cfg.Interfaces)
	if err != nil {
		logger.Error("failed to resolve configured interfaces", slog.String("error", err.Error()))
		return 1
	}

	// The neighbor cache is the forwarding plane's ArpResolver; the
	// dispatcher populates it from the link-layer source of every inbound
	// frame.
	arpCache := netio.NewNeighborCache()

	rtr := router.New(interfaces, driver, arpCache,
		router.WithMetrics(collector),
		router.WithBroadcastInterval(uint64(cfg.RIP.BroadcastInterval.Microseconds())),
	)

	if err := rtr.Init(nowUsec()); err != nil {
		logger.Error("router init failed", slog.String("error", err.Error()))
		return 1
	}

	if err := runServers(cfg, rtr, driver, arpCache, reg, logger); err != nil {
		logger.Error("ripd exited with error", slog.String("error", err.Error()))
		return 1
	}

	logger.Info("ripd stopped")
	return 0
}

// event carries one unit of work into the single dispatch goroutine that
// owns the router. The router has no internal locking, so PerSec and
// ReceiveIPPacket must never run concurrently; every producer goroutine
// below only ever hands work to the dispatcher through this channel. A
// routing table snapshot for /routes takes the same path, so the HTTP
// server never reads the table while the control plane mutates it.
type event struct {
	tick     bool
	now      uint64
	datagram []byte
	srcMAC   netio.MAC
	ifIndex  int
	snapshot chan<- []table.Entry
	link     *netio.InterfaceEvent
}

// runServers wires the router's producer/dispatcher goroutines and the
// status HTTP server together under an errgroup with a signal-aware
// context, and blocks until graceful shutdown completes.
func runServers(
	cfg *config.Config,
	rtr *router.Router,
	driver *netio.RawLinkDriver,
	arpCache *netio.NeighborCache,
	reg *prometheus.Registry,
	logger *slog.Logger,
) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	events := make(chan event, 64)

	g.Go(func() error {
		return runTicker(gCtx, events)
	})

	g.Go(func() error {
		return runReceiver(gCtx, driver, events)
	})

	g.Go(func() error {
		return runDispatcher(gCtx, rtr, arpCache, events, logger)
	})

	mon := netio.NewStubInterfaceMonitor(logger)
	g.Go(func() error {
		return runLinkMonitor(gCtx, mon, events)
	})

	srv := server.New(cfg.HTTP.Addr, cfg.Metrics.Path, reg, snapshotRoutes(gCtx, events), logger)
	g.Go(func() error {
		logger.Info("http server listening", slog.String("addr", cfg.HTTP.Addr))
		return srv.ListenAndServe(gCtx)
	})

	g.Go(func() error {
		<-gCtx.Done()
		return gracefulShutdown(gCtx, srv, logger)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("run servers: %w", err)
	}
	return nil
}

// runTicker sends one tick event per second until ctx is cancelled.
func runTicker(ctx context.Context, events chan<- event) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			select {
			case events <- event{tick: true, now: nowUsec()}:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

// runReceiver reads frames off the link driver and forwards them as packet
// events until ctx is cancelled or the driver is closed out from under it.
func runReceiver(ctx context.Context, driver *netio.RawLinkDriver, events chan<- event) error {
	buf := make([]byte, rawRecvBufferSize)

	for {
		n, srcMAC, ifIndex, err := driver.Receive(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("receive: %w", err)
		}

		datagram := make([]byte, n)
		copy(datagram, buf[:n])

		select {
		case events <- event{datagram: datagram, srcMAC: srcMAC, ifIndex: ifIndex}:
		case <-ctx.Done():
			return nil
		}
	}
}

// runLinkMonitor runs the interface monitor and forwards its state-change
// events to the dispatcher.
func runLinkMonitor(ctx context.Context, mon netio.InterfaceMonitor, events chan<- event) error {
	go func() {
		for linkEv := range mon.Events() {
			select {
			case events <- event{link: &linkEv}:
			case <-ctx.Done():
				return
			}
		}
	}()

	defer mon.Close()
	return mon.Run(ctx)
}

// runDispatcher is the single goroutine that owns rtr and arpCache: it
// serializes every tick, inbound packet, link event, and snapshot request
// through the router's entry points, which the router itself never
// re-enters concurrently by contract. Each inbound frame first teaches the
// neighbor cache its sender's (interface, IP, MAC) binding, so the
// forwarding plane can resolve next hops without transmitting ARP itself.
func runDispatcher(ctx context.Context, rtr *router.Router, arpCache *netio.NeighborCache, events <-chan event, logger *slog.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			switch {
			case ev.tick:
				if err := rtr.PerSec(ev.now); err != nil {
					logger.Error("per-second tick failed", slog.String("error", err.Error()))
				}
			case ev.snapshot != nil:
				ev.snapshot <- rtr.Table().Snapshot()
			case ev.link != nil:
				handleLinkChange(rtr, *ev.link, logger)
			default:
				if len(ev.datagram) >= ipv4.HeaderLen {
					arpCache.Learn(ev.ifIndex, ipv4.SrcAddr(ev.datagram), ev.srcMAC)
				}
				if err := rtr.ReceiveIPPacket(ev.datagram, ev.srcMAC, ev.ifIndex); err != nil {
					logger.Error("packet processing failed", slog.String("error", err.Error()))
				}
			}
		}
	}
}

// handleLinkChange withdraws every learned route on a downed interface so
// neighbors stop being steered into a dead link before the next periodic
// advertisement cycle corrects them. Directly connected routes (metric 0)
// stay installed; the link coming back needs no relearning for those.
func handleLinkChange(rtr *router.Router, linkEv netio.InterfaceEvent, logger *slog.Logger) {
	if linkEv.Up {
		logger.Info("interface up", slog.String("interface", linkEv.IfName))
		return
	}

	logger.Warn("interface down, withdrawing learned routes",
		slog.String("interface", linkEv.IfName),
		slog.Int("if_index", linkEv.IfIndex),
	)
	for _, e := range rtr.Table().Snapshot() {
		if e.IfIndex == linkEv.IfIndex && e.Metric > 0 {
			rtr.Update(false, e)
		}
	}
}

// snapshotRoutes returns the server.RouteFunc that round-trips a snapshot
// request through the dispatcher. A request racing shutdown gets an empty
// table rather than blocking forever.
func snapshotRoutes(ctx context.Context, events chan<- event) server.RouteFunc {
	return func() []table.Entry {
		reply := make(chan []table.Entry, 1)
		select {
		case events <- event{snapshot: reply}:
		case <-ctx.Done():
			return nil
		}
		select {
		case snapshot := <-reply:
			return snapshot
		case <-ctx.Done():
			return nil
		}
	}
}

// gracefulShutdown stops the HTTP server within shutdownTimeout.
func gracefulShutdown(ctx context.Context, srv *server.Server, logger *slog.Logger) error {
	logger.Info("initiating graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

// buildInterfaces resolves each configured interface's kernel index and
// IPv4 address into the router.Interface shape the control plane runs on.
func buildInterfaces(configured []config.InterfaceConfig) ([]router.Interface, error) {
	interfaces := make([]router.Interface, 0, len(configured))
	for _, ic := range configured {
		addr, err := ic.Addr()
		if err != nil {
			return nil, err
		}

		ifIndex, err := netio.InterfaceIndex(ic.Name)
		if err != nil {
			return nil, fmt.Errorf("resolve interface %q: %w", ic.Name, err)
		}

		interfaces = append(interfaces, router.Interface{
			Addr:    addrToUint32(addr),
			IfIndex: ifIndex,
		})
	}
	return interfaces, nil
}

// addrToUint32 converts an IPv4 netip.Addr to the control plane's
// network-order uint32 address representation (10.0.0.1 -> 0x0A000001).
func addrToUint32(addr netip.Addr) uint32 {
	b := addr.As4()
	return binary.BigEndian.Uint32(b[:])
}

// nowUsec returns the current time as the microsecond clock value the
// router's entry points expect.
func nowUsec() uint64 {
	return uint64(time.Now().UnixMicro())
}

// loadConfig loads configuration from a file path or returns defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load config from %s: %w", path, err)
		}
		return cfg, nil
	}
	return config.DefaultConfig(), nil
}

// newLogger creates a structured logger per the configured level and format.
func newLogger(cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: config.ParseLogLevel(cfg.Level)}

	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
