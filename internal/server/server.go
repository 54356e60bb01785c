// Package server implements the HTTP status surface for the RIP daemon:
// the Prometheus metrics endpoint and a JSON snapshot of the routing
// table consumed by ripdctl.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ripd-project/ripd/internal/table"
)

// readHeaderTimeout bounds how long a client may take to send request
// headers before the connection is dropped.
const readHeaderTimeout = 10 * time.Second

// RouteFunc returns a consistent snapshot of the routing table. The daemon
// supplies a function that round-trips through its dispatcher goroutine, so
// the table is never read concurrently with a control-plane mutation.
type RouteFunc func() []table.Entry

// Server serves the daemon's status endpoints over plain HTTP.
//
// The server is a thin adapter between HTTP and the control plane: every
// handler delegates to the supplied RouteFunc or Prometheus gatherer and
// holds no state of its own.
type Server struct {
	http   *http.Server
	logger *slog.Logger
}

// New builds a Server listening on addr, exposing the gatherer's metrics at
// metricsPath and the routing table snapshot at /routes. All handlers run
// behind the recovery and logging middleware.
func New(addr, metricsPath string, gatherer prometheus.Gatherer, routes RouteFunc, logger *slog.Logger) *Server {
	log := logger.With(slog.String("component", "server"))

	mux := http.NewServeMux()
	mux.Handle(metricsPath, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.Handle("/routes", routesHandler(routes))

	handler := RecoveryMiddleware(log)(LoggingMiddleware(log)(mux))

	return &Server{
		http: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: readHeaderTimeout,
		},
		logger: log,
	}
}

// Handler returns the server's root handler, exposed for in-process tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// ListenAndServe creates the TCP listener through net.ListenConfig and
// serves requests until Shutdown is called. A server closed by Shutdown
// returns nil.
func (s *Server) ListenAndServe(ctx context.Context) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.http.Addr, err)
	}
	if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve on %s: %w", s.http.Addr, err)
	}
	return nil
}

// Shutdown drains active connections and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

// routeView is the JSON shape of one routing table entry returned by
// /routes. ripdctl's routes command decodes exactly this shape.
type routeView struct {
	Network string `json:"network"`
	NextHop string `json:"next_hop"`
	IfIndex int    `json:"if_index"`
	Metric  uint8  `json:"metric"`
}

// routesHandler serves the current routing table as a JSON array.
func routesHandler(routes RouteFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		snapshot := routes()
		views := make([]routeView, 0, len(snapshot))
		for _, e := range snapshot {
			views = append(views, routeView{
				Network: fmt.Sprintf("%s/%d", ipString(e.Addr), e.Len),
				NextHop: ipString(e.NextHop),
				IfIndex: e.IfIndex,
				Metric:  e.Metric,
			})
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(views); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
}

// ipString renders a control-plane uint32 address in dotted-decimal form.
func ipString(addr uint32) string {
	return netip.AddrFrom4([4]byte{
		byte(addr >> 24),
		byte(addr >> 16),
		byte(addr >> 8),
		byte(addr),
	}).String()
}
