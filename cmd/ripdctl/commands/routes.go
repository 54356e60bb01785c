package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

const (
	formatJSON  = "json"
	formatTable = "table"
)

// errUnsupportedFormat is returned when the requested output format is not supported.
var errUnsupportedFormat = errors.New("unsupported output format")

// httpClient is shared by every command that talks to the ripd daemon's
// status endpoint.
var httpClient = &http.Client{Timeout: 5 * time.Second}

// routeView mirrors the JSON shape served by ripd's /routes endpoint.
type routeView struct {
	Network string `json:"network"`
	NextHop string `json:"next_hop"`
	IfIndex int    `json:"if_index"`
	Metric  uint8  `json:"metric"`
}

func routesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "Show the ripd daemon's routing table",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			routes, err := fetchRoutes(serverAddr)
			if err != nil {
				return fmt.Errorf("fetch routes: %w", err)
			}

			out, err := formatRoutes(routes, outputFormat)
			if err != nil {
				return fmt.Errorf("format routes: %w", err)
			}

			fmt.Print(out)
			return nil
		},
	}
}

// fetchRoutes requests and decodes the routing table from the ripd
// daemon's /routes endpoint at addr.
func fetchRoutes(addr string) ([]routeView, error) {
	resp, err := httpClient.Get("http://" + addr + "/routes")
	if err != nil {
		return nil, fmt.Errorf("request %s/routes: %w", addr, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var routes []routeView
	if err := json.NewDecoder(resp.Body).Decode(&routes); err != nil {
		return nil, fmt.Errorf("decode routes: %w", err)
	}
	return routes, nil
}

// formatRoutes renders routes in the requested format.
func formatRoutes(routes []routeView, format string) (string, error) {
	switch format {
	case formatJSON:
		return formatRoutesJSON(routes)
	case formatTable:
		return formatRoutesTable(routes)
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedFormat, format)
	}
}

func formatRoutesTable(routes []routeView) (string, error) {
	var buf strings.Builder
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NETWORK\tNEXT-HOP\tIF-INDEX\tMETRIC")

	for _, r := range routes {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", r.Network, r.NextHop, r.IfIndex, r.Metric)
	}

	if err := w.Flush(); err != nil {
		return "", fmt.Errorf("flush tabwriter: %w", err)
	}
	return buf.String(), nil
}

func formatRoutesJSON(routes []routeView) (string, error) {
	data, err := json.MarshalIndent(routes, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal routes to JSON: %w", err)
	}
	return string(data) + "\n", nil
}
