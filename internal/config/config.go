// Package config manages ripd daemon configuration using koanf/v2.
//
// Supports YAML files, environment variables, and built-in defaults,
// layered in that order.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// -------------------------------------------------------------------------
// Configuration Structures
// -------------------------------------------------------------------------

// Config holds the complete ripd configuration.
type Config struct {
	HTTP       HTTPConfig        `koanf:"http"`
	Metrics    MetricsConfig     `koanf:"metrics"`
	Log        LogConfig         `koanf:"log"`
	RIP        RIPConfig         `koanf:"rip"`
	Interfaces []InterfaceConfig `koanf:"interfaces"`
}

// HTTPConfig holds the plain status/control HTTP endpoint configuration.
type HTTPConfig struct {
	// Addr is the HTTP listen address (e.g., ":8080").
	Addr string `koanf:"addr"`
}

// MetricsConfig holds the Prometheus metrics endpoint configuration.
type MetricsConfig struct {
	// Addr is a metrics listen address (e.g., ":9100"). The daemon only logs
	// it at startup; the metrics endpoint is served by the status HTTP
	// server on HTTP.Addr, under Path.
	Addr string `koanf:"addr"`
	// Path is the URL path for the metrics endpoint (e.g., "/metrics").
	Path string `koanf:"path"`
}

// LogConfig holds the logging configuration.
type LogConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `koanf:"level"`
	// Format is the log output format: "json" or "text".
	Format string `koanf:"format"`
}

// RIPConfig holds tunables for the control plane.
type RIPConfig struct {
	// BroadcastInterval is the periodic full-table advertisement interval.
	// RFC 2453 Section 3.8 (and this router's source) fix this at 5s; the
	// field exists so a deployment can widen it, not to emulate triggered
	// updates with jitter (out of scope).
	BroadcastInterval time.Duration `koanf:"broadcast_interval"`
}

// InterfaceConfig describes one physical interface the control plane
// installs a directly connected route for and advertises RIP on.
type InterfaceConfig struct {
	// Name is the OS network interface name (e.g., "eth0").
	Name string `koanf:"name"`

	// Address is the interface's IPv4 address (e.g., "10.0.0.1").
	Address string `koanf:"address"`
}

// Addr parses Address as a netip.Addr.
func (ic InterfaceConfig) Addr() (netip.Addr, error) {
	if ic.Address == "" {
		return netip.Addr{}, fmt.Errorf("interface %q: %w", ic.Name, ErrEmptyInterfaceAddress)
	}
	addr, err := netip.ParseAddr(ic.Address)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("parse interface %q address %q: %w", ic.Name, ic.Address, err)
	}
	if !addr.Is4() {
		return netip.Addr{}, fmt.Errorf("interface %q address %q: %w", ic.Name, ic.Address, ErrNotIPv4)
	}
	return addr, nil
}

// -------------------------------------------------------------------------
// Defaults
// -------------------------------------------------------------------------

// DefaultConfig returns a Config populated with sensible defaults. There is
// no default interface list; at least one must be supplied by the loaded
// file or environment for Validate to succeed.
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
		Metrics: MetricsConfig{
			Addr: ":9100",
			Path: "/metrics",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		RIP: RIPConfig{
			BroadcastInterval: 5 * time.Second,
		},
	}
}

// -------------------------------------------------------------------------
// Loader
// -------------------------------------------------------------------------

// envPrefix is the environment variable prefix for ripd configuration.
// Variables are named RIPD_<section>_<key>, e.g., RIPD_HTTP_ADDR.
const envPrefix = "RIPD_"

// Load reads configuration from a YAML file at path, overlays environment
// variable overrides (RIPD_ prefix), and merges on top of DefaultConfig().
// Missing fields inherit defaults.
//
// Environment variable mapping:
//
//	RIPD_HTTP_ADDR              -> http.addr
//	RIPD_METRICS_ADDR           -> metrics.addr
//	RIPD_METRICS_PATH           -> metrics.path
//	RIPD_LOG_LEVEL              -> log.level
//	RIPD_LOG_FORMAT             -> log.format
//	RIPD_RIP_BROADCAST_INTERVAL -> rip.broadcast_interval
//
// Uses koanf/v2 with file + env providers and YAML parser.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := DefaultConfig()
	if err := loadDefaults(k, defaults); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load config from %s: %w", path, err)
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config from %s: %w", path, err)
	}

	return cfg, nil
}

// envKeyMapper transforms RIPD_HTTP_ADDR -> http.addr.
// Strips the RIPD_ prefix, lowercases, and replaces the first _ (the
// section separator) with . so keys such as broadcast_interval keep theirs.
func envKeyMapper(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)
	return strings.Replace(s, "_", ".", 1)
}

// loadDefaults marshals the default config into koanf as the base layer.
func loadDefaults(k *koanf.Koanf, defaults *Config) error {
	defaultMap := map[string]any{
		"http.addr":              defaults.HTTP.Addr,
		"metrics.addr":           defaults.Metrics.Addr,
		"metrics.path":           defaults.Metrics.Path,
		"log.level":              defaults.Log.Level,
		"log.format":             defaults.Log.Format,
		"rip.broadcast_interval": defaults.RIP.BroadcastInterval.String(),
	}

	for key, val := range defaultMap {
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

// -------------------------------------------------------------------------
// Validation
// -------------------------------------------------------------------------

// Validation errors.
var (
	// ErrEmptyHTTPAddr indicates the HTTP listen address is empty.
	ErrEmptyHTTPAddr = errors.New("http.addr must not be empty")

	// ErrInvalidBroadcastInterval indicates the broadcast interval is not positive.
	ErrInvalidBroadcastInterval = errors.New("rip.broadcast_interval must be > 0")

	// ErrNoInterfaces indicates no interfaces were configured.
	ErrNoInterfaces = errors.New("at least one interface must be configured")

	// ErrEmptyInterfaceName indicates an interface entry has no name.
	ErrEmptyInterfaceName = errors.New("interface name must not be empty")

	// ErrEmptyInterfaceAddress indicates an interface entry has no address.
	ErrEmptyInterfaceAddress = errors.New("interface address must not be empty")

	// ErrNotIPv4 indicates an interface address is not an IPv4 address.
	ErrNotIPv4 = errors.New("interface address must be IPv4")

	// ErrDuplicateInterfaceName indicates two interface entries share a name.
	ErrDuplicateInterfaceName = errors.New("duplicate interface name")
)

// Validate checks the configuration for logical errors.
// Returns the first validation error encountered.
func Validate(cfg *Config) error {
	if cfg.HTTP.Addr == "" {
		return ErrEmptyHTTPAddr
	}

	if cfg.RIP.BroadcastInterval <= 0 {
		return ErrInvalidBroadcastInterval
	}

	return validateInterfaces(cfg.Interfaces)
}

// validateInterfaces checks each configured interface entry for correctness.
func validateInterfaces(interfaces []InterfaceConfig) error {
	if len(interfaces) == 0 {
		return ErrNoInterfaces
	}

	seen := make(map[string]struct{}, len(interfaces))
	for i, ic := range interfaces {
		if ic.Name == "" {
			return fmt.Errorf("interfaces[%d]: %w", i, ErrEmptyInterfaceName)
		}
		if _, err := ic.Addr(); err != nil {
			return fmt.Errorf("interfaces[%d]: %w", i, err)
		}
		if _, dup := seen[ic.Name]; dup {
			return fmt.Errorf("interfaces[%d] name %q: %w", i, ic.Name, ErrDuplicateInterfaceName)
		}
		seen[ic.Name] = struct{}{}
	}

	return nil
}

// -------------------------------------------------------------------------
// Log Level Parsing
// -------------------------------------------------------------------------

// ParseLogLevel maps a configuration log level string to the corresponding
// slog.Level. Unknown values default to slog.LevelInfo.
//
// Recognized values: "debug", "info", "warn", "error" (case-insensitive).
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
