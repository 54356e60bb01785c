package config_test

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ripd-project/ripd/internal/config"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()

	if cfg.HTTP.Addr != ":8080" {
		t.Errorf("HTTP.Addr = %q, want %q", cfg.HTTP.Addr, ":8080")
	}

	if cfg.Metrics.Addr != ":9100" {
		t.Errorf("Metrics.Addr = %q, want %q", cfg.Metrics.Addr, ":9100")
	}

	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("Metrics.Path = %q, want %q", cfg.Metrics.Path, "/metrics")
	}

	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "info")
	}

	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want %q", cfg.Log.Format, "json")
	}

	if cfg.RIP.BroadcastInterval != 5*time.Second {
		t.Errorf("RIP.BroadcastInterval = %v, want %v", cfg.RIP.BroadcastInterval, 5*time.Second)
	}

	// DefaultConfig has no interfaces, so it does not pass validation on
	// its own; a caller must supply at least one before it's usable.
	if err := config.Validate(cfg); !errors.Is(err, config.ErrNoInterfaces) {
		t.Errorf("Validate(DefaultConfig()) error = %v, want %v", err, config.ErrNoInterfaces)
	}
}

func TestLoadFromYAML(t *testing.T) {
	t.Parallel()

	yamlContent := `
http:
  addr: ":9000"
metrics:
  addr: ":9200"
  path: "/custom-metrics"
log:
  level: "debug"
  format: "text"
rip:
  broadcast_interval: "10s"
interfaces:
  - name: eth0
    address: "10.0.0.1"
`

	path := writeTemp(t, yamlContent)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if cfg.HTTP.Addr != ":9000" {
		t.Errorf("HTTP.Addr = %q, want %q", cfg.HTTP.Addr, ":9000")
	}

	if cfg.Metrics.Addr != ":9200" {
		t.Errorf("Metrics.Addr = %q, want %q", cfg.Metrics.Addr, ":9200")
	}

	if cfg.Metrics.Path != "/custom-metrics" {
		t.Errorf("Metrics.Path = %q, want %q", cfg.Metrics.Path, "/custom-metrics")
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "debug")
	}

	if cfg.Log.Format != "text" {
		t.Errorf("Log.Format = %q, want %q", cfg.Log.Format, "text")
	}

	if cfg.RIP.BroadcastInterval != 10*time.Second {
		t.Errorf("RIP.BroadcastInterval = %v, want %v", cfg.RIP.BroadcastInterval, 10*time.Second)
	}

	if len(cfg.Interfaces) != 1 || cfg.Interfaces[0].Name != "eth0" || cfg.Interfaces[0].Address != "10.0.0.1" {
		t.Errorf("Interfaces = %+v, want one eth0/10.0.0.1 entry", cfg.Interfaces)
	}
}

func TestLoadMergesDefaults(t *testing.T) {
	t.Parallel()

	// Partial YAML: only override http.addr and log.level, plus the
	// required interface list. Everything else should inherit from
	// defaults.
	yamlContent := `
http:
  addr: ":9001"
log:
  level: "warn"
interfaces:
  - name: eth0
    address: "10.0.0.1"
`

	path := writeTemp(t, yamlContent)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if cfg.HTTP.Addr != ":9001" {
		t.Errorf("HTTP.Addr = %q, want %q", cfg.HTTP.Addr, ":9001")
	}

	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "warn")
	}

	if cfg.Metrics.Addr != ":9100" {
		t.Errorf("Metrics.Addr = %q, want default %q", cfg.Metrics.Addr, ":9100")
	}

	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("Metrics.Path = %q, want default %q", cfg.Metrics.Path, "/metrics")
	}

	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want default %q", cfg.Log.Format, "json")
	}

	if cfg.RIP.BroadcastInterval != 5*time.Second {
		t.Errorf("RIP.BroadcastInterval = %v, want default %v", cfg.RIP.BroadcastInterval, 5*time.Second)
	}
}

func TestValidateErrors(t *testing.T) {
	t.Parallel()

	baseInterfaces := []config.InterfaceConfig{{Name: "eth0", Address: "10.0.0.1"}}

	tests := []struct {
		name    string
		modify  func(*config.Config)
		wantErr error
	}{
		{
			name: "empty http addr",
			modify: func(cfg *config.Config) {
				cfg.Interfaces = baseInterfaces
				cfg.HTTP.Addr = ""
			},
			wantErr: config.ErrEmptyHTTPAddr,
		},
		{
			name: "zero broadcast interval",
			modify: func(cfg *config.Config) {
				cfg.Interfaces = baseInterfaces
				cfg.RIP.BroadcastInterval = 0
			},
			wantErr: config.ErrInvalidBroadcastInterval,
		},
		{
			name: "negative broadcast interval",
			modify: func(cfg *config.Config) {
				cfg.Interfaces = baseInterfaces
				cfg.RIP.BroadcastInterval = -1 * time.Second
			},
			wantErr: config.ErrInvalidBroadcastInterval,
		},
		{
			name: "no interfaces",
			modify: func(cfg *config.Config) {
				cfg.Interfaces = nil
			},
			wantErr: config.ErrNoInterfaces,
		},
		{
			name: "empty interface name",
			modify: func(cfg *config.Config) {
				cfg.Interfaces = []config.InterfaceConfig{{Name: "", Address: "10.0.0.1"}}
			},
			wantErr: config.ErrEmptyInterfaceName,
		},
		{
			name: "empty interface address",
			modify: func(cfg *config.Config) {
				cfg.Interfaces = []config.InterfaceConfig{{Name: "eth0", Address: ""}}
			},
			wantErr: config.ErrEmptyInterfaceAddress,
		},
		{
			name: "invalid interface address",
			modify: func(cfg *config.Config) {
				cfg.Interfaces = []config.InterfaceConfig{{Name: "eth0", Address: "not-an-ip"}}
			},
			wantErr: nil, // wrapped netip parse error; only a non-nil error is asserted
		},
		{
			name: "non-ipv4 interface address",
			modify: func(cfg *config.Config) {
				cfg.Interfaces = []config.InterfaceConfig{{Name: "eth0", Address: "::1"}}
			},
			wantErr: config.ErrNotIPv4,
		},
		{
			name: "duplicate interface name",
			modify: func(cfg *config.Config) {
				cfg.Interfaces = []config.InterfaceConfig{
					{Name: "eth0", Address: "10.0.0.1"},
					{Name: "eth0", Address: "10.0.1.1"},
				}
			},
			wantErr: config.ErrDuplicateInterfaceName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := config.DefaultConfig()
			tt.modify(cfg)

			err := config.Validate(cfg)
			if err == nil {
				t.Fatal("Validate() returned nil, want error")
			}

			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  slog.Level
	}{
		{input: "debug", want: slog.LevelDebug},
		{input: "DEBUG", want: slog.LevelDebug},
		{input: "info", want: slog.LevelInfo},
		{input: "INFO", want: slog.LevelInfo},
		{input: "warn", want: slog.LevelWarn},
		{input: "WARN", want: slog.LevelWarn},
		{input: "error", want: slog.LevelError},
		{input: "Error", want: slog.LevelError},
		{input: "unknown", want: slog.LevelInfo},
		{input: "", want: slog.LevelInfo},
		{input: "trace", want: slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			got := config.ParseLogLevel(tt.input)
			if got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLoadNonexistentFile(t *testing.T) {
	t.Parallel()

	_, err := config.Load("/nonexistent/path/config.yml")
	if err == nil {
		t.Fatal("Load() returned nil error for nonexistent file")
	}
}

func TestInterfaceConfigAddr(t *testing.T) {
	t.Parallel()

	ic := config.InterfaceConfig{Name: "eth0", Address: "10.0.0.1"}
	addr, err := ic.Addr()
	if err != nil {
		t.Fatalf("Addr() error: %v", err)
	}
	if addr.String() != "10.0.0.1" {
		t.Errorf("Addr() = %s, want 10.0.0.1", addr)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	// Environment variable tests cannot be parallel because they modify
	// process-wide state (os.Setenv).

	yamlContent := `
http:
  addr: ":8080"
log:
  level: "info"
interfaces:
  - name: eth0
    address: "10.0.0.1"
`
	path := writeTemp(t, yamlContent)

	t.Setenv("RIPD_HTTP_ADDR", ":9090")
	t.Setenv("RIPD_LOG_LEVEL", "debug")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if cfg.HTTP.Addr != ":9090" {
		t.Errorf("HTTP.Addr = %q, want %q (from env)", cfg.HTTP.Addr, ":9090")
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q (from env)", cfg.Log.Level, "debug")
	}
}

func TestLoadEnvOverridesMetrics(t *testing.T) {
	yamlContent := `
http:
  addr: ":8080"
metrics:
  addr: ":9100"
  path: "/metrics"
interfaces:
  - name: eth0
    address: "10.0.0.1"
`
	path := writeTemp(t, yamlContent)

	t.Setenv("RIPD_METRICS_ADDR", ":9200")
	t.Setenv("RIPD_METRICS_PATH", "/custom")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if cfg.Metrics.Addr != ":9200" {
		t.Errorf("Metrics.Addr = %q, want %q (from env)", cfg.Metrics.Addr, ":9200")
	}

	if cfg.Metrics.Path != "/custom" {
		t.Errorf("Metrics.Path = %q, want %q (from env)", cfg.Metrics.Path, "/custom")
	}
}

// writeTemp creates a temporary YAML file and returns its path.
// The file is automatically cleaned up when the test finishes.
func writeTemp(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "ripd.yml")

	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	return path
}
