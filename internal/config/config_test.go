package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/postalsys/metroo-ping/internal/socket"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Ping.Timeout != 4*time.Second {
		t.Errorf("Ping.Timeout = %v, want 4s", cfg.Ping.Timeout)
	}
	if cfg.Ping.TTL != 64 {
		t.Errorf("Ping.TTL = %d, want 64", cfg.Ping.TTL)
	}
	if cfg.Ping.PayloadSize != 24 {
		t.Errorf("Ping.PayloadSize = %d, want 24", cfg.Ping.PayloadSize)
	}
	if cfg.Ping.SocketKind != "auto" {
		t.Errorf("Ping.SocketKind = %s, want auto", cfg.Ping.SocketKind)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %s, want info", cfg.Log.Level)
	}
	if cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled = true, want false")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default().Validate() error = %v", err)
	}
}

func TestParse_ValidConfig(t *testing.T) {
	yamlConfig := `
ping:
  timeout: 750ms
  ttl: 32
  payload_size: 56
  socket_kind: raw
  backend: xnet
  interface: eth0
  count: 10
  interval: 200ms

log:
  level: debug
  format: json

metrics:
  enabled: true
  address: "127.0.0.1:9100"
`

	cfg, err := Parse([]byte(yamlConfig))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Ping.Timeout != 750*time.Millisecond {
		t.Errorf("Ping.Timeout = %v, want 750ms", cfg.Ping.Timeout)
	}
	if cfg.Ping.TTL != 32 {
		t.Errorf("Ping.TTL = %d, want 32", cfg.Ping.TTL)
	}
	if cfg.Ping.PayloadSize != 56 {
		t.Errorf("Ping.PayloadSize = %d, want 56", cfg.Ping.PayloadSize)
	}
	if cfg.Ping.Kind() != socket.KindRaw {
		t.Errorf("Ping.Kind() = %v, want raw", cfg.Ping.Kind())
	}
	if cfg.Ping.SocketBackend() != socket.BackendXNet {
		t.Errorf("Ping.SocketBackend() = %v, want xnet", cfg.Ping.SocketBackend())
	}
	if cfg.Ping.Interface != "eth0" {
		t.Errorf("Ping.Interface = %s, want eth0", cfg.Ping.Interface)
	}
	if cfg.Ping.Count != 10 || cfg.Ping.Interval != 200*time.Millisecond {
		t.Errorf("Count/Interval = %d/%v, want 10/200ms", cfg.Ping.Count, cfg.Ping.Interval)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("Log = %+v, want debug/json", cfg.Log)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Address != "127.0.0.1:9100" {
		t.Errorf("Metrics = %+v", cfg.Metrics)
	}
	// Unset fields keep their defaults.
	if cfg.Metrics.ReadTimeout != 10*time.Second {
		t.Errorf("Metrics.ReadTimeout = %v, want 10s", cfg.Metrics.ReadTimeout)
	}
}

func TestParse_PartialConfigKeepsDefaults(t *testing.T) {
	cfg, err := Parse([]byte("ping:\n  count: 2\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Ping.Count != 2 {
		t.Errorf("Ping.Count = %d, want 2", cfg.Ping.Count)
	}
	if cfg.Ping.TTL != 64 {
		t.Errorf("Ping.TTL = %d, want 64", cfg.Ping.TTL)
	}
	if cfg.Ping.Kind() != socket.DefaultKind() {
		t.Errorf("Ping.Kind() = %v, want %v", cfg.Ping.Kind(), socket.DefaultKind())
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("ping: [unterminated"))
	if err == nil {
		t.Fatal("Parse() expected error for invalid YAML")
	}
	if !strings.Contains(err.Error(), "failed to parse config") {
		t.Errorf("error = %v, want parse failure", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero timeout", func(c *Config) { c.Ping.Timeout = 0 }, "ping.timeout"},
		{"ttl zero", func(c *Config) { c.Ping.TTL = 0 }, "ping.ttl"},
		{"ttl too large", func(c *Config) { c.Ping.TTL = 300 }, "ping.ttl"},
		{"negative payload", func(c *Config) { c.Ping.PayloadSize = -1 }, "ping.payload_size"},
		{"huge payload", func(c *Config) { c.Ping.PayloadSize = 70000 }, "ping.payload_size"},
		{"bad socket kind", func(c *Config) { c.Ping.SocketKind = "stream" }, "ping.socket_kind"},
		{"bad backend", func(c *Config) { c.Ping.Backend = "pcap" }, "ping.backend"},
		{"negative count", func(c *Config) { c.Ping.Count = -1 }, "ping.count"},
		{"negative interval", func(c *Config) { c.Ping.Interval = -time.Second }, "ping.interval"},
		{"bad log level", func(c *Config) { c.Log.Level = "trace" }, "log.level"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"metrics without address", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Address = "" }, "metrics.address"},
		{"metrics bad address", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Address = "localhost" }, "metrics.address"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Ping.TTL = 0
	cfg.Log.Format = "xml"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error")
	}
	if !strings.Contains(err.Error(), "ping.ttl") || !strings.Contains(err.Error(), "log.format") {
		t.Errorf("error = %v, want both problems reported", err)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("METROO_PING_TTL", "99")
	t.Setenv("METROO_PING_IFACE", "wlan0")

	tests := []struct {
		input string
		want  string
	}{
		{"ttl: ${METROO_PING_TTL}", "ttl: 99"},
		{"interface: $METROO_PING_IFACE", "interface: wlan0"},
		{"level: ${METROO_PING_UNSET:-warn}", "level: warn"},
		{"ttl: ${METROO_PING_TTL:-1}", "ttl: 99"},
		{"kept: ${METROO_PING_UNSET}", "kept: ${METROO_PING_UNSET}"},
	}

	for _, tc := range tests {
		if got := expandEnvVars(tc.input); got != tc.want {
			t.Errorf("expandEnvVars(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestParse_EnvExpansion(t *testing.T) {
	t.Setenv("METROO_PING_TTL", "17")

	cfg, err := Parse([]byte("ping:\n  ttl: ${METROO_PING_TTL}\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Ping.TTL != 17 {
		t.Errorf("Ping.TTL = %d, want 17", cfg.Ping.TTL)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metroo-ping.yaml")
	if err := os.WriteFile(path, []byte("log:\n  level: warn\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %s, want warn", cfg.Log.Level)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("Load() expected error for missing file")
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("error = %v, want not-exist", err)
	}
}

func TestString(t *testing.T) {
	s := Default().String()
	for _, want := range []string{"ping:", "ttl: 64", "log:", "metrics:"} {
		if !strings.Contains(s, want) {
			t.Errorf("String() missing %q:\n%s", want, s)
		}
	}
}

func TestPingConfig_AutoKind(t *testing.T) {
	tests := []struct {
		kind string
		want bool
	}{
		{"", true},
		{"auto", true},
		{" AUTO ", true},
		{"raw", false},
		{"dgram", false},
	}

	for _, tc := range tests {
		c := PingConfig{SocketKind: tc.kind}
		if got := c.AutoKind(); got != tc.want {
			t.Errorf("AutoKind(%q) = %v, want %v", tc.kind, got, tc.want)
		}
	}
}
