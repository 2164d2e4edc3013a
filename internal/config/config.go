// Package config provides configuration parsing and validation for metroo-ping.
package config

import (
	"fmt"
	"net"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/postalsys/metroo-ping/internal/logging"
	"github.com/postalsys/metroo-ping/internal/ping"
	"github.com/postalsys/metroo-ping/internal/socket"
)

// Config represents the complete metroo-ping configuration.
type Config struct {
	Ping    PingConfig    `yaml:"ping"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// PingConfig contains echo exchange settings.
type PingConfig struct {
	Timeout     time.Duration `yaml:"timeout"`
	TTL         int           `yaml:"ttl"`
	PayloadSize int           `yaml:"payload_size"`
	SocketKind  string        `yaml:"socket_kind"` // raw, dgram, auto
	Backend     string        `yaml:"backend"`     // system, xnet, auto
	Interface   string        `yaml:"interface"`   // Linux only
	Count       int           `yaml:"count"`       // 0 runs until interrupted
	Interval    time.Duration `yaml:"interval"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// MetricsConfig defines the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Address      string        `yaml:"address"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Ping: PingConfig{
			Timeout:     ping.DefaultTimeout,
			TTL:         ping.DefaultTTL,
			PayloadSize: ping.DefaultPayloadSize,
			SocketKind:  "auto",
			Backend:     "auto",
			Count:       4,
			Interval:    time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled:      false,
			Address:      "127.0.0.1:9464",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}
}

// Load reads and parses a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse parses configuration from YAML bytes.
func Parse(data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	cfg := Default()

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// envVarRegex matches ${VAR} or $VAR patterns
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// expandEnvVars replaces environment variable references with their values.
func expandEnvVars(s string) string {
	return envVarRegex.ReplaceAllStringFunc(s, func(match string) string {
		var name string
		if strings.HasPrefix(match, "${") {
			name = match[2 : len(match)-1]
		} else {
			name = match[1:]
		}

		// ${VAR:-default}
		if idx := strings.Index(name, ":-"); idx != -1 {
			if val, ok := os.LookupEnv(name[:idx]); ok {
				return val
			}
			return name[idx+2:]
		}

		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		return match
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Ping.Timeout <= 0 {
		errs = append(errs, "ping.timeout must be positive")
	}
	if c.Ping.TTL < 1 || c.Ping.TTL > 255 {
		errs = append(errs, "ping.ttl must be between 1 and 255")
	}
	if c.Ping.PayloadSize < 0 || c.Ping.PayloadSize > ping.MaxPayloadSize {
		errs = append(errs, fmt.Sprintf("ping.payload_size must be between 0 and %d", ping.MaxPayloadSize))
	}
	if _, err := socket.ParseKind(c.Ping.SocketKind); err != nil {
		errs = append(errs, fmt.Sprintf("ping.socket_kind: %v", err))
	}
	if _, err := socket.ParseBackend(c.Ping.Backend); err != nil {
		errs = append(errs, fmt.Sprintf("ping.backend: %v", err))
	}
	if c.Ping.Count < 0 {
		errs = append(errs, "ping.count must not be negative")
	}
	if c.Ping.Interval < 0 {
		errs = append(errs, "ping.interval must not be negative")
	}

	if !logging.ValidLevel(c.Log.Level) {
		errs = append(errs, fmt.Sprintf("invalid log.level: %s (must be debug, info, warn, or error)", c.Log.Level))
	}
	if !logging.ValidFormat(c.Log.Format) {
		errs = append(errs, fmt.Sprintf("invalid log.format: %s (must be text or json)", c.Log.Format))
	}

	if c.Metrics.Enabled {
		if c.Metrics.Address == "" {
			errs = append(errs, "metrics.address is required when enabled")
		} else if _, _, err := net.SplitHostPort(c.Metrics.Address); err != nil {
			errs = append(errs, fmt.Sprintf("metrics.address: %v", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// Kind returns the parsed socket kind. Call after Validate.
func (c *PingConfig) Kind() socket.Kind {
	k, _ := socket.ParseKind(c.SocketKind)
	return k
}

// AutoKind reports whether the socket kind is left to the platform default.
func (c *PingConfig) AutoKind() bool {
	switch strings.ToLower(strings.TrimSpace(c.SocketKind)) {
	case "", "auto":
		return true
	default:
		return false
	}
}

// SocketBackend returns the parsed socket backend. Call after Validate.
func (c *PingConfig) SocketBackend() socket.Backend {
	b, _ := socket.ParseBackend(c.Backend)
	return b
}

// String returns the configuration as YAML.
func (c *Config) String() string {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Sprintf("error marshaling config: %v", err)
	}
	return string(data)
}
