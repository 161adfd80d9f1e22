// Package config provides TOML configuration loading for Huginn.
//
// The configuration file supports the following structure:
//
//	[association]
//	threshold_rt = 0.0
//
//	[noise]
//	range_vr = 3.0
//	bearing_vb = 0.45
//	process_c = 1.65
//	no_bearing = false
//
//	[logging]
//	level = "info"
//	json = true
//
//	[metrics]
//	enabled = true
//	listen_addr = ":9090"
//
//	[snapshot]
//	buffer_size = 16
//	websocket_addr = ":8088"
//
// Example usage:
//
//	cfg, err := config.Load("huginn.toml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Association threshold: %f\n", cfg.Association.ThresholdRT)
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config is the complete configuration for the estimator and its
// surrounding services.
type Config struct {
	Association AssociationConfig `toml:"association"`
	Noise       NoiseConfig       `toml:"noise"`
	Logging     LoggingConfig     `toml:"logging"`
	Metrics     MetricsConfig     `toml:"metrics"`
	Snapshot    SnapshotConfig    `toml:"snapshot"`
}

// AssociationConfig holds data-association tunables.
type AssociationConfig struct {
	// ThresholdRT gates whether an observation matches an existing
	// landmark or seeds a new one (default: 0.0 — every observation
	// seeds a new landmark; see the Association section for why this
	// default is retained as-is).
	ThresholdRT float64 `toml:"threshold_rt"`
}

// NoiseConfig holds process and measurement noise tunables.
type NoiseConfig struct {
	// RangeVr scales range measurement noise (default: 3.0).
	RangeVr float64 `toml:"range_vr"`
	// BearingVb scales bearing measurement noise (default: 0.45).
	BearingVb float64 `toml:"bearing_vb"`
	// ProcessC is the process-noise intensity applied to raw motion
	// increments (default: 1.65).
	ProcessC float64 `toml:"process_c"`
	// NoBearing collapses the measurement model to range-only
	// (default: false).
	NoBearing bool `toml:"no_bearing"`
}

// LoggingConfig controls the logrus logger.
type LoggingConfig struct {
	// Level is one of "debug", "info", "warn" or "error"; any other
	// value selects info (default: "info").
	Level string `toml:"level"`
	// JSON selects the JSON formatter over the text formatter
	// (default: true).
	JSON bool `toml:"json"`
}

// MetricsConfig controls the Prometheus metrics HTTP endpoint.
type MetricsConfig struct {
	// Enabled turns on the /metrics HTTP endpoint (default: true).
	Enabled bool `toml:"enabled"`
	// ListenAddr is the metrics server bind address (default: ":9090").
	ListenAddr string `toml:"listen_addr"`
}

// SnapshotConfig controls snapshot publication.
type SnapshotConfig struct {
	// BufferSize is the non-blocking output channel capacity
	// (default: 16).
	BufferSize int `toml:"buffer_size"`
	// WebSocketAddr is a bind address for a snapshot WebSocket server
	// (default: ":8088"). cmd/huginn does not read it and starts no
	// WebSocket server; its snapshots go only to a ChannelSink.
	WebSocketAddr string `toml:"websocket_addr"`
}

// Default returns the default configuration, matching the estimator's
// documented defaults.
func Default() *Config {
	return &Config{
		Association: AssociationConfig{
			ThresholdRT: 0.0,
		},
		Noise: NoiseConfig{
			RangeVr:   3.0,
			BearingVb: 0.45,
			ProcessC:  1.65,
			NoBearing: false,
		},
		Logging: LoggingConfig{
			Level: "info",
			JSON:  true,
		},
		Metrics: MetricsConfig{
			Enabled:    true,
			ListenAddr: ":9090",
		},
		Snapshot: SnapshotConfig{
			BufferSize:    16,
			WebSocketAddr: ":8088",
		},
	}
}

// Load reads and parses a TOML configuration file. If the file does not
// exist, it returns the default configuration.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Association.ThresholdRT < 0 {
		return fmt.Errorf("association threshold_rt must be non-negative, got %f", c.Association.ThresholdRT)
	}
	if c.Noise.RangeVr < 0 {
		return fmt.Errorf("noise range_vr must be non-negative, got %f", c.Noise.RangeVr)
	}
	if c.Noise.BearingVb < 0 {
		return fmt.Errorf("noise bearing_vb must be non-negative, got %f", c.Noise.BearingVb)
	}
	if c.Noise.ProcessC < 0 {
		return fmt.Errorf("noise process_c must be non-negative, got %f", c.Noise.ProcessC)
	}
	if c.Snapshot.BufferSize <= 0 {
		return fmt.Errorf("snapshot buffer_size must be positive, got %d", c.Snapshot.BufferSize)
	}
	return nil
}
