package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Association.ThresholdRT != 0.0 {
		t.Errorf("expected ThresholdRT 0.0, got %f", cfg.Association.ThresholdRT)
	}
	if cfg.Noise.RangeVr != 3.0 {
		t.Errorf("expected RangeVr 3.0, got %f", cfg.Noise.RangeVr)
	}
	if cfg.Noise.BearingVb != 0.45 {
		t.Errorf("expected BearingVb 0.45, got %f", cfg.Noise.BearingVb)
	}
	if cfg.Noise.ProcessC != 1.65 {
		t.Errorf("expected ProcessC 1.65, got %f", cfg.Noise.ProcessC)
	}
	if cfg.Noise.NoBearing {
		t.Error("expected NoBearing to be false")
	}
	if cfg.Snapshot.BufferSize != 16 {
		t.Errorf("expected BufferSize 16, got %d", cfg.Snapshot.BufferSize)
	}
	if !cfg.Metrics.Enabled {
		t.Error("expected Metrics.Enabled to be true")
	}
}

func TestLoad_EmptyPath(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg == nil {
		t.Fatal("expected non-nil config")
	}
}

func TestLoad_NonExistentFile(t *testing.T) {
	cfg, err := Load("/nonexistent/path/huginn.toml")
	if err != nil {
		t.Fatalf("unexpected error for non-existent file: %v", err)
	}
	if cfg == nil {
		t.Fatal("expected default config for non-existent file")
	}
}

func TestLoad_ValidFile(t *testing.T) {
	content := `
[association]
threshold_rt = 1.5

[noise]
range_vr = 2.0
bearing_vb = 0.3
process_c = 1.0
no_bearing = true

[snapshot]
buffer_size = 4
websocket_addr = ":9999"
`
	dir := t.TempDir()
	path := filepath.Join(dir, "huginn.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Association.ThresholdRT != 1.5 {
		t.Errorf("expected ThresholdRT 1.5, got %f", cfg.Association.ThresholdRT)
	}
	if cfg.Noise.RangeVr != 2.0 {
		t.Errorf("expected RangeVr 2.0, got %f", cfg.Noise.RangeVr)
	}
	if !cfg.Noise.NoBearing {
		t.Error("expected NoBearing to be true")
	}
	if cfg.Snapshot.BufferSize != 4 {
		t.Errorf("expected BufferSize 4, got %d", cfg.Snapshot.BufferSize)
	}
	if cfg.Snapshot.WebSocketAddr != ":9999" {
		t.Errorf("expected WebSocketAddr :9999, got %s", cfg.Snapshot.WebSocketAddr)
	}
}

func TestLoad_InvalidTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "invalid.toml")
	if err := os.WriteFile(path, []byte("invalid [ toml"), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	_, err := Load(path)
	if err == nil {
		t.Error("expected error for invalid TOML")
	}
}

func TestValidate_InvalidThreshold(t *testing.T) {
	cfg := Default()
	cfg.Association.ThresholdRT = -1
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for negative threshold_rt")
	}
}

func TestValidate_InvalidNoise(t *testing.T) {
	cfg := Default()
	cfg.Noise.RangeVr = -1
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for negative range_vr")
	}

	cfg = Default()
	cfg.Noise.BearingVb = -1
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for negative bearing_vb")
	}

	cfg = Default()
	cfg.Noise.ProcessC = -1
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for negative process_c")
	}
}

func TestValidate_InvalidBufferSize(t *testing.T) {
	cfg := Default()
	cfg.Snapshot.BufferSize = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for buffer_size 0")
	}
}
