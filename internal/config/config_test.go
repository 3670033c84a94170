package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fleetwatch.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "log_level: debug\nstorage:\n  driver: memory\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("log level: %s", cfg.LogLevel)
	}
	if cfg.Risk.DefaultWindow != 5 || cfg.Risk.MaxWindow != 50 {
		t.Fatalf("risk window defaults: %+v", cfg.Risk)
	}
	if cfg.Ingest.ChannelBuffer != 10000 {
		t.Fatalf("channel buffer default: %d", cfg.Ingest.ChannelBuffer)
	}
}

func TestLoadJSON(t *testing.T) {
	path := writeConfig(t, `{"log_level":"warn","storage":{"driver":"memory"}}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("log level: %s", cfg.LogLevel)
	}
}

func TestLoadRejectsBadThresholds(t *testing.T) {
	path := writeConfig(t, `
storage:
  driver: memory
risk:
  thresholds:
    low_max: 0.5
    medium_max: 0.5
    high_max: 0.75
`)
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "strictly increasing") {
		t.Fatalf("expected threshold validation error, got %v", err)
	}
}

func TestLoadRejectsBadWeights(t *testing.T) {
	path := writeConfig(t, `
storage:
  driver: memory
risk:
  weights:
    temperature: 0.5
    vibration: 0.5
    pressure: 0.5
`)
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "sum to 1.0") {
		t.Fatalf("expected weight validation error, got %v", err)
	}
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	path := writeConfig(t, "storage:\n  driver: cassandra\n")
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "unsupported") {
		t.Fatalf("expected driver validation error, got %v", err)
	}
}

func TestValidateDefaultConfig(t *testing.T) {
	if err := Validate(DefaultConfig()); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

func TestManagerUpdateRejectsInvalid(t *testing.T) {
	path := writeConfig(t, "storage:\n  driver: memory\n")
	m, err := NewManager(path)
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	next := *m.Get()
	next.Risk.Decay = 2.0
	if err := m.Update(&next); err == nil {
		t.Fatalf("expected update to reject decay > 1")
	}
	if m.Get().Risk.Decay == 2.0 {
		t.Fatalf("rejected update must not be stored")
	}
}
