package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LogLevel  string          `json:"log_level" yaml:"log_level"`
	LogFormat string          `json:"log_format" yaml:"log_format"`
	API       APIConfig       `json:"api" yaml:"api"`
	Ingest    IngestConfig    `json:"ingest" yaml:"ingest"`
	Risk      RiskConfig      `json:"risk" yaml:"risk"`
	Storage   StorageConfig   `json:"storage" yaml:"storage"`
	Stats     StatsConfig     `json:"stats" yaml:"stats"`
	Generator GeneratorConfig `json:"generator" yaml:"generator"`
}

type APIConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

type IngestConfig struct {
	ChannelBuffer int             `json:"channel_buffer" yaml:"channel_buffer"`
	DedupeWindow  time.Duration   `json:"dedupe_window" yaml:"dedupe_window"`
	Kafka         KafkaConfig     `json:"kafka" yaml:"kafka"`
	TCPStream     TCPStreamConfig `json:"tcp_stream" yaml:"tcp_stream"`
	FileTail      FileTailConfig  `json:"file_tail" yaml:"file_tail"`
}

type KafkaConfig struct {
	Enabled bool     `json:"enabled" yaml:"enabled"`
	Brokers []string `json:"brokers" yaml:"brokers"`
	Topic   string   `json:"topic" yaml:"topic"`
	GroupID string   `json:"group_id" yaml:"group_id"`
}

type TCPStreamConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

type FileTailConfig struct {
	Enabled    bool     `json:"enabled" yaml:"enabled"`
	StartAtEnd bool     `json:"start_at_end" yaml:"start_at_end"`
	Files      []string `json:"files" yaml:"files"`
}

// RiskConfig is the full scoring policy. It is immutable once handed to
// the engine; runtime updates build a new engine from a new value.
type RiskConfig struct {
	DefaultWindow int              `json:"default_window" yaml:"default_window"`
	MaxWindow     int              `json:"max_window" yaml:"max_window"`
	Decay         float64          `json:"decay" yaml:"decay"`
	WeightEpsilon float64          `json:"weight_epsilon" yaml:"weight_epsilon"`
	Weights       WeightsConfig    `json:"weights" yaml:"weights"`
	Thresholds    ThresholdsConfig `json:"thresholds" yaml:"thresholds"`
	Channels      ChannelsConfig   `json:"channels" yaml:"channels"`
}

type WeightsConfig struct {
	Temperature float64 `json:"temperature" yaml:"temperature"`
	Vibration   float64 `json:"vibration" yaml:"vibration"`
	Pressure    float64 `json:"pressure" yaml:"pressure"`
}

// ThresholdsConfig maps a score to a level. A score <= LowMax is LOW,
// <= MediumMax is MEDIUM, <= HighMax is HIGH, above that CRITICAL.
// Boundaries must be strictly increasing.
type ThresholdsConfig struct {
	LowMax    float64 `json:"low_max" yaml:"low_max"`
	MediumMax float64 `json:"medium_max" yaml:"medium_max"`
	HighMax   float64 `json:"high_max" yaml:"high_max"`
}

type ChannelsConfig struct {
	Temperature ChannelBounds `json:"temperature" yaml:"temperature"`
	Vibration   ChannelBounds `json:"vibration" yaml:"vibration"`
	Pressure    ChannelBounds `json:"pressure" yaml:"pressure"`
}

// ChannelBounds define the safe band and the clamp points for one sensor
// channel. Deviation is 0 inside [NominalMin, NominalMax] and reaches 1
// at CriticalMin/CriticalMax.
type ChannelBounds struct {
	NominalMin  float64 `json:"nominal_min" yaml:"nominal_min"`
	NominalMax  float64 `json:"nominal_max" yaml:"nominal_max"`
	CriticalMin float64 `json:"critical_min" yaml:"critical_min"`
	CriticalMax float64 `json:"critical_max" yaml:"critical_max"`
}

type StorageConfig struct {
	Driver string `json:"driver" yaml:"driver"`
	DSN    string `json:"dsn" yaml:"dsn"`
}

type StatsConfig struct {
	AssetLimit  int `json:"asset_limit" yaml:"asset_limit"`
	RecentLimit int `json:"recent_limit" yaml:"recent_limit"`
}

type GeneratorConfig struct {
	APIBase  string        `json:"api_base" yaml:"api_base"`
	AssetID  string        `json:"asset_id" yaml:"asset_id"`
	Interval time.Duration `json:"interval" yaml:"interval"`
	Window   int           `json:"window" yaml:"window"`
	Count    int           `json:"count" yaml:"count"`
}

func DefaultConfig() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "json",
		API:       APIConfig{Enabled: true, Addr: ":8080"},
		Ingest: IngestConfig{
			ChannelBuffer: 10000,
			DedupeWindow:  1 * time.Second,
			Kafka:         KafkaConfig{Enabled: false},
			TCPStream:     TCPStreamConfig{Enabled: false, Addr: ":9000"},
			FileTail:      FileTailConfig{Enabled: false, StartAtEnd: true},
		},
		Risk:    DefaultRiskConfig(),
		Storage: StorageConfig{Driver: "sqlite", DSN: "file:fleetwatch.db?_pragma=busy_timeout(5000)"},
		Stats:   StatsConfig{AssetLimit: 5000, RecentLimit: 1000},
		Generator: GeneratorConfig{
			APIBase:  "http://localhost:8080",
			AssetID:  "aircraft-C130-017",
			Interval: 10 * time.Second,
			Window:   5,
		},
	}
}

// DefaultRiskConfig mirrors the fleet scoring table: temperature warns
// above 85C and maxes at 95C, vibration warns above 2.5 RMS and maxes at
// 3.5, pressure is safe between 35 and 55 psi and maxes at 30/60.
// Vibration's low side is unreachable for a non-negative RMS; the bounds
// exist to keep the ordering constraint satisfied.
func DefaultRiskConfig() RiskConfig {
	return RiskConfig{
		DefaultWindow: 5,
		MaxWindow:     50,
		Decay:         0.8,
		WeightEpsilon: 1e-6,
		Weights:       WeightsConfig{Temperature: 0.40, Vibration: 0.35, Pressure: 0.25},
		Thresholds:    ThresholdsConfig{LowMax: 0.25, MediumMax: 0.50, HighMax: 0.75},
		Channels: ChannelsConfig{
			Temperature: ChannelBounds{NominalMin: -10, NominalMax: 85, CriticalMin: -40, CriticalMax: 95},
			Vibration:   ChannelBounds{NominalMin: 0, NominalMax: 2.5, CriticalMin: -1, CriticalMax: 3.5},
			Pressure:    ChannelBounds{NominalMin: 35, NominalMax: 55, CriticalMin: 30, CriticalMax: 60},
		},
	}
}

func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()

	trimmed := strings.TrimSpace(string(content))
	if len(trimmed) == 0 {
		return nil, errors.New("config file is empty")
	}
	var decodeErr error
	if looksLikeJSON(trimmed) {
		decodeErr = json.Unmarshal([]byte(trimmed), cfg)
	} else {
		decodeErr = yaml.Unmarshal([]byte(trimmed), cfg)
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	if path == "" || cfg == nil {
		return errors.New("config path or config is empty")
	}
	var data []byte
	var err error
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".json" {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func looksLikeJSON(s string) bool {
	for _, ch := range s {
		if ch == '{' || ch == '[' {
			return true
		}
		if ch > ' ' {
			return false
		}
	}
	return false
}

func applyDefaults(cfg *Config) {
	if cfg.Ingest.ChannelBuffer <= 0 {
		cfg.Ingest.ChannelBuffer = 10000
	}
	if cfg.Risk.DefaultWindow <= 0 {
		cfg.Risk.DefaultWindow = 5
	}
	if cfg.Risk.MaxWindow <= 0 {
		cfg.Risk.MaxWindow = 50
	}
	if cfg.Risk.Decay == 0 {
		cfg.Risk.Decay = 0.8
	}
	if cfg.Risk.WeightEpsilon <= 0 {
		cfg.Risk.WeightEpsilon = 1e-6
	}
	if cfg.Stats.AssetLimit <= 0 {
		cfg.Stats.AssetLimit = 5000
	}
	if cfg.Stats.RecentLimit <= 0 {
		cfg.Stats.RecentLimit = 1000
	}
	if cfg.Generator.Interval <= 0 {
		cfg.Generator.Interval = 10 * time.Second
	}
	if cfg.Generator.Window <= 0 {
		cfg.Generator.Window = cfg.Risk.DefaultWindow
	}
}

func Validate(cfg *Config) error {
	if cfg.API.Enabled && cfg.API.Addr == "" {
		return errors.New("api.addr required when api.enabled is true")
	}
	if cfg.Ingest.TCPStream.Enabled && cfg.Ingest.TCPStream.Addr == "" {
		return errors.New("ingest.tcp_stream.addr required when ingest.tcp_stream.enabled is true")
	}
	if cfg.Ingest.FileTail.Enabled && len(cfg.Ingest.FileTail.Files) == 0 {
		return errors.New("ingest.file_tail.files required when ingest.file_tail.enabled is true")
	}
	if cfg.Ingest.Kafka.Enabled {
		if len(cfg.Ingest.Kafka.Brokers) == 0 || cfg.Ingest.Kafka.Topic == "" || cfg.Ingest.Kafka.GroupID == "" {
			return errors.New("ingest.kafka requires brokers, topic, group_id")
		}
	}
	switch strings.ToLower(cfg.Storage.Driver) {
	case "sqlite", "postgres", "postgresql", "memory":
	default:
		return fmt.Errorf("storage.driver unsupported: %q", cfg.Storage.Driver)
	}
	return ValidateRisk(cfg.Risk)
}

// ValidateRisk enforces the policy invariants: strictly increasing
// thresholds, channel weights summing to 1.0 within epsilon, ordered
// channel bounds, sane window limits and decay.
func ValidateRisk(rc RiskConfig) error {
	if rc.DefaultWindow <= 0 {
		return fmt.Errorf("risk.default_window must be > 0, got %d", rc.DefaultWindow)
	}
	if rc.MaxWindow < rc.DefaultWindow {
		return fmt.Errorf("risk.max_window %d must be >= risk.default_window %d", rc.MaxWindow, rc.DefaultWindow)
	}
	if rc.Decay <= 0 || rc.Decay > 1 {
		return fmt.Errorf("risk.decay must be in (0, 1], got %g", rc.Decay)
	}
	eps := rc.WeightEpsilon
	if eps <= 0 {
		eps = 1e-6
	}
	sum := rc.Weights.Temperature + rc.Weights.Vibration + rc.Weights.Pressure
	if rc.Weights.Temperature < 0 || rc.Weights.Vibration < 0 || rc.Weights.Pressure < 0 {
		return fmt.Errorf("risk.weights must be non-negative, got %+v", rc.Weights)
	}
	if math.Abs(sum-1.0) > eps {
		return fmt.Errorf("risk.weights must sum to 1.0 within %g, got %g", eps, sum)
	}
	t := rc.Thresholds
	if !(t.LowMax < t.MediumMax && t.MediumMax < t.HighMax) {
		return fmt.Errorf("risk.thresholds must be strictly increasing, got low_max=%g medium_max=%g high_max=%g",
			t.LowMax, t.MediumMax, t.HighMax)
	}
	for name, ch := range map[string]ChannelBounds{
		"temperature": rc.Channels.Temperature,
		"vibration":   rc.Channels.Vibration,
		"pressure":    rc.Channels.Pressure,
	} {
		if !(ch.CriticalMin < ch.NominalMin && ch.NominalMin < ch.NominalMax && ch.NominalMax < ch.CriticalMax) {
			return fmt.Errorf("risk.channels.%s bounds must satisfy critical_min < nominal_min < nominal_max < critical_max, got %+v",
				name, ch)
		}
	}
	return nil
}

type Manager struct {
	path    string
	cfg     atomic.Value
	modTime time.Time
}

func NewManager(path string) (*Manager, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	m := &Manager{path: path}
	m.cfg.Store(cfg)
	info, err := os.Stat(path)
	if err == nil {
		m.modTime = info.ModTime()
	}
	return m, nil
}

func (m *Manager) Get() *Config {
	if v := m.cfg.Load(); v != nil {
		return v.(*Config)
	}
	return DefaultConfig()
}

func (m *Manager) Path() string {
	return m.path
}

func (m *Manager) Reload() (*Config, error) {
	cfg, err := Load(m.path)
	if err != nil {
		return nil, err
	}
	m.cfg.Store(cfg)
	if info, err := os.Stat(m.path); err == nil {
		m.modTime = info.ModTime()
	}
	return cfg, nil
}

func (m *Manager) Update(cfg *Config) error {
	if cfg == nil {
		return errors.New("nil config")
	}
	if err := Validate(cfg); err != nil {
		return err
	}
	if err := Save(m.path, cfg); err != nil {
		return err
	}
	m.cfg.Store(cfg)
	if info, err := os.Stat(m.path); err == nil {
		m.modTime = info.ModTime()
	}
	return nil
}

func (m *Manager) NeedsReload() (bool, error) {
	info, err := os.Stat(m.path)
	if err != nil {
		return false, err
	}
	return info.ModTime().After(m.modTime), nil
}

func (m *Manager) Watch(interval time.Duration, onReload func(*Config), onError func(error), stop <-chan struct{}) {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			needs, err := m.NeedsReload()
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			if !needs {
				continue
			}
			cfg, err := m.Reload()
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			if onReload != nil {
				onReload(cfg)
			}
		case <-stop:
			return
		}
	}
}

func ResolvePath(path string) string {
	if path == "" {
		return path
	}
	if filepath.IsAbs(path) {
		return path
	}
	cwd, err := os.Getwd()
	if err != nil {
		return path
	}
	return filepath.Join(cwd, path)
}
