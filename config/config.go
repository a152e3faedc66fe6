package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"gopkg.in/yaml.v3"
)

// Config represents the complete daemon configuration
type Config struct {
	Device  DeviceConfig  `json:"device"`
	NATS    NATSConfig    `json:"nats"`
	Kafka   KafkaConfig   `json:"kafka"`
	Ingest  IngestConfig  `json:"ingest"`
	Store   StoreConfig   `json:"store"`
	Notify  NotifyConfig  `json:"notify"`
	Metrics MetricsConfig `json:"metrics"`
	Logging LoggingConfig `json:"logging"`
}

// DeviceConfig identifies the container device this daemon serves
type DeviceConfig struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// NATSConfig defines NATS connection settings
type NATSConfig struct {
	URL           string        `json:"url"`
	MaxReconnects int           `json:"max_reconnects,omitempty"`
	ReconnectWait time.Duration `json:"reconnect_wait,omitempty"`
	DrainTimeout  time.Duration `json:"drain_timeout,omitempty"`
}

// KafkaConfig defines the telemetry event stream settings
type KafkaConfig struct {
	Brokers    []string      `json:"brokers"`
	Topic      string        `json:"topic"`
	GroupID    string        `json:"group_id"`
	Partitions int           `json:"partitions"`
	MinBytes   int           `json:"min_bytes,omitempty"`
	MaxBytes   int           `json:"max_bytes,omitempty"`
	MaxWait    time.Duration `json:"max_wait,omitempty"`
}

// IngestConfig tunes the event processing pipeline
type IngestConfig struct {
	CheckpointBatch int `json:"checkpoint_batch"`
	PersistThrottle int `json:"persist_throttle"`
}

// StoreConfig defines KV bucket names and retention for persisted readings
type StoreConfig struct {
	ReadingsBucket   string        `json:"readings_bucket"`
	ThresholdsBucket string        `json:"thresholds_bucket"`
	DeviceBucket     string        `json:"device_bucket"`
	Retention        time.Duration `json:"retention"`
	SweepInterval    time.Duration `json:"sweep_interval"`
}

// NotifyConfig defines the websocket state-change feed
type NotifyConfig struct {
	Addr          string  `json:"addr"`
	RatePerSecond float64 `json:"rate_per_second,omitempty"`
	RateBurst     int     `json:"rate_burst,omitempty"`
}

// MetricsConfig defines the Prometheus exposition endpoint
type MetricsConfig struct {
	Addr string `json:"addr"`
}

// LoggingConfig defines log output settings
type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// SafeConfig provides thread-safe access to configuration
type SafeConfig struct {
	mu     sync.RWMutex
	config *Config
}

// NewSafeConfig creates a new thread-safe config wrapper
func NewSafeConfig(cfg *Config) *SafeConfig {
	if cfg == nil {
		cfg = &Config{}
	}
	return &SafeConfig{config: cfg}
}

// Get returns a deep copy of the current configuration
func (sc *SafeConfig) Get() *Config {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.config.Clone()
}

// Update atomically updates the configuration after validation
func (sc *SafeConfig) Update(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.config = cfg
	return nil
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	if c == nil {
		return &Config{}
	}

	data, err := json.Marshal(c)
	if err != nil {
		copied := *c
		return &copied
	}

	var clone Config
	if err := json.Unmarshal(data, &clone); err != nil {
		copied := *c
		return &copied
	}

	return &clone
}

// Validate checks if the config is valid
func (c *Config) Validate() error {
	if c.Device.ID == "" {
		return errors.New("device.id is required")
	}
	if !isValidSubjectPart(c.Device.ID) {
		return fmt.Errorf(
			"device.id '%s' is not valid for NATS subjects (must be alphanumeric with dots, dashes, underscores)",
			c.Device.ID,
		)
	}

	if c.NATS.URL == "" {
		return errors.New("nats.url is required")
	}

	if len(c.Kafka.Brokers) == 0 {
		return errors.New("kafka.brokers is required")
	}
	if c.Kafka.Topic == "" {
		return errors.New("kafka.topic is required")
	}
	if c.Kafka.GroupID == "" {
		return errors.New("kafka.group_id is required")
	}
	if c.Kafka.Partitions <= 0 {
		return fmt.Errorf("kafka.partitions must be positive, got %d", c.Kafka.Partitions)
	}

	if c.Ingest.CheckpointBatch <= 0 {
		return fmt.Errorf("ingest.checkpoint_batch must be positive, got %d", c.Ingest.CheckpointBatch)
	}
	if c.Ingest.PersistThrottle <= 0 {
		return fmt.Errorf("ingest.persist_throttle must be positive, got %d", c.Ingest.PersistThrottle)
	}

	if c.Store.ReadingsBucket == "" {
		return errors.New("store.readings_bucket is required")
	}
	if c.Store.ThresholdsBucket == "" {
		return errors.New("store.thresholds_bucket is required")
	}
	if c.Store.Retention <= 0 {
		return errors.New("store.retention must be positive")
	}

	if c.Logging.Level != "" {
		switch strings.ToLower(c.Logging.Level) {
		case "debug", "info", "warn", "error":
		default:
			return fmt.Errorf("logging.level '%s' is invalid (debug, info, warn, error)", c.Logging.Level)
		}
	}
	if c.Logging.Format != "" {
		switch strings.ToLower(c.Logging.Format) {
		case "json", "text":
		default:
			return fmt.Errorf("logging.format '%s' is invalid (json, text)", c.Logging.Format)
		}
	}

	return nil
}

// isValidSubjectPart checks if a string is valid for use in NATS subjects.
// Valid characters are alphanumeric, dots, dashes, and underscores.
func isValidSubjectPart(s string) bool {
	if len(s) == 0 {
		return false
	}

	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) &&
			r != '-' && r != '_' && r != '.' {
			return false
		}
	}
	return true
}

// Loader handles configuration loading with layers and overrides
type Loader struct {
	layers     []string
	validation bool
	envPrefix  string
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{
		layers:     []string{},
		validation: true,
		envPrefix:  "SHFT",
	}
}

// AddLayer adds a configuration file layer
func (l *Loader) AddLayer(path string) {
	l.layers = append(l.layers, path)
}

// EnableValidation enables or disables configuration validation
func (l *Loader) EnableValidation(enable bool) {
	l.validation = enable
}

// LoadFile loads configuration from a single file
func (l *Loader) LoadFile(path string) (*Config, error) {
	l.layers = []string{path}
	return l.Load()
}

// Load loads and merges all configuration layers
func (l *Loader) Load() (*Config, error) {
	cfg := Defaults()

	for _, path := range l.layers {
		rawConfig, err := l.loadRaw(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
		cfg = l.mergeFromMap(cfg, rawConfig)
	}

	l.applyEnvOverrides(cfg)

	if l.validation {
		if err := ValidateDocument(cfg); err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Defaults returns the default configuration
func Defaults() *Config {
	return &Config{
		NATS: NATSConfig{
			URL:           "nats://localhost:4222",
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
			DrainTimeout:  30 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers:    []string{"localhost:9092"},
			Topic:      "telemetry-events",
			GroupID:    "shft-telemetryd",
			Partitions: 4,
			MinBytes:   1,
			MaxBytes:   10 << 20,
			MaxWait:    time.Second,
		},
		Ingest: IngestConfig{
			CheckpointBatch: 50,
			PersistThrottle: 10,
		},
		Store: StoreConfig{
			ReadingsBucket:   "readings",
			ThresholdsBucket: "thresholds",
			DeviceBucket:     "device-config",
			Retention:        24 * time.Hour,
			SweepInterval:    time.Hour,
		},
		Notify: NotifyConfig{
			Addr:          ":8090",
			RatePerSecond: 10,
			RateBurst:     20,
		},
		Metrics: MetricsConfig{
			Addr: ":9100",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// loadRaw loads a configuration file as a map. YAML and JSON files are both
// accepted; the extension decides the decoder.
func (l *Loader) loadRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from operator flags
	if err != nil {
		return nil, err
	}

	var rawConfig map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &rawConfig); err != nil {
			return nil, err
		}
		rawConfig = normalizeYAML(rawConfig)
	default:
		if err := json.Unmarshal(data, &rawConfig); err != nil {
			return nil, err
		}
	}

	l.parseDurations(rawConfig)

	return rawConfig, nil
}

// normalizeYAML converts nested map[any]any values produced by older YAML
// decoders into map[string]any so JSON re-marshaling works.
func normalizeYAML(m map[string]any) map[string]any {
	for k, v := range m {
		m[k] = normalizeYAMLValue(v)
	}
	return m
}

func normalizeYAMLValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return normalizeYAML(val)
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[fmt.Sprint(k)] = normalizeYAMLValue(inner)
		}
		return out
	case []any:
		for i, item := range val {
			val[i] = normalizeYAMLValue(item)
		}
		return val
	default:
		return v
	}
}

// mergeFromMap merges configuration from a raw map, only overriding fields present in the map
func (l *Loader) mergeFromMap(base *Config, override map[string]any) *Config {
	if override == nil {
		return base
	}

	baseJSON, err := json.Marshal(base)
	if err != nil {
		return base
	}

	var baseMap map[string]any
	if err := json.Unmarshal(baseJSON, &baseMap); err != nil {
		return base
	}

	mergedMap := l.deepMergeMaps(baseMap, override)

	mergedJSON, err := json.Marshal(mergedMap)
	if err != nil {
		return base
	}

	var merged Config
	if err := json.Unmarshal(mergedJSON, &merged); err != nil {
		return base
	}

	return &merged
}

// deepMergeMaps recursively merges two maps, with override taking precedence
func (l *Loader) deepMergeMaps(base, override map[string]any) map[string]any {
	result := make(map[string]any)

	for k, v := range base {
		result[k] = v
	}

	for k, v := range override {
		if v == nil {
			continue
		}

		if baseMap, baseOk := base[k].(map[string]any); baseOk {
			if overrideMap, overrideOk := v.(map[string]any); overrideOk {
				result[k] = l.deepMergeMaps(baseMap, overrideMap)
				continue
			}
		}

		result[k] = v
	}

	return result
}

// parseDurations converts duration strings to nanoseconds for json unmarshaling
func (l *Loader) parseDurations(data map[string]any) {
	if nats, ok := data["nats"].(map[string]any); ok {
		parseDurationField(nats, "reconnect_wait")
		parseDurationField(nats, "drain_timeout")
	}
	if kafka, ok := data["kafka"].(map[string]any); ok {
		parseDurationField(kafka, "max_wait")
	}
	if store, ok := data["store"].(map[string]any); ok {
		parseDurationField(store, "retention")
		parseDurationField(store, "sweep_interval")
	}
}

func parseDurationField(m map[string]any, key string) {
	if s, ok := m[key].(string); ok {
		if d, err := parseDurationWithDays(s); err == nil {
			m[key] = d.Nanoseconds()
		}
	}
}

// parseDurationWithDays parses durations that may include days (e.g., "14d")
func parseDurationWithDays(s string) (time.Duration, error) {
	if strings.HasSuffix(s, "d") {
		days := strings.TrimSuffix(s, "d")
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, err
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}

// applyEnvOverrides applies environment variable overrides
func (l *Loader) applyEnvOverrides(cfg *Config) {
	if val := os.Getenv(l.envPrefix + "_DEVICE_ID"); val != "" {
		cfg.Device.ID = val
	}
	if val := os.Getenv(l.envPrefix + "_NATS_URL"); val != "" {
		cfg.NATS.URL = val
	}
	if val := os.Getenv(l.envPrefix + "_KAFKA_BROKERS"); val != "" {
		cfg.Kafka.Brokers = strings.Split(val, ",")
	}
	if val := os.Getenv(l.envPrefix + "_KAFKA_TOPIC"); val != "" {
		cfg.Kafka.Topic = val
	}
	if val := os.Getenv(l.envPrefix + "_KAFKA_GROUP_ID"); val != "" {
		cfg.Kafka.GroupID = val
	}
	if val := os.Getenv(l.envPrefix + "_LOG_LEVEL"); val != "" {
		cfg.Logging.Level = strings.ToLower(val)
	}
	if val := os.Getenv(l.envPrefix + "_LOG_FORMAT"); val != "" {
		cfg.Logging.Format = strings.ToLower(val)
	}
}

// SaveToFile saves the configuration to a JSON file
func (c *Config) SaveToFile(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// UnmarshalJSON implements custom JSON unmarshaling for Config so duration
// fields accept both strings and nanosecond numbers.
func (c *Config) UnmarshalJSON(data []byte) error {
	type Alias Config
	aux := &struct {
		NATS struct {
			URL           string `json:"url"`
			MaxReconnects int    `json:"max_reconnects"`
			ReconnectWait any    `json:"reconnect_wait"`
			DrainTimeout  any    `json:"drain_timeout"`
		} `json:"nats"`
		Kafka struct {
			Brokers    []string `json:"brokers"`
			Topic      string   `json:"topic"`
			GroupID    string   `json:"group_id"`
			Partitions int      `json:"partitions"`
			MinBytes   int      `json:"min_bytes"`
			MaxBytes   int      `json:"max_bytes"`
			MaxWait    any      `json:"max_wait"`
		} `json:"kafka"`
		Store struct {
			ReadingsBucket   string `json:"readings_bucket"`
			ThresholdsBucket string `json:"thresholds_bucket"`
			DeviceBucket     string `json:"device_bucket"`
			Retention        any    `json:"retention"`
			SweepInterval    any    `json:"sweep_interval"`
		} `json:"store"`
		*Alias
	}{
		Alias: (*Alias)(c),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	c.NATS.URL = aux.NATS.URL
	c.NATS.MaxReconnects = aux.NATS.MaxReconnects
	c.Kafka.Brokers = aux.Kafka.Brokers
	c.Kafka.Topic = aux.Kafka.Topic
	c.Kafka.GroupID = aux.Kafka.GroupID
	c.Kafka.Partitions = aux.Kafka.Partitions
	c.Kafka.MinBytes = aux.Kafka.MinBytes
	c.Kafka.MaxBytes = aux.Kafka.MaxBytes
	c.Store.ReadingsBucket = aux.Store.ReadingsBucket
	c.Store.ThresholdsBucket = aux.Store.ThresholdsBucket
	c.Store.DeviceBucket = aux.Store.DeviceBucket

	var err error
	if c.NATS.ReconnectWait, err = coerceDuration(aux.NATS.ReconnectWait); err != nil {
		return fmt.Errorf("nats.reconnect_wait: %w", err)
	}
	if c.NATS.DrainTimeout, err = coerceDuration(aux.NATS.DrainTimeout); err != nil {
		return fmt.Errorf("nats.drain_timeout: %w", err)
	}
	if c.Kafka.MaxWait, err = coerceDuration(aux.Kafka.MaxWait); err != nil {
		return fmt.Errorf("kafka.max_wait: %w", err)
	}
	if c.Store.Retention, err = coerceDuration(aux.Store.Retention); err != nil {
		return fmt.Errorf("store.retention: %w", err)
	}
	if c.Store.SweepInterval, err = coerceDuration(aux.Store.SweepInterval); err != nil {
		return fmt.Errorf("store.sweep_interval: %w", err)
	}

	return nil
}

func coerceDuration(v any) (time.Duration, error) {
	switch val := v.(type) {
	case nil:
		return 0, nil
	case string:
		return parseDurationWithDays(val)
	case float64:
		return time.Duration(val), nil
	default:
		return 0, fmt.Errorf("unsupported duration type %T", v)
	}
}
