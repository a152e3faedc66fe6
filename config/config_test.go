package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
	assert.Equal(t, -1, cfg.NATS.MaxReconnects)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "telemetry-events", cfg.Kafka.Topic)
	assert.Equal(t, 50, cfg.Ingest.CheckpointBatch)
	assert.Equal(t, 10, cfg.Ingest.PersistThrottle)
	assert.Equal(t, 24*time.Hour, cfg.Store.Retention)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Defaults()
		cfg.Device.ID = "container-1"
		return cfg
	}

	t.Run("valid config passes", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing device id", func(c *Config) { c.Device.ID = "" }},
		{"device id with spaces", func(c *Config) { c.Device.ID = "my device" }},
		{"missing nats url", func(c *Config) { c.NATS.URL = "" }},
		{"no kafka brokers", func(c *Config) { c.Kafka.Brokers = nil }},
		{"missing kafka topic", func(c *Config) { c.Kafka.Topic = "" }},
		{"missing kafka group", func(c *Config) { c.Kafka.GroupID = "" }},
		{"zero partitions", func(c *Config) { c.Kafka.Partitions = 0 }},
		{"zero checkpoint batch", func(c *Config) { c.Ingest.CheckpointBatch = 0 }},
		{"zero persist throttle", func(c *Config) { c.Ingest.PersistThrottle = 0 }},
		{"missing readings bucket", func(c *Config) { c.Store.ReadingsBucket = "" }},
		{"zero retention", func(c *Config) { c.Store.Retention = 0 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateDocument(t *testing.T) {
	cfg := Defaults()
	cfg.Device.ID = "container-1"
	assert.NoError(t, ValidateDocument(cfg))

	cfg.Kafka.Partitions = -5
	assert.Error(t, ValidateDocument(cfg))
}

func TestLoadJSONFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := `{
		"device": {"id": "container-7"},
		"kafka": {"brokers": ["kafka-1:9092", "kafka-2:9092"], "partitions": 8},
		"store": {"retention": "2d"},
		"nats": {"reconnect_wait": "5s"}
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	loader := NewLoader()
	cfg, err := loader.LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "container-7", cfg.Device.ID)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 8, cfg.Kafka.Partitions)
	assert.Equal(t, 48*time.Hour, cfg.Store.Retention)
	assert.Equal(t, 5*time.Second, cfg.NATS.ReconnectWait)
	// Untouched fields keep defaults
	assert.Equal(t, "telemetry-events", cfg.Kafka.Topic)
	assert.Equal(t, 50, cfg.Ingest.CheckpointBatch)
}

func TestLoadYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
device:
  id: container-3
kafka:
  topic: farm-telemetry
ingest:
  checkpoint_batch: 100
store:
  retention: 12h
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	loader := NewLoader()
	cfg, err := loader.LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "container-3", cfg.Device.ID)
	assert.Equal(t, "farm-telemetry", cfg.Kafka.Topic)
	assert.Equal(t, 100, cfg.Ingest.CheckpointBatch)
	assert.Equal(t, 12*time.Hour, cfg.Store.Retention)
}

func TestLoadLayeredOverride(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "base.json")
	override := filepath.Join(dir, "override.json")

	require.NoError(t, os.WriteFile(base, []byte(`{"device": {"id": "container-1", "name": "north field"}}`), 0o600))
	require.NoError(t, os.WriteFile(override, []byte(`{"device": {"id": "container-2"}}`), 0o600))

	loader := NewLoader()
	loader.AddLayer(base)
	loader.AddLayer(override)
	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, "container-2", cfg.Device.ID)
	assert.Equal(t, "north field", cfg.Device.Name)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SHFT_DEVICE_ID", "env-device")
	t.Setenv("SHFT_NATS_URL", "nats://nats:4222")
	t.Setenv("SHFT_KAFKA_BROKERS", "a:9092,b:9092")
	t.Setenv("SHFT_LOG_LEVEL", "DEBUG")

	loader := NewLoader()
	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, "env-device", cfg.Device.ID)
	assert.Equal(t, "nats://nats:4222", cfg.NATS.URL)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadMissingDeviceIDFails(t *testing.T) {
	loader := NewLoader()
	_, err := loader.Load()
	assert.Error(t, err)
}

func TestLoadMissingFileFails(t *testing.T) {
	loader := NewLoader()
	_, err := loader.LoadFile("/nonexistent/config.json")
	assert.Error(t, err)
}

func TestSafeConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Device.ID = "container-1"
	sc := NewSafeConfig(cfg)

	got := sc.Get()
	assert.Equal(t, "container-1", got.Device.ID)

	// Mutating the copy does not affect the stored config
	got.Device.ID = "mutated"
	assert.Equal(t, "container-1", sc.Get().Device.ID)

	updated := Defaults()
	updated.Device.ID = "container-2"
	require.NoError(t, sc.Update(updated))
	assert.Equal(t, "container-2", sc.Get().Device.ID)

	assert.Error(t, sc.Update(nil))
	assert.Error(t, sc.Update(&Config{}))
}

func TestClone(t *testing.T) {
	cfg := Defaults()
	cfg.Device.ID = "container-1"
	clone := cfg.Clone()

	clone.Kafka.Brokers[0] = "changed:9092"
	clone.Device.ID = "other"

	assert.Equal(t, "container-1", cfg.Device.ID)
	assert.Equal(t, "localhost:9092", cfg.Kafka.Brokers[0])
}

func TestParseDurationWithDays(t *testing.T) {
	d, err := parseDurationWithDays("3d")
	require.NoError(t, err)
	assert.Equal(t, 72*time.Hour, d)

	d, err = parseDurationWithDays("90m")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Minute, d)

	_, err = parseDurationWithDays("xd")
	assert.Error(t, err)
}
