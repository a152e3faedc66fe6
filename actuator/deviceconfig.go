package actuator

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jeffbrin/SHFT/errors"
	"github.com/jeffbrin/SHFT/natsclient"
)

// Device configuration keys
const (
	KeyTelemetryInterval = "telemetryInterval"
)

// MinTelemetryInterval is the shortest reporting cadence the device accepts
const MinTelemetryInterval = time.Second

// ConfigBucket is the key/value surface device configuration is written to
type ConfigBucket interface {
	Get(ctx context.Context, key string) (*natsclient.KVEntry, error)
	Put(ctx context.Context, key string, value []byte) (uint64, error)
}

// DeviceConfig writes device-side settings into the bucket the container
// device watches. Settings take effect on the device's next poll.
type DeviceConfig struct {
	bucket ConfigBucket
	logger *slog.Logger
}

// NewDeviceConfig creates a device configuration writer
func NewDeviceConfig(bucket ConfigBucket, logger *slog.Logger) *DeviceConfig {
	return &DeviceConfig{
		bucket: bucket,
		logger: logger.With("component", "DeviceConfig"),
	}
}

// SetTelemetryInterval configures how often the device reports telemetry
func (d *DeviceConfig) SetTelemetryInterval(ctx context.Context, interval time.Duration) error {
	if interval < MinTelemetryInterval {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "DeviceConfig", "SetTelemetryInterval",
			"interval below "+MinTelemetryInterval.String())
	}

	value, err := json.Marshal(interval.Seconds())
	if err != nil {
		return errors.Wrap(err, "DeviceConfig", "SetTelemetryInterval", "encode interval")
	}

	if _, err := d.bucket.Put(ctx, KeyTelemetryInterval, value); err != nil {
		return errors.Wrap(err, "DeviceConfig", "SetTelemetryInterval", "write interval")
	}

	d.logger.Info("Telemetry interval updated", "interval", interval)
	return nil
}

// TelemetryInterval reads the configured reporting cadence. The second
// return is false when the device has no stored interval yet.
func (d *DeviceConfig) TelemetryInterval(ctx context.Context) (time.Duration, bool, error) {
	entry, err := d.bucket.Get(ctx, KeyTelemetryInterval)
	if err != nil {
		if natsclient.IsNotFound(err) {
			return 0, false, nil
		}
		return 0, false, errors.Wrap(err, "DeviceConfig", "TelemetryInterval", "read interval")
	}

	var seconds float64
	if err := json.Unmarshal(entry.Value, &seconds); err != nil {
		return 0, false, errors.WrapInvalid(err, "DeviceConfig", "TelemetryInterval", "decode interval")
	}

	return time.Duration(seconds * float64(time.Second)), true, nil
}
