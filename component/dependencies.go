package component

import (
	"log/slog"

	"github.com/jeffbrin/SHFT/metric"
	"github.com/jeffbrin/SHFT/natsclient"
)

// Dependencies provides the external collaborators components need. The
// composition root builds one of these and hands it to each constructor;
// no component reaches for a global.
type Dependencies struct {
	NATSClient      *natsclient.Client      // NATS connection for KV storage and request/reply
	MetricsRegistry *metric.MetricsRegistry // Metrics registry for Prometheus (required)
	Logger          *slog.Logger            // Structured logger (can be nil, defaults to slog.Default())
	DeviceID        string                  // Physical device identity for actuator calls
}

// GetLogger returns the configured logger or a default logger if none is provided
func (d *Dependencies) GetLogger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// GetLoggerWithComponent returns a logger configured with component context
func (d *Dependencies) GetLoggerWithComponent(componentName string) *slog.Logger {
	return d.GetLogger().With("component", componentName)
}
