package actuator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jeffbrin/SHFT/errors"
	"github.com/jeffbrin/SHFT/metric"
)

// DefaultInvokeTimeout bounds one device command round trip
const DefaultInvokeTimeout = 5 * time.Second

// StatusOK is the device's acknowledgement code
const StatusOK = 200

// Requester performs one request/reply exchange on the message bus
type Requester interface {
	Request(ctx context.Context, subject string, data []byte) ([]byte, error)
}

// commandPayload is the wire form of a device command
type commandPayload struct {
	Value bool `json:"value"`
}

// commandReply is the device's response envelope
type commandReply struct {
	Status int `json:"status"`
}

// Invoker issues actuator commands to one device. Commands are addressed
// as actuator.<device>.<method> and each exchange is bounded by the
// invocation timeout.
type Invoker struct {
	requester Requester
	deviceID  string
	timeout   time.Duration
	logger    *slog.Logger
	metrics   *metric.Metrics
}

// InvokerOption customizes an Invoker
type InvokerOption func(*Invoker)

// WithInvokeTimeout overrides the per-command timeout
func WithInvokeTimeout(timeout time.Duration) InvokerOption {
	return func(i *Invoker) {
		if timeout > 0 {
			i.timeout = timeout
		}
	}
}

// NewInvoker creates a command invoker for the given device
func NewInvoker(requester Requester, deviceID string, logger *slog.Logger, metrics *metric.Metrics, opts ...InvokerOption) *Invoker {
	inv := &Invoker{
		requester: requester,
		deviceID:  deviceID,
		timeout:   DefaultInvokeTimeout,
		logger:    logger.With("component", "Invoker"),
		metrics:   metrics,
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// Subject returns the command subject for a device method
func (i *Invoker) Subject(method string) string {
	return fmt.Sprintf("actuator.%s.%s", i.deviceID, method)
}

// Invoke sends one command and reports whether the device acknowledged it.
// A transport failure returns an error; a reachable device that answers
// with a non-200 status returns false without an error.
func (i *Invoker) Invoke(ctx context.Context, method string, value bool) (bool, error) {
	if method == "" {
		return false, errors.WrapInvalid(errors.ErrMethodRejected, "Invoker", "Invoke", "empty method name")
	}

	payload, err := json.Marshal(commandPayload{Value: value})
	if err != nil {
		return false, errors.Wrap(err, "Invoker", "Invoke", "encode command")
	}

	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	start := time.Now()
	resp, err := i.requester.Request(ctx, i.Subject(method), payload)
	if err != nil {
		i.metrics.ErrorsTotal.WithLabelValues("Invoker", "transient").Inc()
		return false, errors.Wrap(err, "Invoker", "Invoke", "device command "+method)
	}

	var reply commandReply
	if err := json.Unmarshal(resp, &reply); err != nil {
		i.metrics.ErrorsTotal.WithLabelValues("Invoker", "invalid").Inc()
		return false, errors.WrapInvalid(err, "Invoker", "Invoke", "decode device reply")
	}

	accepted := reply.Status == StatusOK
	i.logger.Debug("Device command completed",
		"method", method,
		"value", value,
		"status", reply.Status,
		"duration", time.Since(start))
	return accepted, nil
}
