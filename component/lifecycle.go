// Package component defines the lifecycle contract and shared dependencies
// for the pipeline's long-running components.
package component

import (
	"context"
	"time"
)

// State represents the current lifecycle state of a component
type State int

const (
	// StateCreated indicates component was created but not initialized
	StateCreated State = iota
	// StateInitialized indicates component was initialized but not started
	StateInitialized
	// StateStarted indicates component is running
	StateStarted
	// StateStopped indicates component was stopped
	StateStopped
	// StateFailed indicates component failed during lifecycle operation
	StateFailed
)

// String returns a string representation of the component state
func (cs State) String() string {
	switch cs {
	case StateCreated:
		return "created"
	case StateInitialized:
		return "initialized"
	case StateStarted:
		return "started"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// LifecycleComponent defines components that support full lifecycle
// management:
//   - Initialize() error                 // Setup/validation only, no I/O
//   - Start(ctx context.Context) error   // Begin processing
//   - Stop(timeout time.Duration) error  // Graceful shutdown within timeout
//
// The composition root owns the context passed to Start; components never
// store it beyond the goroutines it feeds.
type LifecycleComponent interface {
	Initialize() error
	Start(ctx context.Context) error
	Stop(timeout time.Duration) error
}

// HealthStatus reports a component's current health for the monitoring
// endpoint.
type HealthStatus struct {
	Healthy    bool
	LastCheck  time.Time
	ErrorCount int
	LastError  string
	Uptime     time.Duration
}

// HealthReporter is implemented by components that expose health status.
type HealthReporter interface {
	Health() HealthStatus
}
