package ingest

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/jeffbrin/SHFT/component"
	"github.com/jeffbrin/SHFT/errors"
	"github.com/jeffbrin/SHFT/metric"
	"github.com/jeffbrin/SHFT/stream"
)

// Processor owns the ingestion pipeline: it registers itself as the stream
// handler and, per delivered event, counts the event for checkpointing and
// routes the payload to the subsystems. No failure inside one event's
// handling escapes to terminate the stream loop.
type Processor struct {
	source  stream.Source
	router  *Router
	tracker *CheckpointTracker
	deps    component.Dependencies
	metrics *metric.Metrics

	mu        sync.Mutex
	state     component.State
	startTime time.Time
	errCount  int
	lastErr   error
}

// NewProcessor creates the pipeline processor
func NewProcessor(source stream.Source, router *Router, tracker *CheckpointTracker, deps component.Dependencies) *Processor {
	return &Processor{
		source:  source,
		router:  router,
		tracker: tracker,
		deps:    deps,
		metrics: deps.MetricsRegistry.CoreMetrics(),
		state:   component.StateCreated,
	}
}

// Initialize validates wiring
func (p *Processor) Initialize() error {
	if p.source == nil || p.router == nil || p.tracker == nil {
		return errors.WrapFatal(errors.ErrMissingConfig, "Processor", "Initialize", "pipeline wiring incomplete")
	}

	p.mu.Lock()
	p.state = component.StateInitialized
	p.mu.Unlock()
	return nil
}

// Start registers the event handler with the stream source
func (p *Processor) Start(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == component.StateStarted {
		return errors.ErrAlreadyStarted
	}

	p.source.RegisterHandler(p.handleEvent)
	p.state = component.StateStarted
	p.startTime = time.Now()

	p.deps.GetLoggerWithComponent("Processor").Info("Ingestion pipeline started")
	return nil
}

// handleEvent processes one delivered stream event. Handlers for different
// partitions run concurrently; once started, an event runs to completion.
func (p *Processor) handleEvent(ctx context.Context, ev stream.Event) {
	defer func() {
		if rec := recover(); rec != nil {
			p.recordError(errors.WrapFatal(errors.ErrMalformedPayload, "Processor", "handleEvent", "panic recovered"))
			p.metrics.ErrorsTotal.WithLabelValues("Processor", "fatal").Inc()
			p.deps.GetLoggerWithComponent("Processor").Error("Recovered panic handling event",
				"partition", ev.Partition,
				"offset", ev.Offset,
				"panic", rec)
		}
	}()

	start := time.Now()

	p.router.Route(ctx, ev.Value)
	p.tracker.Record(ctx, ev)

	p.metrics.ProcessingDuration.
		WithLabelValues(strconv.Itoa(ev.Partition)).
		Observe(time.Since(start).Seconds())
}

// Stop marks the processor stopped. The stream source owns handler
// deregistration through its own shutdown.
func (p *Processor) Stop(_ time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != component.StateStarted {
		return nil
	}
	p.state = component.StateStopped
	p.deps.GetLoggerWithComponent("Processor").Info("Ingestion pipeline stopped")
	return nil
}

// Health returns the processor health status
func (p *Processor) Health() component.HealthStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	status := component.HealthStatus{
		Healthy:    p.state == component.StateStarted,
		LastCheck:  time.Now(),
		ErrorCount: p.errCount,
	}
	if p.lastErr != nil {
		status.LastError = p.lastErr.Error()
	}
	if p.state == component.StateStarted {
		status.Uptime = time.Since(p.startTime)
	}
	return status
}

func (p *Processor) recordError(err error) {
	p.mu.Lock()
	p.errCount++
	p.lastErr = err
	p.mu.Unlock()
}
