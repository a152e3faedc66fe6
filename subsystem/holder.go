package subsystem

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jeffbrin/SHFT/errors"
	"github.com/jeffbrin/SHFT/metric"
	"github.com/jeffbrin/SHFT/reading"
	"github.com/jeffbrin/SHFT/store"
)

// DefaultPersistThrottle is how many setter calls per metric elapse between
// historical-store writes.
const DefaultPersistThrottle = 10

// Change describes one state mutation for notification fan-out
type Change struct {
	Subsystem string
	Reading   reading.Reading
}

// Listener receives change notifications. Listeners run synchronously on
// the setter's goroutine and must not block.
type Listener func(Change)

// Actuator invokes a direct method on the physical device. The boolean is
// the device's accept/reject verdict; an error covers transport failure and
// also reads as rejection.
type Actuator interface {
	Invoke(ctx context.Context, method string, value bool) (bool, error)
}

// holder is the shared core of the three subsystem state holders: atomic
// per-metric snapshots, persistence throttling, change notification, and
// cached thresholds.
type holder struct {
	name     string
	hist     *store.HistoricalStore
	thstore  *store.ThresholdStore
	throttle int
	logger   *slog.Logger
	metrics  *metric.Metrics

	// current maps each supported metric to its snapshot slot. The map is
	// built at construction and never mutated, so slot lookup is lock-free.
	current map[reading.Type]*atomic.Pointer[reading.Reading]

	countMu sync.Mutex
	counts  map[reading.Type]int

	listenerMu sync.RWMutex
	listeners  map[int]Listener
	nextID     int

	// thresholdMetrics is the static set of metrics this holder accepts
	// threshold writes for.
	thresholdMetrics map[reading.Type]struct{}
	boundsMu         sync.RWMutex
	bounds           map[reading.Type]Threshold
}

func newHolder(
	name string,
	metrics []reading.Type,
	defaults map[reading.Type]Threshold,
	hist *store.HistoricalStore,
	thstore *store.ThresholdStore,
	throttle int,
	logger *slog.Logger,
	coreMetrics *metric.Metrics,
) *holder {
	if throttle <= 0 {
		throttle = DefaultPersistThrottle
	}

	h := &holder{
		name:             name,
		hist:             hist,
		thstore:          thstore,
		throttle:         throttle,
		logger:           logger.With("component", name),
		metrics:          coreMetrics,
		current:          make(map[reading.Type]*atomic.Pointer[reading.Reading], len(metrics)),
		counts:           make(map[reading.Type]int),
		listeners:        make(map[int]Listener),
		thresholdMetrics: make(map[reading.Type]struct{}, len(defaults)),
		bounds:           make(map[reading.Type]Threshold, len(defaults)),
	}

	for _, t := range metrics {
		h.current[t] = &atomic.Pointer[reading.Reading]{}
	}
	for t, def := range defaults {
		h.thresholdMetrics[t] = struct{}{}
		h.bounds[t] = def
	}

	return h
}

// Subscribe registers a change listener and returns its unsubscribe func
func (h *holder) Subscribe(l Listener) func() {
	h.listenerMu.Lock()
	id := h.nextID
	h.nextID++
	h.listeners[id] = l
	h.listenerMu.Unlock()

	return func() {
		h.listenerMu.Lock()
		delete(h.listeners, id)
		h.listenerMu.Unlock()
	}
}

func (h *holder) notify(r reading.Reading) {
	change := Change{Subsystem: h.name, Reading: r}

	h.listenerMu.RLock()
	defer h.listenerMu.RUnlock()
	for _, l := range h.listeners {
		l(change)
	}
}

// Current returns the latest reading for a metric, if one has arrived
func (h *holder) Current(t reading.Type) (reading.Reading, bool) {
	slot, ok := h.current[t]
	if !ok {
		return reading.Reading{}, false
	}
	p := slot.Load()
	if p == nil {
		return reading.Reading{}, false
	}
	return *p, true
}

// set replaces a metric's snapshot, persists every throttle-th call for
// that metric, and raises exactly one change notification.
func (h *holder) set(ctx context.Context, r reading.Reading) {
	slot, ok := h.current[r.Type]
	if !ok {
		h.logger.Warn("Dropping reading for unsupported metric", "type", r.Type)
		return
	}

	snapshot := r
	slot.Store(&snapshot)

	h.countMu.Lock()
	h.counts[r.Type]++
	persistDue := h.counts[r.Type] >= h.throttle
	if persistDue {
		h.counts[r.Type] = 0
	}
	h.countMu.Unlock()

	if persistDue {
		h.persist(ctx, r)
	}

	h.notify(r)
}

// setLocal replaces a snapshot and notifies without touching the persist
// counter. Actuator state changes use this path.
func (h *holder) setLocal(r reading.Reading) {
	slot, ok := h.current[r.Type]
	if !ok {
		return
	}
	snapshot := r
	slot.Store(&snapshot)
	h.notify(r)
}

// persist uploads one reading, tolerating failure. Historical writes are
// fire-and-forget from the pipeline's point of view.
func (h *holder) persist(ctx context.Context, r reading.Reading) {
	stored, err := h.hist.UploadReading(ctx, r)
	if err != nil {
		h.metrics.ErrorsTotal.WithLabelValues(h.name, "transient").Inc()
		h.logger.Warn("Failed to persist reading",
			"type", r.Type,
			"error", err)
		return
	}
	if stored {
		h.metrics.ReadingsPersisted.WithLabelValues(h.name, string(r.Type)).Inc()
	}
}

// LoadThresholds overlays stored bounds onto the defaults. Called once by
// the composition root before the holder is published to readers.
func (h *holder) LoadThresholds(ctx context.Context) error {
	stored, err := h.thstore.LoadAll(ctx)
	if err != nil {
		return errors.Wrap(err, h.name, "LoadThresholds", "load stored thresholds")
	}

	h.boundsMu.Lock()
	defer h.boundsMu.Unlock()

	for t := range h.thresholdMetrics {
		th := h.bounds[t]
		if v, ok := stored[store.ThresholdKey(store.BoundMin, t)]; ok {
			th.Min = v
		}
		if v, ok := stored[store.ThresholdKey(store.BoundMax, t)]; ok {
			th.Max = v
		}
		h.bounds[t] = th
	}

	return nil
}

// Threshold returns the cached bounds for a metric
func (h *holder) Threshold(t reading.Type) (Threshold, bool) {
	h.boundsMu.RLock()
	defer h.boundsMu.RUnlock()
	th, ok := h.bounds[t]
	return th, ok
}

// SetMinThreshold writes a minimum bound through to the threshold store and
// updates the cached pair.
func (h *holder) SetMinThreshold(ctx context.Context, metric reading.Type, v reading.Value) error {
	return h.setThreshold(ctx, store.BoundMin, metric, v)
}

// SetMaxThreshold writes a maximum bound through to the threshold store and
// updates the cached pair.
func (h *holder) SetMaxThreshold(ctx context.Context, metric reading.Type, v reading.Value) error {
	return h.setThreshold(ctx, store.BoundMax, metric, v)
}

func (h *holder) setThreshold(ctx context.Context, bound store.Bound, metric reading.Type, v reading.Value) error {
	if _, ok := h.thresholdMetrics[metric]; !ok {
		return errors.WrapInvalid(errors.ErrUnknownReadingType, h.name, "setThreshold", "no threshold for metric "+string(metric))
	}

	if err := h.thstore.Set(ctx, bound, metric, v); err != nil {
		return errors.Wrap(err, h.name, "setThreshold", "write threshold")
	}

	h.boundsMu.Lock()
	th := h.bounds[metric]
	if bound == store.BoundMin {
		th.Min = v
	} else {
		th.Max = v
	}
	h.bounds[metric] = th
	h.boundsMu.Unlock()

	return nil
}

// metricOK reports whether the current reading for a metric lies within its
// threshold. No reading yet, or no threshold configured, reads as okay.
func (h *holder) metricOK(t reading.Type) bool {
	cur, ok := h.Current(t)
	if !ok {
		return true
	}
	th, ok := h.Threshold(t)
	if !ok {
		return true
	}
	return th.Contains(cur.Value)
}

// invokeActuator runs the two-phase actuator setter: optimistic local state
// first, then the bounded device call. The caller reverts on failure.
func (h *holder) invokeActuator(ctx context.Context, act Actuator, method string, stateType reading.Type, on bool) bool {
	h.setLocal(reading.New(stateType, reading.Bool(on), reading.UnitNone, time.Now()))

	ok, err := act.Invoke(ctx, method, on)
	if err != nil {
		h.metrics.ErrorsTotal.WithLabelValues(h.name, "transient").Inc()
		h.logger.Warn("Actuator invocation failed",
			"method", method,
			"error", err)
		return false
	}
	return ok
}
