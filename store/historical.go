package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jeffbrin/SHFT/component"
	"github.com/jeffbrin/SHFT/errors"
	"github.com/jeffbrin/SHFT/pkg/timestamp"
	"github.com/jeffbrin/SHFT/reading"
)

// HistoricalStore is an append-only, retention-bounded archive of readings.
// Uploads are idempotent with respect to reading equality, and a background
// sweep removes entries older than the retention window.
type HistoricalStore struct {
	data      DataStore
	logger    *slog.Logger
	retention time.Duration
	sweepEach time.Duration
	now       func() time.Time

	mu        sync.Mutex
	running   bool
	stopCh    chan struct{}
	doneCh    chan struct{}
	lastSweep time.Time
	errCount  int
	lastErr   error
	startTime time.Time
}

// HistoricalStoreOption configures a HistoricalStore
type HistoricalStoreOption func(*HistoricalStore)

// WithSweepInterval overrides how often the retention sweep runs
func WithSweepInterval(interval time.Duration) HistoricalStoreOption {
	return func(s *HistoricalStore) {
		if interval > 0 {
			s.sweepEach = interval
		}
	}
}

// WithClock overrides the time source (for testing)
func WithClock(now func() time.Time) HistoricalStoreOption {
	return func(s *HistoricalStore) {
		s.now = now
	}
}

// NewHistoricalStore creates a historical store over the given DataStore
func NewHistoricalStore(data DataStore, retention time.Duration, logger *slog.Logger, opts ...HistoricalStoreOption) *HistoricalStore {
	s := &HistoricalStore{
		data:      data,
		logger:    logger.With("component", "HistoricalStore"),
		retention: retention,
		sweepEach: time.Hour,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UploadReading stores a reading unless an equal one is already present.
// Returns true if the reading was written, false if it was a duplicate.
// Equality ignores the key, so a redelivered observation with a fresh key
// still deduplicates against the stored copy.
func (s *HistoricalStore) UploadReading(ctx context.Context, r reading.Reading) (bool, error) {
	existing, err := s.data.List(ctx, false)
	if err != nil {
		return false, errors.Wrap(err, "HistoricalStore", "UploadReading", "list existing readings")
	}

	for _, item := range existing {
		if item.Equal(r) {
			return false, nil
		}
	}

	if err := s.data.Add(ctx, r); err != nil {
		return false, errors.Wrap(err, "HistoricalStore", "UploadReading", "store write")
	}

	return true, nil
}

// MostRecentTimestamp returns the timestamp of the newest stored reading,
// or the Unix epoch when the store is empty. Used to seed the staleness
// watermark at startup.
func (s *HistoricalStore) MostRecentTimestamp(ctx context.Context) (time.Time, error) {
	items, err := s.data.List(ctx, true)
	if err != nil {
		return time.Time{}, errors.Wrap(err, "HistoricalStore", "MostRecentTimestamp", "list readings")
	}

	most := timestamp.Epoch
	for _, item := range items {
		if item.Timestamp.After(most) {
			most = item.Timestamp
		}
	}
	return most, nil
}

// Readings returns all stored readings
func (s *HistoricalStore) Readings(ctx context.Context, forceRefresh bool) ([]reading.Reading, error) {
	return s.data.List(ctx, forceRefresh)
}

// Sweep deletes readings older than the retention window and returns how
// many were removed.
func (s *HistoricalStore) Sweep(ctx context.Context) (int, error) {
	items, err := s.data.List(ctx, true)
	if err != nil {
		return 0, errors.Wrap(err, "HistoricalStore", "Sweep", "list readings")
	}

	cutoff := s.now().Add(-s.retention)
	removed := 0
	for _, item := range items {
		if !item.Timestamp.Before(cutoff) {
			continue
		}
		if err := s.data.Delete(ctx, item); err != nil {
			// Keep sweeping; the entry stays until the next pass
			s.logger.Warn("Failed to delete expired reading",
				"key", item.Key,
				"type", item.Type,
				"error", err)
			continue
		}
		removed++
	}

	s.mu.Lock()
	s.lastSweep = s.now()
	s.mu.Unlock()

	if removed > 0 {
		s.logger.Info("Retention sweep removed expired readings",
			"removed", removed,
			"cutoff", cutoff)
	}
	return removed, nil
}

// Initialize validates the store configuration
func (s *HistoricalStore) Initialize() error {
	if s.data == nil {
		return errors.WrapFatal(errors.ErrMissingConfig, "HistoricalStore", "Initialize", "data store required")
	}
	if s.retention <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "HistoricalStore", "Initialize", "retention must be positive")
	}
	return nil
}

// Start runs an initial retention sweep and begins the periodic sweep loop
func (s *HistoricalStore) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.ErrAlreadyStarted
	}
	s.running = true
	s.startTime = s.now()
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	if _, err := s.Sweep(ctx); err != nil {
		s.recordError(err)
		s.logger.Warn("Initial retention sweep failed", "error", err)
	}

	go s.sweepLoop()

	s.logger.Info("Historical store started",
		"retention", s.retention,
		"sweep_interval", s.sweepEach)
	return nil
}

func (s *HistoricalStore) sweepLoop() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.sweepEach)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			if _, err := s.Sweep(ctx); err != nil {
				s.recordError(err)
				s.logger.Warn("Retention sweep failed", "error", err)
			}
			cancel()
		}
	}
}

// Stop halts the sweep loop, waiting up to timeout for it to exit
func (s *HistoricalStore) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	doneCh := s.doneCh
	s.mu.Unlock()

	select {
	case <-doneCh:
		return nil
	case <-time.After(timeout):
		return errors.WrapTransient(
			errors.ErrShuttingDown,
			"HistoricalStore", "Stop", "sweep loop did not exit in time")
	}
}

// Health returns the component health status
func (s *HistoricalStore) Health() component.HealthStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := component.HealthStatus{
		Healthy:    s.running && s.errCount == 0,
		LastCheck:  s.now(),
		ErrorCount: s.errCount,
	}
	if s.lastErr != nil {
		status.LastError = s.lastErr.Error()
	}
	if s.running {
		status.Uptime = s.now().Sub(s.startTime)
	}
	return status
}

func (s *HistoricalStore) recordError(err error) {
	s.mu.Lock()
	s.errCount++
	s.lastErr = err
	s.mu.Unlock()
}
