package ingest

import (
	"context"
	"log/slog"
	"strconv"
	"sync"

	"github.com/jeffbrin/SHFT/metric"
	"github.com/jeffbrin/SHFT/stream"
)

// DefaultCheckpointBatch is how many events a partition processes between
// stream-position commits.
const DefaultCheckpointBatch = 50

// CheckpointTracker counts processed events per partition and commits the
// stream position every batchSize events. Partitions are counted
// independently; handlers for different partitions call Record concurrently.
type CheckpointTracker struct {
	source    stream.Source
	batchSize int
	logger    *slog.Logger
	metrics   *metric.Metrics

	mu     sync.Mutex
	counts map[int]int
}

// NewCheckpointTracker creates a tracker committing through the given source
func NewCheckpointTracker(source stream.Source, batchSize int, logger *slog.Logger, metrics *metric.Metrics) *CheckpointTracker {
	if batchSize <= 0 {
		batchSize = DefaultCheckpointBatch
	}
	return &CheckpointTracker{
		source:    source,
		batchSize: batchSize,
		logger:    logger.With("component", "CheckpointTracker"),
		metrics:   metrics,
		counts:    make(map[int]int),
	}
}

// Record counts one processed event and commits the partition's position
// when the batch size is reached. A failed commit is logged and tolerated;
// the counter still resets, so the next attempt is a full batch later and
// the broker simply redelivers the gap after a restart.
func (t *CheckpointTracker) Record(ctx context.Context, ev stream.Event) {
	t.mu.Lock()
	t.counts[ev.Partition]++
	count := t.counts[ev.Partition]
	due := count >= t.batchSize
	if due {
		t.counts[ev.Partition] = 0
	}
	t.mu.Unlock()

	partition := strconv.Itoa(ev.Partition)
	t.metrics.CheckpointLag.WithLabelValues(partition).Set(float64(count % t.batchSize))

	if !due {
		return
	}

	if err := t.source.Commit(ctx, ev); err != nil {
		t.metrics.ErrorsTotal.WithLabelValues("CheckpointTracker", "transient").Inc()
		t.logger.Warn("Checkpoint commit failed",
			"partition", ev.Partition,
			"offset", ev.Offset,
			"error", err)
		return
	}

	t.metrics.CheckpointsCommitted.WithLabelValues(partition).Inc()
	t.metrics.CheckpointLag.WithLabelValues(partition).Set(0)
	t.logger.Debug("Checkpoint committed",
		"partition", ev.Partition,
		"offset", ev.Offset)
}

// Pending returns the current event count for a partition
func (t *CheckpointTracker) Pending(partition int) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[partition]
}
