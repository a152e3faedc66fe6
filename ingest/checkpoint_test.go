package ingest

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeffbrin/SHFT/metric"
	"github.com/jeffbrin/SHFT/stream"
)

func newTracker(t *testing.T, source stream.Source, batch int) *CheckpointTracker {
	t.Helper()
	registry := metric.NewMetricsRegistry()
	return NewCheckpointTracker(source, batch, slog.Default(), registry.CoreMetrics())
}

func TestCommitsAfterBatchSize(t *testing.T) {
	ms := stream.NewMemoryStream()
	tracker := newTracker(t, ms, 50)
	ctx := context.Background()

	var last stream.Event
	ms.RegisterHandler(func(_ context.Context, ev stream.Event) {
		tracker.Record(ctx, ev)
		last = ev
	})

	for i := int64(1); i <= 49; i++ {
		ms.Deliver(ctx, 0, i, nil)
	}
	assert.Empty(t, ms.Commits(0), "no commit before the batch is full")
	assert.Equal(t, 49, tracker.Pending(0))

	ms.Deliver(ctx, 0, 50, nil)
	require.Equal(t, []int64{50}, ms.Commits(0))
	assert.Equal(t, 0, tracker.Pending(0), "counter resets after commit")
	_ = last
}

func TestPartitionsCountedIndependently(t *testing.T) {
	ms := stream.NewMemoryStream()
	tracker := newTracker(t, ms, 50)
	ctx := context.Background()

	ms.RegisterHandler(func(_ context.Context, ev stream.Event) {
		tracker.Record(ctx, ev)
	})

	for i := int64(1); i <= 50; i++ {
		ms.Deliver(ctx, 0, i, nil)
	}
	for i := int64(1); i <= 20; i++ {
		ms.Deliver(ctx, 1, i, nil)
	}

	assert.Equal(t, []int64{50}, ms.Commits(0))
	assert.Empty(t, ms.Commits(1))
	assert.Equal(t, 20, tracker.Pending(1))
}

func TestCommitFailureToleratedAndCounterStillResets(t *testing.T) {
	ms := stream.NewMemoryStream()
	ms.FailCommits = true
	tracker := newTracker(t, ms, 10)
	ctx := context.Background()

	for i := int64(1); i <= 10; i++ {
		tracker.Record(ctx, stream.Event{Partition: 3, Offset: i})
	}

	assert.Empty(t, ms.Commits(3))
	assert.Equal(t, 0, tracker.Pending(3))

	// Next batch attempts again and succeeds
	ms.FailCommits = false
	for i := int64(11); i <= 20; i++ {
		tracker.Record(ctx, stream.Event{Partition: 3, Offset: i})
	}
	assert.Equal(t, []int64{20}, ms.Commits(3))
}

func TestDefaultBatchSize(t *testing.T) {
	tracker := newTracker(t, stream.NewMemoryStream(), 0)
	assert.Equal(t, DefaultCheckpointBatch, tracker.batchSize)
}
