package ingest

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeffbrin/SHFT/component"
	"github.com/jeffbrin/SHFT/metric"
	"github.com/jeffbrin/SHFT/pkg/timestamp"
	"github.com/jeffbrin/SHFT/stream"
)

func newProcessorFixture(t *testing.T) (*Processor, *stream.MemoryStream, *routerFixture) {
	t.Helper()
	registry := metric.NewMetricsRegistry()
	deps := component.Dependencies{
		MetricsRegistry: registry,
		Logger:          slog.Default(),
		DeviceID:        "container-test",
	}

	fx := newRouterFixture(t, timestamp.Epoch)
	ms := stream.NewMemoryStream()
	tracker := NewCheckpointTracker(ms, 2, slog.Default(), registry.CoreMetrics())
	proc := NewProcessor(ms, fx.router, tracker, deps)
	return proc, ms, fx
}

func TestProcessorRoutesAndCheckpoints(t *testing.T) {
	proc, ms, fx := newProcessorFixture(t)
	require.NoError(t, proc.Initialize())
	require.NoError(t, proc.Start(context.Background()))

	payload := []byte(`{"PlantSubsystem":[{"timestamp":"2023-04-26 10:00:00","reading_type":"Temperature","value":22.5,"reading_unit":"°C"}]}`)

	ctx := context.Background()
	ms.Deliver(ctx, 0, 1, payload)
	ms.Deliver(ctx, 0, 2, payload)

	assert.Len(t, fx.plant.get("temperature"), 2)
	assert.Equal(t, []int64{2}, ms.Commits(0), "checkpoint after the batch size")

	assert.NoError(t, proc.Stop(time.Second))
}

func TestProcessorSurvivesBadPayload(t *testing.T) {
	proc, ms, fx := newProcessorFixture(t)
	require.NoError(t, proc.Initialize())
	require.NoError(t, proc.Start(context.Background()))

	ctx := context.Background()
	ms.Deliver(ctx, 0, 1, []byte(`{{{broken`))
	ms.Deliver(ctx, 0, 2, []byte(`{"PlantSubsystem":[{"timestamp":"2023-04-26 10:00:00","reading_type":"Temperature","value":22.5}]}`))

	assert.Len(t, fx.plant.get("temperature"), 1)
	// Both events still count toward the checkpoint batch
	assert.Equal(t, []int64{2}, ms.Commits(0))
}

func TestProcessorInitializeRequiresWiring(t *testing.T) {
	deps := component.Dependencies{MetricsRegistry: metric.NewMetricsRegistry()}
	proc := NewProcessor(nil, nil, nil, deps)
	assert.Error(t, proc.Initialize())
}

func TestProcessorDoubleStart(t *testing.T) {
	proc, _, _ := newProcessorFixture(t)
	require.NoError(t, proc.Initialize())
	require.NoError(t, proc.Start(context.Background()))
	assert.Error(t, proc.Start(context.Background()))
	assert.NoError(t, proc.Stop(time.Second))
}

func TestProcessorHealth(t *testing.T) {
	proc, _, _ := newProcessorFixture(t)
	require.NoError(t, proc.Initialize())

	health := proc.Health()
	assert.False(t, health.Healthy)

	require.NoError(t, proc.Start(context.Background()))
	health = proc.Health()
	assert.True(t, health.Healthy)
	assert.Zero(t, health.ErrorCount)
}
