package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeffbrin/SHFT/reading"
)

func TestThresholdKey(t *testing.T) {
	assert.Equal(t, "min-Temperature", ThresholdKey(BoundMin, reading.TypeTemperature))
	assert.Equal(t, "max-Soil-Moisture", ThresholdKey(BoundMax, reading.TypeSoilMoisture))
}

func TestParseThresholdKey(t *testing.T) {
	bound, metric, ok := ParseThresholdKey("min-Temperature")
	require.True(t, ok)
	assert.Equal(t, BoundMin, bound)
	assert.Equal(t, reading.TypeTemperature, metric)

	bound, metric, ok = ParseThresholdKey("max-Water-Level")
	require.True(t, ok)
	assert.Equal(t, BoundMax, bound)
	assert.Equal(t, reading.TypeWaterLevel, metric)

	_, _, ok = ParseThresholdKey("Temperature")
	assert.False(t, ok)
}

func TestThresholdSetInsertsThenUpdatesInPlace(t *testing.T) {
	mem := NewMemoryStore()
	ts := NewThresholdStore(mem, testLogger())
	ctx := context.Background()

	require.NoError(t, ts.Set(ctx, BoundMin, reading.TypeTemperature, reading.Float(10)))
	assert.Equal(t, 1, mem.Len())

	// Second write for the same derived key updates, never duplicates
	require.NoError(t, ts.Set(ctx, BoundMin, reading.TypeTemperature, reading.Float(12)))
	assert.Equal(t, 1, mem.Len())
	assert.Equal(t, 1, mem.UpdateCount())

	val, ok, err := ts.Get(ctx, BoundMin, reading.TypeTemperature)
	require.NoError(t, err)
	require.True(t, ok)
	f, _ := val.Float()
	assert.Equal(t, 12.0, f)
}

func TestThresholdMinMaxIndependent(t *testing.T) {
	mem := NewMemoryStore()
	ts := NewThresholdStore(mem, testLogger())
	ctx := context.Background()

	require.NoError(t, ts.Set(ctx, BoundMin, reading.TypeHumidity, reading.Float(0)))
	require.NoError(t, ts.Set(ctx, BoundMax, reading.TypeHumidity, reading.Float(50)))
	assert.Equal(t, 2, mem.Len())
}

func TestThresholdSetRejectsAbsentValue(t *testing.T) {
	ts := NewThresholdStore(NewMemoryStore(), testLogger())
	err := ts.Set(context.Background(), BoundMin, reading.TypeTemperature, reading.Value{})
	assert.Error(t, err)
}

func TestThresholdGetMissing(t *testing.T) {
	ts := NewThresholdStore(NewMemoryStore(), testLogger())

	_, ok, err := ts.Get(context.Background(), BoundMax, reading.TypeNoise)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestThresholdLoadAll(t *testing.T) {
	mem := NewMemoryStore()
	ts := NewThresholdStore(mem, testLogger())
	ctx := context.Background()

	require.NoError(t, ts.Set(ctx, BoundMin, reading.TypeTemperature, reading.Float(10)))
	require.NoError(t, ts.Set(ctx, BoundMax, reading.TypeTemperature, reading.Float(50)))
	require.NoError(t, ts.Set(ctx, BoundMin, reading.TypeWaterLevel, reading.Float(0)))

	all, err := ts.LoadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	v, ok := all["max-Temperature"]
	require.True(t, ok)
	f, _ := v.Float()
	assert.Equal(t, 50.0, f)
}
