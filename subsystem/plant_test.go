package subsystem

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeffbrin/SHFT/component"
	"github.com/jeffbrin/SHFT/metric"
	"github.com/jeffbrin/SHFT/reading"
	"github.com/jeffbrin/SHFT/store"
)

type fakeActuator struct {
	calls   []string
	values  []bool
	result  bool
	failErr error
}

func (f *fakeActuator) Invoke(_ context.Context, method string, value bool) (bool, error) {
	f.calls = append(f.calls, method)
	f.values = append(f.values, value)
	if f.failErr != nil {
		return false, f.failErr
	}
	return f.result, nil
}

type plantFixture struct {
	plant    *Plant
	data     *store.MemoryStore
	actuator *fakeActuator
}

func newPlantFixture(t *testing.T, throttle int) *plantFixture {
	t.Helper()

	data := store.NewMemoryStore()
	thdata := store.NewMemoryStore()
	deps := component.Dependencies{
		MetricsRegistry: metric.NewMetricsRegistry(),
		DeviceID:        "container-test",
	}
	logger := deps.GetLogger()

	hist := store.NewHistoricalStore(data, 24*time.Hour, logger)
	thstore := store.NewThresholdStore(thdata, logger)
	act := &fakeActuator{result: true}

	return &plantFixture{
		plant:    NewPlant(hist, thstore, act, throttle, deps),
		data:     data,
		actuator: act,
	}
}

func tempReading(v float64) reading.Reading {
	return reading.New(reading.TypeTemperature, reading.Float(v), reading.UnitCelsius, time.Now())
}

func TestPlantSetterUpdatesSnapshot(t *testing.T) {
	fx := newPlantFixture(t, DefaultPersistThrottle)
	ctx := context.Background()

	r := tempReading(22.5)
	fx.plant.SetTemperature(ctx, r)

	cur, ok := fx.plant.Current(reading.TypeTemperature)
	require.True(t, ok)
	assert.True(t, r.Equal(cur))
}

func TestPlantNoSnapshotBeforeFirstReading(t *testing.T) {
	fx := newPlantFixture(t, DefaultPersistThrottle)

	_, ok := fx.plant.Current(reading.TypeHumidity)
	assert.False(t, ok)
}

func TestPlantPersistThrottle(t *testing.T) {
	fx := newPlantFixture(t, 10)
	ctx := context.Background()

	for i := 0; i < 9; i++ {
		fx.plant.SetTemperature(ctx, tempReading(float64(20+i)))
	}
	assert.Equal(t, 0, fx.data.Len(), "no persist before the tenth call")

	fx.plant.SetTemperature(ctx, tempReading(30))
	assert.Equal(t, 1, fx.data.Len(), "persist on the tenth call")

	for i := 0; i < 9; i++ {
		fx.plant.SetTemperature(ctx, tempReading(float64(31+i)))
	}
	assert.Equal(t, 1, fx.data.Len(), "counter resets after a persist")
}

func TestPlantPersistThrottlePerMetric(t *testing.T) {
	fx := newPlantFixture(t, 2)
	ctx := context.Background()

	fx.plant.SetTemperature(ctx, tempReading(21))
	fx.plant.SetHumidity(ctx, reading.New(reading.TypeHumidity, reading.Float(40), reading.UnitPercentage, time.Now()))
	assert.Equal(t, 0, fx.data.Len(), "counters are independent per metric")

	fx.plant.SetTemperature(ctx, tempReading(22))
	assert.Equal(t, 1, fx.data.Len())
}

func TestPlantSetterNotifiesOnce(t *testing.T) {
	fx := newPlantFixture(t, DefaultPersistThrottle)
	ctx := context.Background()

	var changes []Change
	unsubscribe := fx.plant.Subscribe(func(c Change) {
		changes = append(changes, c)
	})
	defer unsubscribe()

	fx.plant.SetTemperature(ctx, tempReading(25))

	require.Len(t, changes, 1)
	assert.Equal(t, "Plant", changes[0].Subsystem)
	assert.Equal(t, reading.TypeTemperature, changes[0].Reading.Type)
}

func TestPlantUnsubscribeStopsNotifications(t *testing.T) {
	fx := newPlantFixture(t, DefaultPersistThrottle)
	ctx := context.Background()

	count := 0
	unsubscribe := fx.plant.Subscribe(func(Change) { count++ })

	fx.plant.SetTemperature(ctx, tempReading(21))
	unsubscribe()
	fx.plant.SetTemperature(ctx, tempReading(22))

	assert.Equal(t, 1, count)
}

func TestPlantDefaultThresholds(t *testing.T) {
	fx := newPlantFixture(t, DefaultPersistThrottle)

	cases := []struct {
		metric   reading.Type
		min, max float64
	}{
		{reading.TypeTemperature, DefaultMinTemperature, DefaultMaxTemperature},
		{reading.TypeHumidity, DefaultMinHumidity, DefaultMaxHumidity},
		{reading.TypeWaterLevel, DefaultMinWaterLevel, DefaultMaxWaterLevel},
		{reading.TypeSoilMoisture, DefaultMinSoilMoisture, DefaultMaxSoilMoisture},
	}
	for _, tc := range cases {
		th, ok := fx.plant.Threshold(tc.metric)
		require.True(t, ok, "metric %s", tc.metric)

		min, ok := th.Min.Float()
		require.True(t, ok)
		assert.Equal(t, tc.min, min)

		max, ok := th.Max.Float()
		require.True(t, ok)
		assert.Equal(t, tc.max, max)
	}
}

func TestPlantLoadThresholdsOverlaysStored(t *testing.T) {
	fx := newPlantFixture(t, DefaultPersistThrottle)
	ctx := context.Background()

	// Seed a stored minimum, then load: the stored value wins and the
	// untouched default maximum survives.
	thdata := store.NewMemoryStore()
	deps := component.Dependencies{MetricsRegistry: metric.NewMetricsRegistry()}
	logger := deps.GetLogger()
	thstore := store.NewThresholdStore(thdata, logger)
	require.NoError(t, thstore.Set(ctx, store.BoundMin, reading.TypeTemperature, reading.Float(15)))

	hist := store.NewHistoricalStore(store.NewMemoryStore(), 24*time.Hour, logger)
	plant := NewPlant(hist, thstore, fx.actuator, DefaultPersistThrottle, deps)
	require.NoError(t, plant.LoadThresholds(ctx))

	th, ok := plant.Threshold(reading.TypeTemperature)
	require.True(t, ok)

	min, ok := th.Min.Float()
	require.True(t, ok)
	assert.Equal(t, 15.0, min)

	max, ok := th.Max.Float()
	require.True(t, ok)
	assert.Equal(t, float64(DefaultMaxTemperature), max)
}

func TestPlantSetMinThresholdWritesThrough(t *testing.T) {
	fx := newPlantFixture(t, DefaultPersistThrottle)
	ctx := context.Background()

	require.NoError(t, fx.plant.SetMinThreshold(ctx, reading.TypeSoilMoisture, reading.Float(35)))

	th, ok := fx.plant.Threshold(reading.TypeSoilMoisture)
	require.True(t, ok)
	min, ok := th.Min.Float()
	require.True(t, ok)
	assert.Equal(t, 35.0, min)
}

func TestPlantSetThresholdRejectsUnknownMetric(t *testing.T) {
	fx := newPlantFixture(t, DefaultPersistThrottle)

	err := fx.plant.SetMaxThreshold(context.Background(), reading.TypeNoise, reading.Float(80))
	assert.Error(t, err)
}

func TestPlantSoilMoistureOKInclusiveBounds(t *testing.T) {
	fx := newPlantFixture(t, DefaultPersistThrottle)
	ctx := context.Background()

	set := func(v float64) {
		fx.plant.SetSoilMoisture(ctx, reading.New(reading.TypeSoilMoisture, reading.Float(v), reading.UnitPercentage, time.Now()))
	}

	assert.True(t, fx.plant.SoilMoistureOK(), "no reading yet reads as okay")

	set(DefaultMinSoilMoisture)
	assert.True(t, fx.plant.SoilMoistureOK(), "boundary value is in range")

	set(DefaultMaxSoilMoisture)
	assert.True(t, fx.plant.SoilMoistureOK())

	set(DefaultMinSoilMoisture - 0.1)
	assert.False(t, fx.plant.SoilMoistureOK())

	set(DefaultMaxSoilMoisture + 0.1)
	assert.False(t, fx.plant.SoilMoistureOK())
}

func TestPlantSetFanTwoPhase(t *testing.T) {
	fx := newPlantFixture(t, DefaultPersistThrottle)

	ok := fx.plant.SetFan(context.Background(), true)

	assert.True(t, ok)
	assert.Equal(t, []string{"fan-on"}, fx.actuator.calls)
	assert.Equal(t, []bool{true}, fx.actuator.values)

	cur, found := fx.plant.Current(reading.TypeFan)
	require.True(t, found)
	on, isBool := cur.Value.Bool()
	require.True(t, isBool)
	assert.True(t, on, "local state updates before the device call")
}

func TestPlantActuatorFailureKeepsOptimisticState(t *testing.T) {
	fx := newPlantFixture(t, DefaultPersistThrottle)
	fx.actuator.failErr = errors.New("device unreachable")

	ok := fx.plant.SetDoorLock(context.Background(), true)

	assert.False(t, ok, "caller learns the invocation failed and reverts")

	cur, found := fx.plant.Current(reading.TypeDoorLocked)
	require.True(t, found)
	locked, isBool := cur.Value.Bool()
	require.True(t, isBool)
	assert.True(t, locked, "local state is not rolled back by the holder")
}

func TestPlantActuatorRejectedByDevice(t *testing.T) {
	fx := newPlantFixture(t, DefaultPersistThrottle)
	fx.actuator.result = false

	assert.False(t, fx.plant.SetLight(context.Background(), true))
	assert.Equal(t, []string{"led-on"}, fx.actuator.calls)
}

func TestPlantActuatorDoesNotPersist(t *testing.T) {
	fx := newPlantFixture(t, 1)

	fx.plant.SetFan(context.Background(), true)
	assert.Equal(t, 0, fx.data.Len(), "actuator state never hits the historical store")
}
