package reading

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_AssignsUniqueKeys(t *testing.T) {
	ts := time.Date(2023, 4, 26, 10, 0, 0, 0, time.UTC)
	a := New(TypeTemperature, Float(22.5), UnitCelsius, ts)
	b := New(TypeTemperature, Float(22.5), UnitCelsius, ts)

	assert.NotEmpty(t, a.Key)
	assert.NotEmpty(t, b.Key)
	assert.NotEqual(t, a.Key, b.Key)
}

func TestEqual_IgnoresKey(t *testing.T) {
	ts := time.Date(2023, 4, 26, 10, 0, 0, 0, time.UTC)
	a := New(TypeTemperature, Float(22.5), UnitCelsius, ts)
	b := New(TypeTemperature, Float(22.5), UnitCelsius, ts)

	assert.True(t, a.Equal(b), "readings differing only by key must be equal")
}

func TestEqual_FieldSensitivity(t *testing.T) {
	ts := time.Date(2023, 4, 26, 10, 0, 0, 0, time.UTC)
	base := New(TypeTemperature, Float(22.5), UnitCelsius, ts)

	tests := []struct {
		name  string
		other Reading
	}{
		{"different value", New(TypeTemperature, Float(23.0), UnitCelsius, ts)},
		{"different unit", New(TypeTemperature, Float(22.5), UnitPercentage, ts)},
		{"different type", New(TypeHumidity, Float(22.5), UnitCelsius, ts)},
		{"different timestamp", New(TypeTemperature, Float(22.5), UnitCelsius, ts.Add(time.Second))},
		{"different kind", New(TypeTemperature, Int(22), UnitCelsius, ts)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, base.Equal(tt.other))
		})
	}
}

func TestValue_Accessors(t *testing.T) {
	f, ok := Float(1.5).Float()
	assert.True(t, ok)
	assert.Equal(t, 1.5, f)

	i, ok := Int(42).Int()
	assert.True(t, ok)
	assert.Equal(t, int64(42), i)

	b, ok := Bool(true).Bool()
	assert.True(t, ok)
	assert.True(t, b)

	_, ok = Float(1.5).Int()
	assert.False(t, ok)

	var absent Value
	assert.True(t, absent.IsAbsent())
	assert.Equal(t, KindAbsent, absent.Kind())
}

func TestValue_ZeroIsNotAbsent(t *testing.T) {
	// A legitimate zero measurement must stay distinct from "never set".
	zero := Float(0)
	assert.False(t, zero.IsAbsent())

	var absent Value
	assert.False(t, zero.Equal(absent))
}

func TestValue_JSONRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		json string
	}{
		{"float", Float(42.3), "42.3"},
		{"int", Int(815), "815"},
		{"bool", Bool(true), "true"},
		{"absent", Value{}, "null"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.v)
			require.NoError(t, err)
			assert.JSONEq(t, tt.json, string(data))

			var back Value
			require.NoError(t, json.Unmarshal(data, &back))
			assert.True(t, tt.v.Equal(back))
		})
	}
}

func TestReading_JSONRoundTrip(t *testing.T) {
	r := New(TypeNoise, Float(42.3), UnitDecibel, time.Date(2023, 4, 26, 10, 0, 0, 0, time.UTC))

	data, err := json.Marshal(r)
	require.NoError(t, err)

	var back Reading
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, r.Equal(back))
	assert.Equal(t, r.Key, back.Key)
}

func TestReading_JSONRoundTrip_WholeValuedFloat(t *testing.T) {
	// Float(22) marshals as the bare number 22. Decoding must restore the
	// float kind declared for the type or the redelivered reading would no
	// longer match its stored copy.
	r := New(TypeTemperature, Float(22), UnitCelsius, time.Date(2023, 4, 26, 10, 0, 0, 0, time.UTC))

	data, err := json.Marshal(r)
	require.NoError(t, err)

	var back Reading
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, KindFloat, back.Value.Kind())
	assert.True(t, r.Equal(back))
}

func TestReading_JSONRoundTrip_IntegerKindPreserved(t *testing.T) {
	r := New(TypeLuminosity, Int(815), UnitLux, time.Date(2023, 4, 26, 10, 0, 0, 0, time.UTC))

	data, err := json.Marshal(r)
	require.NoError(t, err)

	var back Reading
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, KindInt, back.Value.Kind())
	assert.True(t, r.Equal(back))
}

func TestReading_JSONRoundTrip_UnknownTypeKeepsDecodedKind(t *testing.T) {
	r := New(Type("Flux-Capacitance"), Float(3), UnitNone, time.Date(2023, 4, 26, 10, 0, 0, 0, time.UTC))

	data, err := json.Marshal(r)
	require.NoError(t, err)

	// No declared kind to realign against, so the bare number stays an int.
	var back Reading
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, KindInt, back.Value.Kind())
}

func TestKindFor(t *testing.T) {
	tests := []struct {
		t    Type
		kind ValueKind
	}{
		{TypeTemperature, KindFloat},
		{TypeHumidity, KindFloat},
		{TypeWaterLevel, KindFloat},
		{TypeSoilMoisture, KindFloat},
		{TypeNoise, KindFloat},
		{TypeVibration, KindFloat},
		{TypePitch, KindFloat},
		{TypeRoll, KindFloat},
		{TypeLuminosity, KindInt},
		{TypeMotion, KindBool},
	}

	for _, tt := range tests {
		kind, ok := KindFor(tt.t)
		require.True(t, ok, "type %s", tt.t)
		assert.Equal(t, tt.kind, kind, "type %s", tt.t)
	}

	_, ok := KindFor(Type("Molality"))
	assert.False(t, ok)
}

func TestKnown(t *testing.T) {
	assert.True(t, Known(TypeGeoLocation))
	assert.True(t, Known(TypeDoorLocked))
	assert.False(t, Known(Type("Flux-Capacitance")))
}

func TestReading_String(t *testing.T) {
	r := New(TypeTemperature, Float(22.5), UnitCelsius, time.Now())
	assert.Equal(t, "22.5 °C", r.String())
}
