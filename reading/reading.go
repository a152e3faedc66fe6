// Package reading defines the sensor observation value record shared by the
// ingestion pipeline, the subsystem state holders, and the historical store.
package reading

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type identifies what a reading measures. The set is closed: values outside
// this enumeration are ignored by the router.
type Type string

// Reading types as they appear on the wire.
const (
	TypeGeoLocation  Type = "Geo-Location"
	TypePitch        Type = "Pitch"
	TypeRoll         Type = "Roll"
	TypeBuzzer       Type = "Buzzer"
	TypeVibration    Type = "Vibration"
	TypeFan          Type = "Fan"
	TypeSoilMoisture Type = "Soil-Moisture"
	TypeWaterLevel   Type = "Water-Level"
	TypeTemperature  Type = "Temperature"
	TypeHumidity     Type = "Humidity"
	TypeRGBLEDStick  Type = "RGB-LED-Stick"
	TypeLuminosity   Type = "Luminosity"
	TypeDoorOpened   Type = "Door-Opened"
	TypeDoorLocked   Type = "Door-Locked"
	TypeMotion       Type = "Motion"
	TypeNoise        Type = "Noise"
	TypeLatitude     Type = "Latitude"
	TypeLongitude    Type = "Longitude"
)

// Unit is the measurement unit attached to a reading.
type Unit string

// Units reported by the device.
const (
	UnitDegrees     Unit = "°"
	UnitCelsius     Unit = "°C"
	UnitPercentage  Unit = "%"
	UnitCentimeters Unit = "cm"
	UnitDecibel     Unit = "dB"
	UnitLux         Unit = "lx"
	UnitNone        Unit = ""
)

// ValueKind tags the scalar type carried by a Value.
type ValueKind int

// Value kinds.
const (
	KindAbsent ValueKind = iota
	KindFloat
	KindInt
	KindBool
)

// String returns the string representation of a ValueKind.
func (k ValueKind) String() string {
	switch k {
	case KindAbsent:
		return "absent"
	case KindFloat:
		return "float"
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	default:
		return "unknown"
	}
}

// kindByType maps each scalar reading type to the value kind its setter
// expects. GeoLocation is absent here: it is a compound record that the
// parser splits into Latitude and Longitude readings.
var kindByType = map[Type]ValueKind{
	TypePitch:        KindFloat,
	TypeRoll:         KindFloat,
	TypeVibration:    KindFloat,
	TypeSoilMoisture: KindFloat,
	TypeWaterLevel:   KindFloat,
	TypeTemperature:  KindFloat,
	TypeHumidity:     KindFloat,
	TypeNoise:        KindFloat,
	TypeLatitude:     KindFloat,
	TypeLongitude:    KindFloat,
	TypeLuminosity:   KindInt,
	TypeMotion:       KindBool,
	TypeBuzzer:       KindBool,
	TypeFan:          KindBool,
	TypeRGBLEDStick:  KindBool,
	TypeDoorOpened:   KindBool,
	TypeDoorLocked:   KindBool,
}

// KindFor returns the value kind a scalar reading type carries, and whether
// the type belongs to the closed enumeration.
func KindFor(t Type) (ValueKind, bool) {
	k, ok := kindByType[t]
	return k, ok
}

var unitByType = map[Type]Unit{
	TypePitch:        UnitDegrees,
	TypeRoll:         UnitDegrees,
	TypeLatitude:     UnitDegrees,
	TypeLongitude:    UnitDegrees,
	TypeTemperature:  UnitCelsius,
	TypeHumidity:     UnitPercentage,
	TypeSoilMoisture: UnitPercentage,
	TypeWaterLevel:   UnitCentimeters,
	TypeNoise:        UnitDecibel,
	TypeLuminosity:   UnitLux,
}

// UnitFor returns the natural unit for a reading type. Types without a
// physical unit (booleans, vibration magnitude) report UnitNone.
func UnitFor(t Type) Unit {
	return unitByType[t]
}

// Known reports whether t is part of the closed type enumeration.
func Known(t Type) bool {
	if t == TypeGeoLocation {
		return true
	}
	_, ok := kindByType[t]
	return ok
}

// Value is a tagged scalar. The zero value is absent, which is distinct from
// a legitimate zero measurement.
type Value struct {
	kind ValueKind
	f    float64
	i    int64
	b    bool
}

// Float wraps a float64 measurement.
func Float(v float64) Value { return Value{kind: KindFloat, f: v} }

// Int wraps an integer measurement.
func Int(v int64) Value { return Value{kind: KindInt, i: v} }

// Bool wraps a boolean state.
func Bool(v bool) Value { return Value{kind: KindBool, b: v} }

// Kind returns the scalar kind of the value.
func (v Value) Kind() ValueKind { return v.kind }

// IsAbsent reports whether the value was never set.
func (v Value) IsAbsent() bool { return v.kind == KindAbsent }

// Float returns the float value and whether the value holds a float.
func (v Value) Float() (float64, bool) { return v.f, v.kind == KindFloat }

// Int returns the integer value and whether the value holds an integer.
func (v Value) Int() (int64, bool) { return v.i, v.kind == KindInt }

// Bool returns the boolean value and whether the value holds a boolean.
func (v Value) Bool() (bool, bool) { return v.b, v.kind == KindBool }

// Equal reports scalar equality. Values of different kinds are never equal;
// two absent values are equal.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindFloat:
		return v.f == o.f
	case KindInt:
		return v.i == o.i
	case KindBool:
		return v.b == o.b
	default:
		return true
	}
}

// String renders the scalar for logs and display.
func (v Value) String() string {
	switch v.kind {
	case KindFloat:
		return fmt.Sprintf("%g", v.f)
	case KindInt:
		return fmt.Sprintf("%d", v.i)
	case KindBool:
		return fmt.Sprintf("%t", v.b)
	default:
		return ""
	}
}

// MarshalJSON renders the natural scalar, or null when absent.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindFloat:
		return json.Marshal(v.f)
	case KindInt:
		return json.Marshal(v.i)
	case KindBool:
		return json.Marshal(v.b)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts a bool, an integer, or a float. JSON cannot
// distinguish a whole-valued float from an integer, so "22" decodes as
// KindInt; Reading.UnmarshalJSON realigns the kind from the reading type.
func (v *Value) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = Value{}
		return nil
	}

	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*v = Bool(b)
		return nil
	}

	// Preserve integer-ness when the document has no decimal point
	var i int64
	if err := json.Unmarshal(data, &i); err == nil {
		*v = Int(i)
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*v = Float(f)
		return nil
	}

	return fmt.Errorf("reading: cannot unmarshal %s as scalar value", data)
}

// as converts between the numeric kinds where the conversion is exact.
// Non-numeric values, absent values, and lossy conversions are returned
// unchanged.
func (v Value) as(kind ValueKind) Value {
	if v.kind == kind {
		return v
	}
	switch {
	case kind == KindFloat && v.kind == KindInt:
		return Float(float64(v.i))
	case kind == KindInt && v.kind == KindFloat && v.f == float64(int64(v.f)):
		return Int(int64(v.f))
	}
	return v
}

// Reading is one sensor observation. Immutable after construction: state
// holders replace the whole reading rather than mutating fields, so readers
// can treat any Reading they hold as a consistent snapshot.
type Reading struct {
	Type      Type      `json:"type"`
	Value     Value     `json:"value"`
	Unit      Unit      `json:"unit"`
	Timestamp time.Time `json:"timestamp"`
	Key       string    `json:"key"`
}

// New creates a reading with a fresh unique key. Timestamp is the
// producer-reported event time, not receipt time.
func New(t Type, value Value, unit Unit, timestamp time.Time) Reading {
	return Reading{
		Type:      t,
		Value:     value,
		Unit:      unit,
		Timestamp: timestamp,
		Key:       uuid.NewString(),
	}
}

// UnmarshalJSON decodes the reading and realigns the value's scalar kind
// with the kind declared for the reading type. A Float(22) marshals as the
// bare number 22, which alone decodes as an integer; without the
// realignment a stored reading would compare unequal to its redelivered
// copy and duplicate detection in the historical store would miss it.
func (r *Reading) UnmarshalJSON(data []byte) error {
	type plain Reading
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = Reading(p)
	if kind, ok := KindFor(r.Type); ok {
		r.Value = r.Value.as(kind)
	}
	return nil
}

// Equal implements the idempotent-upload equality: same timestamp, type,
// unit, and value. Keys are deliberately excluded so a redelivered record
// parsed into a new Reading still matches its stored copy.
func (r Reading) Equal(o Reading) bool {
	return r.Timestamp.Equal(o.Timestamp) &&
		r.Type == o.Type &&
		r.Unit == o.Unit &&
		r.Value.Equal(o.Value)
}

// String renders "value unit" for display.
func (r Reading) String() string {
	return fmt.Sprintf("%s %s", r.Value, r.Unit)
}
