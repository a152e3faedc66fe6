package subsystem

import (
	"context"

	"github.com/jeffbrin/SHFT/component"
	"github.com/jeffbrin/SHFT/reading"
	"github.com/jeffbrin/SHFT/store"
)

// Plant environmental threshold defaults
const (
	DefaultMinTemperature  = 10
	DefaultMaxTemperature  = 50
	DefaultMinHumidity     = 0
	DefaultMaxHumidity     = 50
	DefaultMinWaterLevel   = 0
	DefaultMaxWaterLevel   = 10
	DefaultMinSoilMoisture = 30
	DefaultMaxSoilMoisture = 70
)

// Device method names for plant actuators
const (
	methodFanOn    = "fan-on"
	methodLEDOn    = "led-on"
	methodDoorLock = "door-lock"
)

// Plant monitors and controls the growing environment: temperature,
// humidity, water level, and soil moisture, plus the fan, grow light, and
// door lock actuators.
type Plant struct {
	*holder
	actuator Actuator
}

// NewPlant creates the plant state holder
func NewPlant(hist *store.HistoricalStore, thstore *store.ThresholdStore, act Actuator, throttle int, deps component.Dependencies) *Plant {
	defaults := map[reading.Type]Threshold{
		reading.TypeTemperature:  Bounds(DefaultMinTemperature, DefaultMaxTemperature),
		reading.TypeHumidity:     Bounds(DefaultMinHumidity, DefaultMaxHumidity),
		reading.TypeWaterLevel:   Bounds(DefaultMinWaterLevel, DefaultMaxWaterLevel),
		reading.TypeSoilMoisture: Bounds(DefaultMinSoilMoisture, DefaultMaxSoilMoisture),
	}
	metrics := []reading.Type{
		reading.TypeTemperature,
		reading.TypeHumidity,
		reading.TypeWaterLevel,
		reading.TypeSoilMoisture,
		reading.TypeFan,
		reading.TypeRGBLEDStick,
		reading.TypeDoorLocked,
	}

	return &Plant{
		holder: newHolder("Plant", metrics, defaults, hist, thstore, throttle,
			deps.GetLogger(), deps.MetricsRegistry.CoreMetrics()),
		actuator: act,
	}
}

// SetTemperature stores the latest temperature reading
func (p *Plant) SetTemperature(ctx context.Context, r reading.Reading) { p.set(ctx, r) }

// SetHumidity stores the latest humidity reading
func (p *Plant) SetHumidity(ctx context.Context, r reading.Reading) { p.set(ctx, r) }

// SetWaterLevel stores the latest water level reading
func (p *Plant) SetWaterLevel(ctx context.Context, r reading.Reading) { p.set(ctx, r) }

// SetSoilMoisture stores the latest soil moisture reading
func (p *Plant) SetSoilMoisture(ctx context.Context, r reading.Reading) { p.set(ctx, r) }

// SetFan switches the fan, reporting the device's verdict
func (p *Plant) SetFan(ctx context.Context, on bool) bool {
	return p.invokeActuator(ctx, p.actuator, methodFanOn, reading.TypeFan, on)
}

// SetLight switches the grow light, reporting the device's verdict
func (p *Plant) SetLight(ctx context.Context, on bool) bool {
	return p.invokeActuator(ctx, p.actuator, methodLEDOn, reading.TypeRGBLEDStick, on)
}

// SetDoorLock locks or unlocks the door, reporting the device's verdict
func (p *Plant) SetDoorLock(ctx context.Context, locked bool) bool {
	return p.invokeActuator(ctx, p.actuator, methodDoorLock, reading.TypeDoorLocked, locked)
}

// SoilMoistureOK reports whether the current soil moisture lies within its
// threshold, inclusive. Computed at read time, never cached.
func (p *Plant) SoilMoistureOK() bool { return p.metricOK(reading.TypeSoilMoisture) }

// TemperatureOK reports whether the current temperature is within bounds
func (p *Plant) TemperatureOK() bool { return p.metricOK(reading.TypeTemperature) }

// HumidityOK reports whether the current humidity is within bounds
func (p *Plant) HumidityOK() bool { return p.metricOK(reading.TypeHumidity) }

// WaterLevelOK reports whether the current water level is within bounds
func (p *Plant) WaterLevelOK() bool { return p.metricOK(reading.TypeWaterLevel) }
