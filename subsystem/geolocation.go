package subsystem

import (
	"context"

	"github.com/jeffbrin/SHFT/component"
	"github.com/jeffbrin/SHFT/reading"
	"github.com/jeffbrin/SHFT/store"
)

// GeoLocation tracks where the container is and how it is oriented:
// latitude, longitude, pitch, roll, and vibration, plus the buzzer actuator
// used to make a moved container audible.
type GeoLocation struct {
	*holder
	actuator Actuator
}

// NewGeoLocation creates the geolocation state holder. All five positional
// metrics accept thresholds but ship without defaults.
func NewGeoLocation(hist *store.HistoricalStore, thstore *store.ThresholdStore, act Actuator, throttle int, deps component.Dependencies) *GeoLocation {
	defaults := map[reading.Type]Threshold{
		reading.TypeLatitude:  {},
		reading.TypeLongitude: {},
		reading.TypePitch:     {},
		reading.TypeRoll:      {},
		reading.TypeVibration: {},
	}
	metrics := []reading.Type{
		reading.TypeLatitude,
		reading.TypeLongitude,
		reading.TypePitch,
		reading.TypeRoll,
		reading.TypeVibration,
		reading.TypeBuzzer,
	}

	return &GeoLocation{
		holder: newHolder("GeoLocation", metrics, defaults, hist, thstore, throttle,
			deps.GetLogger(), deps.MetricsRegistry.CoreMetrics()),
		actuator: act,
	}
}

// SetLatitude stores the latest decimal latitude reading
func (g *GeoLocation) SetLatitude(ctx context.Context, r reading.Reading) { g.set(ctx, r) }

// SetLongitude stores the latest decimal longitude reading
func (g *GeoLocation) SetLongitude(ctx context.Context, r reading.Reading) { g.set(ctx, r) }

// SetPitch stores the latest pitch reading
func (g *GeoLocation) SetPitch(ctx context.Context, r reading.Reading) { g.set(ctx, r) }

// SetRoll stores the latest roll reading
func (g *GeoLocation) SetRoll(ctx context.Context, r reading.Reading) { g.set(ctx, r) }

// SetVibration stores the latest vibration reading
func (g *GeoLocation) SetVibration(ctx context.Context, r reading.Reading) { g.set(ctx, r) }

// SetBuzzer switches the buzzer, reporting the device's verdict
func (g *GeoLocation) SetBuzzer(ctx context.Context, on bool) bool {
	return g.invokeActuator(ctx, g.actuator, methodBuzzerOn, reading.TypeBuzzer, on)
}

// LatitudeOK reports whether the current latitude is within bounds
func (g *GeoLocation) LatitudeOK() bool { return g.metricOK(reading.TypeLatitude) }

// LongitudeOK reports whether the current longitude is within bounds
func (g *GeoLocation) LongitudeOK() bool { return g.metricOK(reading.TypeLongitude) }

// PitchOK reports whether the current pitch is within bounds
func (g *GeoLocation) PitchOK() bool { return g.metricOK(reading.TypePitch) }

// RollOK reports whether the current roll is within bounds
func (g *GeoLocation) RollOK() bool { return g.metricOK(reading.TypeRoll) }

// VibrationOK reports whether the current vibration is within bounds
func (g *GeoLocation) VibrationOK() bool { return g.metricOK(reading.TypeVibration) }
