package subsystem

import (
	"context"

	"github.com/jeffbrin/SHFT/component"
	"github.com/jeffbrin/SHFT/reading"
	"github.com/jeffbrin/SHFT/store"
)

const methodBuzzerOn = "buzzer-on"

// Security monitors the container's protection sensors: noise, motion,
// luminosity, and vibration, plus the buzzer and door lock actuators and
// the door-opened contact sensor.
type Security struct {
	*holder
	actuator Actuator
}

// NewSecurity creates the security state holder. Noise, luminosity, and
// vibration accept thresholds but ship without defaults; bounds stay absent
// until configured.
func NewSecurity(hist *store.HistoricalStore, thstore *store.ThresholdStore, act Actuator, throttle int, deps component.Dependencies) *Security {
	defaults := map[reading.Type]Threshold{
		reading.TypeNoise:      {},
		reading.TypeLuminosity: {},
		reading.TypeVibration:  {},
	}
	metrics := []reading.Type{
		reading.TypeNoise,
		reading.TypeMotion,
		reading.TypeLuminosity,
		reading.TypeVibration,
		reading.TypeDoorOpened,
		reading.TypeDoorLocked,
		reading.TypeBuzzer,
	}

	return &Security{
		holder: newHolder("Security", metrics, defaults, hist, thstore, throttle,
			deps.GetLogger(), deps.MetricsRegistry.CoreMetrics()),
		actuator: act,
	}
}

// SetNoise stores the latest noise level reading
func (s *Security) SetNoise(ctx context.Context, r reading.Reading) { s.set(ctx, r) }

// SetMotion stores the latest motion sensor reading
func (s *Security) SetMotion(ctx context.Context, r reading.Reading) { s.set(ctx, r) }

// SetLuminosity stores the latest luminosity reading
func (s *Security) SetLuminosity(ctx context.Context, r reading.Reading) { s.set(ctx, r) }

// SetVibration stores the latest vibration reading
func (s *Security) SetVibration(ctx context.Context, r reading.Reading) { s.set(ctx, r) }

// SetDoorOpened stores the latest door contact reading
func (s *Security) SetDoorOpened(ctx context.Context, r reading.Reading) { s.set(ctx, r) }

// SetBuzzer switches the buzzer, reporting the device's verdict
func (s *Security) SetBuzzer(ctx context.Context, on bool) bool {
	return s.invokeActuator(ctx, s.actuator, methodBuzzerOn, reading.TypeBuzzer, on)
}

// SetDoorLock locks or unlocks the door, reporting the device's verdict
func (s *Security) SetDoorLock(ctx context.Context, locked bool) bool {
	return s.invokeActuator(ctx, s.actuator, methodDoorLock, reading.TypeDoorLocked, locked)
}

// NoiseOK reports whether the current noise level is within bounds
func (s *Security) NoiseOK() bool { return s.metricOK(reading.TypeNoise) }

// LuminosityOK reports whether the current luminosity is within bounds
func (s *Security) LuminosityOK() bool { return s.metricOK(reading.TypeLuminosity) }

// VibrationOK reports whether the current vibration is within bounds
func (s *Security) VibrationOK() bool { return s.metricOK(reading.TypeVibration) }
