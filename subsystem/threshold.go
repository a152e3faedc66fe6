package subsystem

import (
	"github.com/jeffbrin/SHFT/reading"
)

// Threshold is a configured min/max pair for one metric. Either bound may
// be absent, which means unbounded on that side; absence is distinct from a
// legitimate zero bound.
type Threshold struct {
	Min reading.Value
	Max reading.Value
}

// Bounds builds a threshold with both bounds present
func Bounds(min, max float64) Threshold {
	return Threshold{Min: reading.Float(min), Max: reading.Float(max)}
}

// Contains reports whether a numeric value lies within the threshold,
// inclusive on both ends. Absent bounds do not constrain; a non-numeric
// value is never contained.
func (t Threshold) Contains(v reading.Value) bool {
	f, ok := numeric(v)
	if !ok {
		return false
	}

	if min, ok := numeric(t.Min); ok && f < min {
		return false
	}
	if max, ok := numeric(t.Max); ok && f > max {
		return false
	}
	return true
}

// numeric widens float and int values to float64
func numeric(v reading.Value) (float64, bool) {
	if f, ok := v.Float(); ok {
		return f, true
	}
	if i, ok := v.Int(); ok {
		return float64(i), true
	}
	return 0, false
}
