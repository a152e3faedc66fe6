package ingest

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/jeffbrin/SHFT/metric"
	"github.com/jeffbrin/SHFT/reading"
)

// PlantSink receives plant subsystem readings
type PlantSink interface {
	SetTemperature(ctx context.Context, r reading.Reading)
	SetHumidity(ctx context.Context, r reading.Reading)
	SetWaterLevel(ctx context.Context, r reading.Reading)
	SetSoilMoisture(ctx context.Context, r reading.Reading)
}

// SecuritySink receives security subsystem readings
type SecuritySink interface {
	SetNoise(ctx context.Context, r reading.Reading)
	SetMotion(ctx context.Context, r reading.Reading)
	SetLuminosity(ctx context.Context, r reading.Reading)
	SetVibration(ctx context.Context, r reading.Reading)
}

// GeoLocationSink receives geo-location subsystem readings
type GeoLocationSink interface {
	SetLatitude(ctx context.Context, r reading.Reading)
	SetLongitude(ctx context.Context, r reading.Reading)
	SetPitch(ctx context.Context, r reading.Reading)
	SetRoll(ctx context.Context, r reading.Reading)
	SetVibration(ctx context.Context, r reading.Reading)
}

// setterFn applies one reading to its subsystem state holder
type setterFn func(ctx context.Context, r reading.Reading)

// Router demultiplexes a telemetry document by subsystem and reading type.
// Each subsystem array is processed inside its own failure boundary, and
// within an array each record is parsed, staleness-filtered, and dispatched
// through a static per-subsystem dispatch table.
type Router struct {
	filter  *StalenessFilter
	logger  *slog.Logger
	metrics *metric.Metrics

	// Static dispatch tables, built once at construction
	dispatch map[Subsystem]map[reading.Type]setterFn
}

// NewRouter builds a router over the three subsystem sinks
func NewRouter(
	plant PlantSink,
	security SecuritySink,
	geo GeoLocationSink,
	filter *StalenessFilter,
	logger *slog.Logger,
	metrics *metric.Metrics,
) *Router {
	return &Router{
		filter:  filter,
		logger:  logger.With("component", "Router"),
		metrics: metrics,
		dispatch: map[Subsystem]map[reading.Type]setterFn{
			SubsystemPlant: {
				reading.TypeTemperature:  plant.SetTemperature,
				reading.TypeHumidity:     plant.SetHumidity,
				reading.TypeWaterLevel:   plant.SetWaterLevel,
				reading.TypeSoilMoisture: plant.SetSoilMoisture,
			},
			SubsystemSecurity: {
				reading.TypeNoise:      security.SetNoise,
				reading.TypeMotion:     security.SetMotion,
				reading.TypeLuminosity: security.SetLuminosity,
				reading.TypeVibration:  security.SetVibration,
			},
			SubsystemGeoLocation: {
				reading.TypeLatitude:  geo.SetLatitude,
				reading.TypeLongitude: geo.SetLongitude,
				reading.TypePitch:     geo.SetPitch,
				reading.TypeRoll:      geo.SetRoll,
				reading.TypeVibration: geo.SetVibration,
			},
		},
	}
}

// Route processes one telemetry document. Subsystem arrays the document
// does not carry are skipped; a decode failure of the document itself drops
// the whole event.
func (r *Router) Route(ctx context.Context, payload []byte) {
	var doc map[Subsystem]json.RawMessage
	if err := json.Unmarshal(payload, &doc); err != nil {
		r.metrics.RecordsSkipped.WithLabelValues("malformed_document").Inc()
		r.logger.Warn("Dropping undecodable telemetry document", "error", err)
		return
	}

	for subsystem := range r.dispatch {
		rawArray, ok := doc[subsystem]
		if !ok {
			continue
		}
		r.routeSubsystem(ctx, subsystem, rawArray)
	}
}

// routeSubsystem is one subsystem branch's failure boundary. A panic or
// decode failure here never reaches the sibling branches.
func (r *Router) routeSubsystem(ctx context.Context, subsystem Subsystem, rawArray json.RawMessage) {
	defer func() {
		if rec := recover(); rec != nil {
			r.metrics.ErrorsTotal.WithLabelValues("Router", "fatal").Inc()
			r.logger.Error("Recovered panic in subsystem branch",
				"subsystem", subsystem,
				"panic", rec)
		}
	}()

	var records []json.RawMessage
	if err := json.Unmarshal(rawArray, &records); err != nil {
		r.metrics.RecordsSkipped.WithLabelValues("malformed_subsystem_array").Inc()
		r.logger.Warn("Skipping undecodable subsystem array",
			"subsystem", subsystem,
			"error", err)
		return
	}

	table := r.dispatch[subsystem]

	for _, raw := range records {
		readings, err := ParseRecord(raw)
		if err != nil {
			// Isolated to this record; the rest of the array continues
			r.metrics.RecordsSkipped.WithLabelValues("parse_error").Inc()
			r.logger.Warn("Skipping unparseable record",
				"subsystem", subsystem,
				"error", err)
			continue
		}
		if len(readings) == 0 {
			r.metrics.RecordsSkipped.WithLabelValues("unknown_type").Inc()
			continue
		}

		if r.filter.Stale(readings[0].Timestamp) {
			r.metrics.RecordsSkipped.WithLabelValues("stale").Inc()
			continue
		}

		for _, rd := range readings {
			setter, ok := table[rd.Type]
			if !ok {
				// Type not accepted by this subsystem branch
				r.metrics.RecordsSkipped.WithLabelValues("unrouted_type").Inc()
				continue
			}
			setter(ctx, rd)
			r.metrics.ReadingsRouted.WithLabelValues(string(subsystem), string(rd.Type)).Inc()
		}
	}
}
