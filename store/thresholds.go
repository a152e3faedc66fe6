package store

import (
	"context"
	"log/slog"
	"strings"

	"github.com/jeffbrin/SHFT/errors"
	"github.com/jeffbrin/SHFT/reading"
)

// Bound selects which side of a threshold pair a record describes
type Bound string

// Threshold bounds
const (
	BoundMin Bound = "min"
	BoundMax Bound = "max"
)

// ThresholdKey derives the store key for a threshold record,
// e.g. "min-Temperature" or "max-Soil-Moisture".
func ThresholdKey(bound Bound, t reading.Type) string {
	return string(bound) + "-" + string(t)
}

// ParseThresholdKey splits a derived key back into its bound and metric type.
// Returns false when the key is not threshold-shaped.
func ParseThresholdKey(key string) (Bound, reading.Type, bool) {
	rest, ok := strings.CutPrefix(key, string(BoundMin)+"-")
	if ok {
		return BoundMin, reading.Type(rest), true
	}
	rest, ok = strings.CutPrefix(key, string(BoundMax)+"-")
	if ok {
		return BoundMax, reading.Type(rest), true
	}
	return "", "", false
}

// ThresholdStore keeps configured min/max bounds as reading-shaped records
// in a DataStore. At most one record exists per derived key; setting a value
// for an existing key updates the record in place.
type ThresholdStore struct {
	data   DataStore
	logger *slog.Logger
}

// NewThresholdStore creates a threshold store over the given DataStore
func NewThresholdStore(data DataStore, logger *slog.Logger) *ThresholdStore {
	return &ThresholdStore{
		data:   data,
		logger: logger.With("component", "ThresholdStore"),
	}
}

// Set writes a threshold bound, updating any existing record for the same
// derived key in place rather than inserting a duplicate.
func (s *ThresholdStore) Set(ctx context.Context, bound Bound, metric reading.Type, value reading.Value) error {
	if value.IsAbsent() {
		return errors.WrapInvalid(errors.ErrMalformedPayload, "ThresholdStore", "Set", "absent threshold value")
	}

	key := ThresholdKey(bound, metric)

	existing, err := s.data.List(ctx, true)
	if err != nil {
		return errors.Wrap(err, "ThresholdStore", "Set", "list existing thresholds")
	}

	for _, item := range existing {
		if string(item.Type) != key {
			continue
		}
		item.Value = value
		if err := s.data.Update(ctx, item); err != nil {
			return errors.Wrap(err, "ThresholdStore", "Set", "update threshold")
		}
		return nil
	}

	record := reading.New(reading.Type(key), value, reading.UnitFor(metric), timeNow())
	if err := s.data.Add(ctx, record); err != nil {
		return errors.Wrap(err, "ThresholdStore", "Set", "insert threshold")
	}
	return nil
}

// Get returns the stored bound for a metric, or ok=false when none is set
func (s *ThresholdStore) Get(ctx context.Context, bound Bound, metric reading.Type) (reading.Value, bool, error) {
	key := ThresholdKey(bound, metric)

	items, err := s.data.List(ctx, true)
	if err != nil {
		return reading.Value{}, false, errors.Wrap(err, "ThresholdStore", "Get", "list thresholds")
	}

	for _, item := range items {
		if string(item.Type) == key {
			return item.Value, true, nil
		}
	}
	return reading.Value{}, false, nil
}

// LoadAll returns every stored threshold keyed by its derived key. Records
// whose key does not parse as a threshold are skipped.
func (s *ThresholdStore) LoadAll(ctx context.Context) (map[string]reading.Value, error) {
	items, err := s.data.List(ctx, true)
	if err != nil {
		return nil, errors.Wrap(err, "ThresholdStore", "LoadAll", "list thresholds")
	}

	out := make(map[string]reading.Value, len(items))
	for _, item := range items {
		if _, _, ok := ParseThresholdKey(string(item.Type)); !ok {
			s.logger.Warn("Skipping non-threshold record in threshold bucket", "type", item.Type)
			continue
		}
		out[string(item.Type)] = item.Value
	}
	return out, nil
}
