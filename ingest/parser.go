package ingest

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/jeffbrin/SHFT/errors"
	"github.com/jeffbrin/SHFT/pkg/timestamp"
	"github.com/jeffbrin/SHFT/reading"
)

// Subsystem names the top-level arrays of the wire payload
type Subsystem string

// Wire payload subsystem keys
const (
	SubsystemSecurity    Subsystem = "SecuritySubsystem"
	SubsystemPlant       Subsystem = "PlantSubsystem"
	SubsystemGeoLocation Subsystem = "GeoLocationSubsystem"
)

// wireRecord is one element of a subsystem array
type wireRecord struct {
	Timestamp   string          `json:"timestamp"`
	ReadingType string          `json:"reading_type"`
	Value       json.RawMessage `json:"value"`
	ReadingUnit string          `json:"reading_unit"`
}

// geoValue is the nested value shape of a Geo-Location record
type geoValue struct {
	Latitude           coordinate `json:"Latitude"`
	Longitude          coordinate `json:"Longitude"`
	LatitudeDirection  string     `json:"Latitude Direction"`
	LongitudeDirection string     `json:"Longitude Direction"`
}

// coordinate carries degrees and minutes, each of which may arrive as a
// JSON number or a numeric string depending on the producer.
type coordinate struct {
	Degrees json.RawMessage `json:"degrees"`
	Minutes json.RawMessage `json:"minutes"`
}

// DecodeCoordinate converts degrees/minutes to a decimal coordinate,
// negating for southern and western hemispheres.
func DecodeCoordinate(degrees, minutes float64, hemisphere string) float64 {
	decimal := degrees + minutes/60
	if hemisphere == "S" || hemisphere == "W" {
		decimal = -decimal
	}
	return decimal
}

// ParseRecord converts one raw wire record into typed readings. A
// Geo-Location record yields a latitude and a longitude reading; scalar
// records yield exactly one. An unknown reading type yields no readings and
// no error.
func ParseRecord(raw json.RawMessage) ([]reading.Reading, error) {
	var rec wireRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, errors.WrapInvalid(err, "Parser", "ParseRecord", "decode record")
	}

	ts, err := timestamp.Parse(rec.Timestamp)
	if err != nil {
		return nil, err
	}

	rt := reading.Type(rec.ReadingType)
	if rt == reading.TypeGeoLocation {
		return parseGeoLocation(rec, ts)
	}

	kind, known := reading.KindFor(rt)
	if !known {
		// Not part of the closed enumeration; no case matches
		return nil, nil
	}

	value, err := parseScalar(rec.Value, kind)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Parser", "ParseRecord", "parse "+rec.ReadingType+" value")
	}

	return []reading.Reading{
		reading.New(rt, value, reading.Unit(rec.ReadingUnit), ts),
	}, nil
}

func parseGeoLocation(rec wireRecord, ts time.Time) ([]reading.Reading, error) {
	var geo geoValue
	if err := json.Unmarshal(rec.Value, &geo); err != nil {
		return nil, errors.WrapInvalid(err, "Parser", "parseGeoLocation", "decode geo value")
	}

	latDeg, err := toFloat(geo.Latitude.Degrees)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Parser", "parseGeoLocation", "parse latitude degrees")
	}
	latMin, err := toFloat(geo.Latitude.Minutes)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Parser", "parseGeoLocation", "parse latitude minutes")
	}
	lonDeg, err := toFloat(geo.Longitude.Degrees)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Parser", "parseGeoLocation", "parse longitude degrees")
	}
	lonMin, err := toFloat(geo.Longitude.Minutes)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Parser", "parseGeoLocation", "parse longitude minutes")
	}

	lat := DecodeCoordinate(latDeg, latMin, geo.LatitudeDirection)
	lon := DecodeCoordinate(lonDeg, lonMin, geo.LongitudeDirection)

	return []reading.Reading{
		reading.New(reading.TypeLatitude, reading.Float(lat), reading.UnitDegrees, ts),
		reading.New(reading.TypeLongitude, reading.Float(lon), reading.UnitDegrees, ts),
	}, nil
}

// parseScalar coerces a raw JSON value into the kind declared for the
// reading type. Producers are loose about quoting, so numeric and boolean
// strings are accepted alongside native JSON scalars.
func parseScalar(raw json.RawMessage, kind reading.ValueKind) (reading.Value, error) {
	if len(raw) == 0 {
		return reading.Value{}, errors.ErrMalformedPayload
	}

	switch kind {
	case reading.KindFloat:
		f, err := toFloat(raw)
		if err != nil {
			return reading.Value{}, err
		}
		return reading.Float(f), nil

	case reading.KindInt:
		var i int64
		if err := json.Unmarshal(raw, &i); err == nil {
			return reading.Int(i), nil
		}
		s, err := toString(raw)
		if err != nil {
			return reading.Value{}, errors.ErrValueTypeMismatch
		}
		i, err = strconv.ParseInt(s, 10, 64)
		if err != nil {
			return reading.Value{}, errors.ErrValueTypeMismatch
		}
		return reading.Int(i), nil

	case reading.KindBool:
		var b bool
		if err := json.Unmarshal(raw, &b); err == nil {
			return reading.Bool(b), nil
		}
		s, err := toString(raw)
		if err != nil {
			return reading.Value{}, errors.ErrValueTypeMismatch
		}
		b, err = strconv.ParseBool(s)
		if err != nil {
			return reading.Value{}, errors.ErrValueTypeMismatch
		}
		return reading.Bool(b), nil

	default:
		return reading.Value{}, errors.ErrValueTypeMismatch
	}
}

func toFloat(raw json.RawMessage) (float64, error) {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, nil
	}
	s, err := toString(raw)
	if err != nil {
		return 0, errors.ErrValueTypeMismatch
	}
	f, err = strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.ErrValueTypeMismatch
	}
	return f, nil
}

func toString(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", err
	}
	return s, nil
}
