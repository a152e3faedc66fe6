// Package timestamp handles the device wire timestamp format.
//
// Device telemetry reports event time as a space-separated date and time,
// "2023-04-26 10:00:05.123", with optionally fractional seconds. Fractional
// seconds are truncated: the producer clock only has whole-second resolution
// and the fraction carries no ordering information at the reporting interval.
// All parsed timestamps are UTC.
package timestamp

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jeffbrin/SHFT/errors"
)

// Epoch is the watermark used before any reading has been persisted.
var Epoch = time.Unix(0, 0).UTC()

// Parse converts a wire timestamp string to a time.Time.
func Parse(value string) (time.Time, error) {
	fields := strings.Fields(value)
	if len(fields) != 2 {
		return time.Time{}, errors.WrapInvalid(
			fmt.Errorf("%w: %q", errors.ErrMalformedTimestamp, value),
			"timestamp", "Parse", "field split")
	}

	date := strings.Split(fields[0], "-")
	clock := strings.Split(fields[1], ":")
	if len(date) != 3 || len(clock) != 3 {
		return time.Time{}, errors.WrapInvalid(
			fmt.Errorf("%w: %q", errors.ErrMalformedTimestamp, value),
			"timestamp", "Parse", "component split")
	}

	year, err := strconv.Atoi(date[0])
	if err != nil {
		return time.Time{}, malformed(value, err)
	}
	month, err := strconv.Atoi(date[1])
	if err != nil {
		return time.Time{}, malformed(value, err)
	}
	day, err := strconv.Atoi(date[2])
	if err != nil {
		return time.Time{}, malformed(value, err)
	}

	hour, err := strconv.Atoi(clock[0])
	if err != nil {
		return time.Time{}, malformed(value, err)
	}
	minute, err := strconv.Atoi(clock[1])
	if err != nil {
		return time.Time{}, malformed(value, err)
	}
	seconds, err := strconv.ParseFloat(clock[2], 64)
	if err != nil {
		return time.Time{}, malformed(value, err)
	}

	if month < 1 || month > 12 || day < 1 || day > 31 ||
		hour > 23 || minute > 59 || seconds < 0 || seconds >= 60 {
		return time.Time{}, errors.WrapInvalid(
			fmt.Errorf("%w: %q out of range", errors.ErrMalformedTimestamp, value),
			"timestamp", "Parse", "range check")
	}

	t := time.Date(year, time.Month(month), day, hour, minute, int(seconds), 0, time.UTC)

	// time.Date normalizes impossible dates (February 30 becomes March 2).
	// A shifted day means the wire date was invalid, so reject it.
	if t.Day() != day {
		return time.Time{}, errors.WrapInvalid(
			fmt.Errorf("%w: %q day does not exist", errors.ErrMalformedTimestamp, value),
			"timestamp", "Parse", "calendar check")
	}

	return t, nil
}

// Format renders a time.Time in the wire format, without fractional seconds.
func Format(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05")
}

func malformed(value string, err error) error {
	return errors.WrapInvalid(
		fmt.Errorf("%w: %q: %v", errors.ErrMalformedTimestamp, value, err),
		"timestamp", "Parse", "numeric parse")
}
