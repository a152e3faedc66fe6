package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifiedError_Error(t *testing.T) {
	base := stderrors.New("boom")

	ce := &ClassifiedError{Class: ErrorTransient, Err: base, Message: "custom message"}
	assert.Equal(t, "custom message", ce.Error())

	ce = &ClassifiedError{Class: ErrorTransient, Err: base}
	assert.Equal(t, "boom", ce.Error())
	assert.Equal(t, base, ce.Unwrap())
}

func TestWrap(t *testing.T) {
	base := stderrors.New("kv put failed")
	err := Wrap(base, "HistoricalStore", "UploadReading", "store write")
	require.Error(t, err)
	assert.Equal(t, "HistoricalStore.UploadReading: store write failed: kv put failed", err.Error())
	assert.True(t, stderrors.Is(err, base))

	assert.Nil(t, Wrap(nil, "c", "m", "a"))
	assert.Nil(t, WrapTransient(nil, "c", "m", "a"))
	assert.Nil(t, WrapInvalid(nil, "c", "m", "a"))
	assert.Nil(t, WrapFatal(nil, "c", "m", "a"))
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"connection lost", ErrConnectionLost, true},
		{"checkpoint failed", ErrCheckpointFailed, true},
		{"store unavailable", ErrStoreUnavailable, true},
		{"device unreachable", ErrDeviceUnreachable, true},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"wrapped transient", WrapTransient(stderrors.New("x"), "c", "m", "a"), true},
		{"wrapped invalid", WrapInvalid(stderrors.New("x"), "c", "m", "a"), false},
		{"driver timeout pattern", stderrors.New("i/o timeout reading from broker"), true},
		{"plain error", stderrors.New("x"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestIsInvalid(t *testing.T) {
	assert.True(t, IsInvalid(ErrMalformedTimestamp))
	assert.True(t, IsInvalid(ErrUnknownReadingType))
	assert.True(t, IsInvalid(ErrValueTypeMismatch))
	assert.True(t, IsInvalid(fmt.Errorf("record 3: %w", ErrMalformedPayload)))
	assert.True(t, IsInvalid(WrapInvalid(stderrors.New("bad degrees"), "Parser", "parseGeoLocation", "decode")))
	assert.False(t, IsInvalid(ErrConnectionLost))
	assert.False(t, IsInvalid(nil))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, ErrorFatal, Classify(ErrInvalidConfig))
	assert.Equal(t, ErrorInvalid, Classify(ErrValueTypeMismatch))
	assert.Equal(t, ErrorTransient, Classify(stderrors.New("unknown")))
}

func TestErrorClass_String(t *testing.T) {
	assert.Equal(t, "transient", ErrorTransient.String())
	assert.Equal(t, "invalid", ErrorInvalid.String())
	assert.Equal(t, "fatal", ErrorFatal.String())
	assert.Equal(t, "unknown", ErrorClass(99).String())
}
