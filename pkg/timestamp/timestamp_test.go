package timestamp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeffbrin/SHFT/errors"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{
			name:  "whole seconds",
			input: "2023-04-26 10:00:00",
			want:  time.Date(2023, 4, 26, 10, 0, 0, 0, time.UTC),
		},
		{
			name:  "fractional seconds truncated",
			input: "2023-04-26 10:00:05.875",
			want:  time.Date(2023, 4, 26, 10, 0, 5, 0, time.UTC),
		},
		{
			name:  "midnight",
			input: "2024-01-01 00:00:00.0",
			want:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "leap day",
			input: "2024-02-29 10:00:00",
			want:  time.Date(2024, 2, 29, 10, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			require.NoError(t, err)
			assert.True(t, got.Equal(tt.want), "got %v want %v", got, tt.want)
		})
	}
}

func TestParse_Malformed(t *testing.T) {
	inputs := []string{
		"",
		"2023-04-26",
		"2023-04-26 10:00",
		"2023/04/26 10:00:00",
		"not-a-date at all here",
		"2023-04-26 10:00:xx",
		"2023-13-26 10:00:00",
		"2023-04-26 24:00:00",
		"2023-04-26 10:61:00",
		"2023-02-30 10:00:00",
		"2023-04-31 10:00:00",
		"2023-02-29 10:00:00",
	}

	for _, input := range inputs {
		_, err := Parse(input)
		require.Error(t, err, "input %q", input)
		assert.ErrorIs(t, err, errors.ErrMalformedTimestamp, "input %q", input)
		assert.True(t, errors.IsInvalid(err))
	}
}

func TestFormat_RoundTrip(t *testing.T) {
	ts := time.Date(2023, 4, 26, 10, 0, 5, 0, time.UTC)
	got, err := Parse(Format(ts))
	require.NoError(t, err)
	assert.True(t, got.Equal(ts))
}

func TestEpoch(t *testing.T) {
	assert.Equal(t, int64(0), Epoch.Unix())
}
