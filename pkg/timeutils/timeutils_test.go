package timeutils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGraphTime(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{
			name:  "rfc3339 with zulu",
			input: "2024-05-01T10:00:00Z",
			want:  time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		},
		{
			name:  "offset without colon",
			input: "2024-05-01T10:00:00+0000",
			want:  time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		},
		{
			name:  "positive offset without colon",
			input: "2024-05-01T17:00:00+0700",
			want:  time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		},
		{
			name:  "offset with colon",
			input: "2024-05-01T10:00:00+00:00",
			want:  time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		},
		{
			name:  "naive timestamp treated as utc",
			input: "2024-05-01T10:00:00",
			want:  time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseGraphTime(tc.input)
			require.NoError(t, err)
			assert.True(t, got.Equal(tc.want), "got %s want %s", got, tc.want)
			assert.Equal(t, time.UTC, got.Location())
		})
	}
}

func TestParseGraphTimeRejectsGarbage(t *testing.T) {
	_, err := ParseGraphTime("")
	assert.Error(t, err)

	_, err = ParseGraphTime("yesterday")
	assert.Error(t, err)
}

func TestToDuration(t *testing.T) {
	tests := []struct {
		magnitude int
		unit      Unit
		want      time.Duration
	}{
		{30, UnitMinutes, 30 * time.Minute},
		{2, UnitHours, 2 * time.Hour},
		{1, UnitDays, 24 * time.Hour},
		{2, UnitWeeks, 14 * 24 * time.Hour},
		{1, UnitMonths, 30 * 24 * time.Hour},
	}

	for _, tc := range tests {
		got, err := ToDuration(tc.magnitude, tc.unit)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}
}

func TestToDurationRejectsInvalid(t *testing.T) {
	_, err := ToDuration(0, UnitHours)
	assert.Error(t, err)

	_, err = ToDuration(-1, UnitDays)
	assert.Error(t, err)

	_, err = ToDuration(1, Unit("fortnights"))
	assert.Error(t, err)
}
