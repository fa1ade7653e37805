// internal/utils/period_test.go
package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePeriod(t *testing.T) {
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	end := time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		value string
		start time.Time
		end   time.Time
	}{
		{"", now.AddDate(0, 0, -30), end},
		{"7d", now.AddDate(0, 0, -7), end},
		{"2w", now.AddDate(0, 0, -14), end},
		{"3M", now.AddDate(0, -3, 0), end},
		{"1y", now.AddDate(-1, 0, 0), end},
		{"current_month", time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC), end},
		{"last_month", time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)},
		{"2026-02", time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			p, err := ParsePeriod(tt.value, now)
			require.NoError(t, err)
			assert.True(t, tt.start.Equal(p.Start), "start %s", p.Start)
			assert.True(t, tt.end.Equal(p.End), "end %s", p.End)
		})
	}
}

func TestParsePeriod_Invalid(t *testing.T) {
	for _, value := range []string{"d", "0d", "-5d", "10x", "forever"} {
		_, err := ParsePeriod(value, time.Now())
		assert.Error(t, err, value)
	}
}

func TestPeriodDays(t *testing.T) {
	start := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 30, Period{Start: start, End: start.AddDate(0, 0, 30)}.Days())
	assert.Equal(t, 1, Period{Start: start, End: start.Add(time.Hour)}.Days())
}

func TestParsePeriod_IncludesNow(t *testing.T) {
	for _, now := range []time.Time{
		time.Date(2026, 10, 17, 23, 59, 59, 0, time.UTC),
		time.Date(2026, 10, 31, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 12, 31, 18, 30, 0, 0, time.FixedZone("UTC+8", 8*3600)),
	} {
		for _, value := range []string{"30d", "1w", "current_month"} {
			p, err := ParsePeriod(value, now)
			require.NoError(t, err)
			assert.False(t, now.Before(p.Start), "%s at %s", value, now)
			assert.True(t, now.Before(p.End), "%s at %s", value, now)
		}
	}
}
