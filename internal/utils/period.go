// internal/utils/period.go
package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Period is a half-open time range [Start, End).
type Period struct {
	Label string    `json:"label"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (p Period) Days() int {
	days := int(p.End.Sub(p.Start).Hours() / 24)
	if days < 1 {
		return 1
	}
	return days
}

// ParsePeriod accepts "7d", "30d", "12w", "3m", "1y", "current_month",
// "last_month" or a calendar month "2026-09". Relative periods run through the
// end of the current UTC day so records stamped at now are included.
func ParsePeriod(value string, now time.Time) (Period, error) {
	now = now.UTC()
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		value = "30d"
	}

	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)

	switch value {
	case "current_month":
		return Period{Label: value, Start: monthStart, End: end}, nil
	case "last_month":
		return Period{Label: value, Start: monthStart.AddDate(0, -1, 0), End: monthStart}, nil
	}

	if month, err := time.Parse("2006-01", value); err == nil {
		return Period{Label: value, Start: month, End: month.AddDate(0, 1, 0)}, nil
	}

	if len(value) < 2 {
		return Period{}, fmt.Errorf("invalid period %q", value)
	}
	n, err := strconv.Atoi(value[:len(value)-1])
	if err != nil || n <= 0 {
		return Period{}, fmt.Errorf("invalid period %q", value)
	}

	var start time.Time
	switch value[len(value)-1] {
	case 'd':
		start = now.AddDate(0, 0, -n)
	case 'w':
		start = now.AddDate(0, 0, -7*n)
	case 'm':
		start = now.AddDate(0, -n, 0)
	case 'y':
		start = now.AddDate(-n, 0, 0)
	default:
		return Period{}, fmt.Errorf("invalid period unit in %q", value)
	}

	return Period{Label: value, Start: start, End: end}, nil
}
