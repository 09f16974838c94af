package proactive

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// parseQuietHours parses the "HH-HH" config format into a start/end hour
// pair. "1-7" means the closed-open window [1:00, 7:00); "22-6" wraps
// midnight and means [22:00, 6:00) the next day.
func parseQuietHours(spec string) (start, end int, err error) {
	parts := strings.SplitN(spec, "-", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("proactive: invalid quiet_hours %q", spec)
	}
	start, err = strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("proactive: invalid quiet_hours start %q", spec)
	}
	end, err = strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("proactive: invalid quiet_hours end %q", spec)
	}
	if start < 0 || start > 23 || end < 0 || end > 23 {
		return 0, 0, fmt.Errorf("proactive: quiet_hours hour out of range %q", spec)
	}
	return start, end, nil
}

// isQuietHour reports whether now falls within the [start, end) window,
// wrapping past midnight when start > end.
func isQuietHour(now time.Time, start, end int) bool {
	if start == end {
		return false
	}
	h := now.Hour()
	if start < end {
		return h >= start && h < end
	}
	return h >= start || h < end
}

// nextQuietEnd returns the next wall-clock moment, in loc, at which a
// currently-active quiet window of [start, end) closes.
func nextQuietEnd(now time.Time, start, end int, loc *time.Location) time.Time {
	local := now.In(loc)
	if start < end {
		return time.Date(local.Year(), local.Month(), local.Day(), end, 0, 0, 0, loc)
	}
	if local.Hour() >= start {
		next := local.AddDate(0, 0, 1)
		return time.Date(next.Year(), next.Month(), next.Day(), end, 0, 0, 0, loc)
	}
	return time.Date(local.Year(), local.Month(), local.Day(), end, 0, 0, 0, loc)
}
