package scrape

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Calendar approximations used by MaxAge.
const (
	Day   = 24 * time.Hour
	Week  = 7 * Day
	Month = 30 * Day
	Year  = 365 * Day
)

var ageUnits = map[string]time.Duration{
	"ms":          time.Millisecond,
	"millisecond": time.Millisecond,
	"s":           time.Second,
	"second":      time.Second,
	"m":           time.Minute,
	"minute":      time.Minute,
	"h":           time.Hour,
	"hour":        time.Hour,
	"d":           Day,
	"day":         Day,
	"w":           Week,
	"week":        Week,
	"month":       Month,
	"y":           Year,
	"year":        Year,
}

// MaxAge converts an amount of a named unit (millisecond … year, singular or
// plural) into a duration, e.g. MaxAge(3, "days").
func MaxAge(n int, unit string) (time.Duration, error) {
	if n < 0 {
		return 0, fmt.Errorf("max age must be >= 0, got %d", n)
	}
	d, ok := lookupUnit(unit)
	if !ok {
		return 0, fmt.Errorf("unknown max age unit %q", unit)
	}
	if int64(n) > math.MaxInt64/int64(d) {
		return 0, fmt.Errorf("max age %d %s exceeds the maximum duration", n, unit)
	}
	return time.Duration(n) * d, nil
}

// ParseMaxAge accepts "3 days", "1 year", "12h" or any time.ParseDuration input.
func ParseMaxAge(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		if d < 0 {
			return 0, fmt.Errorf("max age must be >= 0, got %s", s)
		}
		return d, nil
	}

	fields := strings.Fields(s)
	if len(fields) == 1 {
		num := strings.TrimRightFunc(fields[0], func(r rune) bool { return r < '0' || r > '9' })
		fields = []string{num, fields[0][len(num):]}
	}
	if len(fields) != 2 {
		return 0, fmt.Errorf("invalid max age %q", s)
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, fmt.Errorf("invalid max age %q: %w", s, err)
	}
	return MaxAge(n, fields[1])
}

func lookupUnit(unit string) (time.Duration, bool) {
	unit = strings.ToLower(strings.TrimSpace(unit))
	if d, ok := ageUnits[unit]; ok {
		return d, true
	}
	if len(unit) > 2 && strings.HasSuffix(unit, "s") {
		d, ok := ageUnits[strings.TrimSuffix(unit, "s")]
		return d, ok
	}
	return 0, false
}
