// Package timeparse reads and renders the short duration notation used by
// moderation commands, e.g. "30m", "2d", "1y". A zero duration means
// permanent.
package timeparse

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	Day   = 24 * time.Hour
	Week  = 7 * Day
	Month = 30 * Day
	Year  = 365 * Day
)

// Permanent is the duration returned for "0" and empty input.
const Permanent time.Duration = 0

var ErrInvalidDuration = errors.New("invalid duration")

var durationPattern = regexp.MustCompile(`^(\d+)([smhdwMy]?)$`)

var units = map[string]time.Duration{
	"":  time.Minute,
	"s": time.Second,
	"m": time.Minute,
	"h": time.Hour,
	"d": Day,
	"w": Week,
	"M": Month,
	"y": Year,
}

// Parse converts input to a duration. A bare number is minutes. Empty input
// and any zero amount yield Permanent.
func Parse(input string) (time.Duration, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return Permanent, nil
	}
	m := durationPattern.FindStringSubmatch(input)
	if m == nil {
		return 0, fmt.Errorf("timeparse: %q: %w", input, ErrInvalidDuration)
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("timeparse: %q: %w", input, ErrInvalidDuration)
	}
	if n == 0 {
		return Permanent, nil
	}
	unit := units[m[2]]
	if n > int64(1<<63-1)/int64(unit) {
		return 0, fmt.Errorf("timeparse: %q: %w", input, ErrInvalidDuration)
	}
	return time.Duration(n) * unit, nil
}

// IsDuration reports whether s looks like a duration argument.
func IsDuration(s string) bool {
	return durationPattern.MatchString(strings.TrimSpace(s))
}

var formatSteps = []struct {
	unit time.Duration
	name string
}{
	{Year, "year"},
	{Month, "month"},
	{Week, "week"},
	{Day, "day"},
	{time.Hour, "hour"},
	{time.Minute, "minute"},
}

// Format renders d as "permanent" or its largest whole unit.
func Format(d time.Duration) string {
	if d <= 0 {
		return "permanent"
	}
	for _, step := range formatSteps {
		if d >= step.unit {
			return plural(int64(d/step.unit), step.name)
		}
	}
	return plural(int64(d/time.Second), "second")
}

func plural(n int64, name string) string {
	if n == 1 {
		return "1 " + name
	}
	return strconv.FormatInt(n, 10) + " " + name + "s"
}
