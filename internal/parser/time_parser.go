package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/balkashynov/punch/internal/clock"
)

var (
	dmyRegex       = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`)
	relDayRegex    = regexp.MustCompile(`^([+-])(\d+)d$`)
	daysAgoRegex   = regexp.MustCompile(`^(\d+)\s+(day|days|week|weeks)\s+ago$`)
	relTimeRegex   = regexp.MustCompile(`^([+-])(\d+)(m|h)$`)
	timeAgoRegex   = regexp.MustCompile(`^(\d+)\s*(m|min|mins|minute|minutes|h|hour|hours)\s+ago$`)
	clockRegex     = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)
	instantLayouts = []string{
		"2006-01-02 15:04",
		"2006-01-02T15:04",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"02/01/2006 15:04",
	}
)

// ParseDate parses a civil date relative to today.
// Supported formats:
// - today, yesterday, tomorrow
// - yyyy-mm-dd (e.g., "2024-12-15")
// - dd/mm/yyyy (e.g., "15/12/2024")
// - +Nd / -Nd (e.g., "-3d")
// - X days ago, X weeks ago
func ParseDate(input string, today clock.Date) (clock.Date, error) {
	input = strings.ToLower(strings.TrimSpace(input))

	switch input {
	case "", "today":
		return today, nil
	case "yesterday":
		return today.AddDays(-1), nil
	case "tomorrow":
		return today.AddDays(1), nil
	}

	if d, err := clock.ParseDate(input); err == nil {
		return d, nil
	}

	if m := dmyRegex.FindStringSubmatch(input); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		d := clock.NewDate(year, time.Month(month), day)
		// NewDate normalizes, so 31/02 comes back as a March date
		if d.Day != day || int(d.Month) != month {
			return clock.Date{}, fmt.Errorf("invalid date %q", input)
		}
		return d, nil
	}

	if m := relDayRegex.FindStringSubmatch(input); m != nil {
		n, _ := strconv.Atoi(m[2])
		if m[1] == "-" {
			n = -n
		}
		return today.AddDays(n), nil
	}

	if m := daysAgoRegex.FindStringSubmatch(input); m != nil {
		n, _ := strconv.Atoi(m[1])
		if strings.HasPrefix(m[2], "week") {
			n *= 7
		}
		return today.AddDays(-n), nil
	}

	return clock.Date{}, fmt.Errorf("invalid date %q. Use: yyyy-mm-dd, dd/mm/yyyy, today, yesterday, -Nd or X days ago", input)
}

// ParseInstant parses a point in time. Wall clock forms are read in loc,
// the result is UTC truncated to seconds.
// Supported formats:
// - now
// - hh:mm (today in loc)
// - yyyy-mm-dd hh:mm[:ss], dd/mm/yyyy hh:mm
// - RFC 3339 (e.g., "2024-03-01T09:00:00+01:00")
// - +Nm / -Nh, X minutes ago, X hours ago
func ParseInstant(input string, now time.Time, loc *time.Location) (time.Time, error) {
	input = strings.ToLower(strings.TrimSpace(input))
	if input == "" || input == "now" {
		return clock.ToUTC(now), nil
	}

	if m := clockRegex.FindStringSubmatch(input); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		if hour > 23 || minute > 59 {
			return time.Time{}, fmt.Errorf("invalid time %q", input)
		}
		local := now.In(loc)
		t := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
		return clock.ToUTC(t), nil
	}

	upper := strings.ToUpper(input)
	if t, err := time.Parse(time.RFC3339, upper); err == nil {
		return clock.ToUTC(t), nil
	}
	for _, layout := range instantLayouts {
		if t, err := time.ParseInLocation(layout, upper, loc); err == nil {
			return clock.ToUTC(t), nil
		}
	}

	if m := relTimeRegex.FindStringSubmatch(input); m != nil {
		d := relativeDuration(m[2], m[3])
		if m[1] == "-" {
			d = -d
		}
		return clock.ToUTC(now.Add(d)), nil
	}
	if m := timeAgoRegex.FindStringSubmatch(input); m != nil {
		return clock.ToUTC(now.Add(-relativeDuration(m[1], m[2]))), nil
	}

	return time.Time{}, fmt.Errorf("invalid time %q. Use: hh:mm, yyyy-mm-dd hh:mm, RFC 3339, -15m or 2 hours ago", input)
}

func relativeDuration(amount, unit string) time.Duration {
	n, _ := strconv.Atoi(amount)
	if strings.HasPrefix(unit, "h") {
		return time.Duration(n) * time.Hour
	}
	return time.Duration(n) * time.Minute
}

// FormatSeconds renders a second count as "7h05m", "42m" or "-1h30m".
func FormatSeconds(seconds int) string {
	sign := ""
	if seconds < 0 {
		sign = "-"
		seconds = -seconds
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	switch {
	case h > 0:
		return fmt.Sprintf("%s%dh%02dm", sign, h, m)
	case m > 0:
		return fmt.Sprintf("%s%dm", sign, m)
	default:
		return fmt.Sprintf("%s%ds", sign, seconds)
	}
}
