package common

import (
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

const (
	DateLayout     = "2006-01-02"
	ClockLayout    = "15:04"
	DatetimeLayout = "2006-01-02 15:04:05"
)

// Today returns the local date as YYYY-MM-DD
func Today() string {
	return time.Now().Format(DateLayout)
}

// ParseDate accepts any common date representation and returns the local
// calendar day it names.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	if t, err := time.ParseInLocation(DateLayout, s, time.Local); err == nil {
		return t, nil
	}
	t, err := dateparse.ParseIn(s, time.Local)
	if err != nil {
		return time.Time{}, err
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local), nil
}

// NormalizeDate parses s and formats it back as YYYY-MM-DD
func NormalizeDate(s string) (string, error) {
	t, err := ParseDate(s)
	if err != nil {
		return "", err
	}
	return t.Format(DateLayout), nil
}

// AddDays shifts a YYYY-MM-DD date by n days
func AddDays(date string, n int) (string, error) {
	t, err := ParseDate(date)
	if err != nil {
		return "", err
	}
	return t.AddDate(0, 0, n).Format(DateLayout), nil
}

// ParseClock converts HH:MM into minutes after midnight
func ParseClock(s string) (int, error) {
	t, err := time.Parse(ClockLayout, strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid time %q, want HH:MM", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// FormatClock converts minutes after midnight into HH:MM
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// DayRange returns [start, end) of the local day containing t
func DayRange(t time.Time) (time.Time, time.Time) {
	y, m, d := t.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, time.Local)
	return start, start.AddDate(0, 0, 1)
}
