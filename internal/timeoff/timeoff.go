package timeoff

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrParse is returned when a date or duration slot cannot be parsed.
	ErrParse = errors.New("timeoff: parse error")
	// ErrMissingDuration is returned when a duration-based span is requested without a duration.
	ErrMissingDuration = errors.New("timeoff: missing duration")
)

// MaxDurationDays bounds the calendar-day offset accepted for a request.
const MaxDurationDays = 366

const secondsPerDay = 24 * 60 * 60

// ReadableLayout renders dates as "Thursday 21 December".
const ReadableLayout = "Monday 2 January"

// Span is a computed leave period. End is the return date and is not itself a day off.
type Span struct {
	Start    time.Time
	End      time.Time
	Duration int // business days in [Start, End)
}

func (s Span) StartISO() string      { return s.Start.Format(time.DateOnly) }
func (s Span) EndISO() string        { return s.End.Format(time.DateOnly) }
func (s Span) StartReadable() string { return Readable(s.Start) }
func (s Span) EndReadable() string   { return Readable(s.End) }

// BusinessDaySpan counts Monday-Friday days from start (inclusive) to end (exclusive).
// Callers order the arguments; a reversed span counts zero days.
func BusinessDaySpan(start, end time.Time) int {
	start = truncateDay(start)
	end = truncateDay(end)

	total := int((end.Unix() - start.Unix()) / secondsPerDay)
	if total <= 0 {
		return 0
	}
	days := total / 7 * 5
	first := int(start.Weekday())
	for i := 0; i < total%7; i++ {
		switch time.Weekday((first + i) % 7) {
		case time.Saturday, time.Sunday:
		default:
			days++
		}
	}
	return days
}

// SpanFromTwoDates builds a span from two ISO dates given in either order.
func SpanFromTwoDates(d1, d2 string) (Span, error) {
	start, err := ParseDate(d1)
	if err != nil {
		return Span{}, err
	}
	end, err := ParseDate(d2)
	if err != nil {
		return Span{}, err
	}
	if end.Before(start) {
		start, end = end, start
	}
	return Span{Start: start, End: end, Duration: BusinessDaySpan(start, end)}, nil
}

// SpanFromDateAndDuration treats duration as a calendar-day offset to find the return
// date. Offsets outside 0..MaxDurationDays are rejected with ErrParse. The resulting Span.Duration is the business-day count over that period, which
// is usually smaller than the input.
func SpanFromDateAndDuration(d, duration string) (Span, error) {
	if strings.TrimSpace(duration) == "" {
		return Span{}, ErrMissingDuration
	}
	start, err := ParseDate(d)
	if err != nil {
		return Span{}, err
	}
	days, err := ParseDuration(duration)
	if err != nil {
		return Span{}, err
	}
	if days < 0 || days > MaxDurationDays {
		return Span{}, fmt.Errorf("%w: duration %d out of range", ErrParse, days)
	}
	end := start.AddDate(0, 0, days)
	return Span{Start: start, End: end, Duration: BusinessDaySpan(start, end)}, nil
}

// ParseDate accepts YYYY-MM-DD or an RFC 3339 timestamp and keeps the calendar date.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid date %q", ErrParse, s)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

// ParseDuration reads a day count such as "5" or "5.0".
func ParseDuration(s string) (int, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int(f)) {
		return 0, fmt.Errorf("%w: invalid duration %q", ErrParse, s)
	}
	return int(f), nil
}

// Readable formats t as "Thursday 21 December".
func Readable(t time.Time) string {
	return t.Format(ReadableLayout)
}

// ReadableISO formats an ISO date string, returning the input unchanged when it does not parse.
func ReadableISO(s string) string {
	t, err := ParseDate(s)
	if err != nil {
		return s
	}
	return Readable(t)
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
