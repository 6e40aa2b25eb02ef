package dates

import (
	"errors"
	"sort"
	"time"
)

const ISO = "2006-01-02"

var ErrInvalidDate = errors.New("invalid date format")

// Normalize collapses the two date spellings the booking form has
// historically produced (ISO and MM/DD/YYYY) into canonical YYYY-MM-DD.
// Everything downstream deals with the canonical form only.
func Normalize(dateStr string) (string, error) {
	if t, err := time.Parse(ISO, dateStr); err == nil {
		return t.Format(ISO), nil
	}
	if t, err := time.Parse("01/02/2006", dateStr); err == nil {
		return t.Format(ISO), nil
	}
	return "", ErrInvalidDate
}

func NormalizeAll(dateStrs []string) ([]string, error) {
	out := make([]string, 0, len(dateStrs))
	for _, d := range dateStrs {
		normalized, err := Normalize(d)
		if err != nil {
			return nil, err
		}
		out = append(out, normalized)
	}
	return out, nil
}

func Parse(dateStr string, loc *time.Location) (time.Time, error) {
	date, err := time.ParseInLocation(ISO, dateStr, loc)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return date, nil
}

// IsPast reports whether the date falls strictly before today in loc.
// Time of day is ignored, so a booking starting today is not past.
func IsPast(dateStr string, loc *time.Location, now time.Time) (bool, error) {
	date, err := Parse(dateStr, loc)
	if err != nil {
		return false, err
	}
	local := now.In(loc)
	startToday := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return date.Before(startToday), nil
}

// SpanDays is the inclusive day count from the earliest to the latest date.
// Arithmetic happens in UTC so DST shifts cannot skew the count.
func SpanDays(dateStrs []string, loc *time.Location) (int, error) {
	if len(dateStrs) == 0 {
		return 0, ErrInvalidDate
	}
	sorted := append([]string(nil), dateStrs...)
	sort.Strings(sorted)

	first, err := time.Parse(ISO, sorted[0])
	if err != nil {
		return 0, ErrInvalidDate
	}
	last, err := time.Parse(ISO, sorted[len(sorted)-1])
	if err != nil {
		return 0, ErrInvalidDate
	}
	return int(last.Sub(first).Hours()/24) + 1, nil
}

// Range is a run of consecutive days; End is exclusive, which is what
// calendar clients expect for all-day events.
type Range struct {
	Start time.Time
	End   time.Time
}

// Ranges collapses a set of dates into consecutive runs, sorted ascending.
// Duplicate dates fold into the run that contains them.
func Ranges(dateStrs []string, loc *time.Location) ([]Range, error) {
	if len(dateStrs) == 0 {
		return nil, nil
	}
	sorted := append([]string(nil), dateStrs...)
	sort.Strings(sorted)

	days := make([]time.Time, 0, len(sorted))
	for _, d := range sorted {
		parsed, err := Parse(d, loc)
		if err != nil {
			return nil, err
		}
		days = append(days, parsed)
	}

	var out []Range
	start := days[0]
	prev := days[0]
	for _, day := range days[1:] {
		if !day.Equal(prev) && !day.Equal(prev.AddDate(0, 0, 1)) {
			out = append(out, Range{Start: start, End: prev.AddDate(0, 0, 1)})
			start = day
		}
		prev = day
	}
	out = append(out, Range{Start: start, End: prev.AddDate(0, 0, 1)})
	return out, nil
}
