package series

import (
	"fmt"
	"time"
)

const day = 24 * time.Hour

// Date returns midnight UTC of the given calendar day
func Date(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

// Day truncates t to midnight UTC of its calendar day in t's own location.
func Day(t time.Time) time.Time {
	return Date(t.Year(), t.Month(), t.Day())
}

// MonthStart returns the first day of t's month
func MonthStart(t time.Time) time.Time {
	return Date(t.Year(), t.Month(), 1)
}

// DaysBetween returns the whole number of days from a to b
func DaysBetween(a, b time.Time) int64 {
	return int64(Day(b).Sub(Day(a)) / day)
}

// ParseTime parses a time-dimension label. "2020M03" yields 2020-03-01 and
// "2020" yields 2020-01-01.
func ParseTime(label string) (time.Time, error) {
	layout := "2006"
	if len(label) == 7 && label[4] == 'M' {
		layout = "2006M01"
	}
	t, err := time.Parse(layout, label)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrDateFormat, label)
	}
	return t, nil
}

// Weekday returns a boundary predicate matching one day of the week
func Weekday(wd time.Weekday) func(time.Time) bool {
	return func(t time.Time) bool { return t.Weekday() == wd }
}

// Delta is the combine function of a cumulative-to-increment bucket reduction
func Delta(prev, cur int64) int64 {
	return cur - prev
}
