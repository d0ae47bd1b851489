package series

import (
	"fmt"
	"iter"
	"slices"
	"time"
)

// DefaultGoalStep advances a goal projection by one calendar month once
// snapped to the first of the month.
const DefaultGoalStep = 31 * day

// Group is an ordered collection of series plus the time its source data
// was last updated.
type Group struct {
	updated time.Time
	series  []TimeSeries
}

// NewGroup creates a group from members
func NewGroup(updated time.Time, members ...TimeSeries) Group {
	return Group{updated: updated, series: slices.Clone(members)}
}

// Updated returns the source update timestamp
func (g Group) Updated() time.Time { return g.updated }

// Len returns the number of member series
func (g Group) Len() int { return len(g.series) }

// Series returns the members in order
func (g Group) Series() []TimeSeries { return slices.Clone(g.series) }

// All iterates the members in order
func (g Group) All() iter.Seq2[int, TimeSeries] {
	return slices.All(g.series)
}

// Append returns a group with s added as the last member
func (g Group) Append(s TimeSeries) Group {
	members := make([]TimeSeries, 0, len(g.series)+1)
	members = append(members, g.series...)
	return Group{updated: g.updated, series: append(members, s)}
}

// Find returns the first member whose tags contain tag
func (g Group) Find(tag string) (TimeSeries, bool) {
	for _, s := range g.series {
		if s.Tags().Contains(tag) {
			return s, true
		}
	}
	return TimeSeries{}, false
}

// MapSeries applies fn to every member
func (g Group) MapSeries(fn func(TimeSeries) TimeSeries) Group {
	members := make([]TimeSeries, len(g.series))
	for i, s := range g.series {
		members[i] = fn(s)
	}
	return Group{updated: g.updated, series: members}
}

// DomainDates returns the union of all member dates in ascending order
func (g Group) DomainDates() []time.Time {
	var dates []time.Time
	for _, s := range g.series {
		dates = append(dates, s.Dates()...)
	}
	slices.SortFunc(dates, func(a, b time.Time) int { return a.Compare(b) })
	return slices.CompactFunc(dates, time.Time.Equal)
}

// FinalDate returns the latest last-date across members. Empty members are
// ignored; a group without any entry yields ErrEmptySeries.
func (g Group) FinalDate() (time.Time, error) {
	var (
		final time.Time
		found bool
	)
	for _, s := range g.series {
		last, err := s.Last()
		if err != nil {
			continue
		}
		if !found || last.Date.After(final) {
			final, found = last.Date, true
		}
	}
	if !found {
		return time.Time{}, fmt.Errorf("%w: group has no dated entries", ErrEmptySeries)
	}
	return final, nil
}

// Accumulate accumulates every member up to the group's final date, so all
// members carry a value at that date.
func (g Group) Accumulate() (Group, error) {
	final, err := g.FinalDate()
	if err != nil {
		return Group{}, err
	}
	return g.MapSeries(func(s TimeSeries) TimeSeries {
		return s.AccumulateTo(final)
	}), nil
}

// Sum merges all members into one series tagged {title}
func (g Group) Sum(title string) Group {
	var total TimeSeries
	for _, s := range g.series {
		total = total.Merge(s)
	}
	return Group{updated: g.updated, series: []TimeSeries{total.WithTags(NewTagSet(title))}}
}

// Normalize divides every member by the first member tagged referenceTag
// and drops that reference member.
func (g Group) Normalize(referenceTag string) (Group, error) {
	ref := slices.IndexFunc(g.series, func(s TimeSeries) bool {
		return s.Tags().Contains(referenceTag)
	})
	if ref < 0 {
		return Group{}, fmt.Errorf("%w: no series tagged %q", ErrMissingReference, referenceTag)
	}

	reference := g.series[ref]
	members := make([]TimeSeries, 0, len(g.series)-1)
	for i, s := range g.series {
		if i == ref {
			continue
		}
		members = append(members, s.RatioTo(reference))
	}
	return Group{updated: g.updated, series: members}, nil
}

// FutureGoal appends a series tagged {title} that interpolates linearly from
// the group's total at its final date to targetValue at targetDate. One
// point is emitted per step; each step adds stepHint and snaps back to the
// first of the month, never skipping a calendar month, and stops at the
// first point on or after targetDate.
func (g Group) FutureGoal(title string, targetDate time.Time, targetValue int64, stepHint time.Duration) (Group, error) {
	if stepHint <= 0 {
		return Group{}, fmt.Errorf("%w: %s", ErrInvalidStep, stepHint)
	}
	final, err := g.FinalDate()
	if err != nil {
		return Group{}, err
	}

	var total int64
	for _, s := range g.series {
		v, _ := s.Get(final)
		total += v
	}

	targetDate = Day(targetDate)
	totalDays := DaysBetween(final, targetDate)
	if totalDays <= 0 {
		return Group{}, fmt.Errorf("%w: target %s, final %s",
			ErrDegenerateGoal, targetDate.Format(time.DateOnly), final.Format(time.DateOnly))
	}

	var points []Point
	for current := final; current.Before(targetDate); {
		following := MonthStart(current).AddDate(0, 1, 0)
		next := MonthStart(current.Add(stepHint))
		if !next.After(current) || next.After(following) {
			next = following
		}
		current = next

		progress := (targetValue - total) * DaysBetween(final, current) / totalDays
		points = append(points, Point{Date: current, Value: total + progress})
	}

	return g.Append(New(NewTagSet(title), points...)), nil
}
