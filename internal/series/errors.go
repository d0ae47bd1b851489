package series

import "errors"

var (
	// ErrDateFormat is returned for a time label that is neither "2006M01"
	// nor "2006".
	ErrDateFormat = errors.New("unrecognized date format")

	// ErrMissingReference is returned by Normalize when no member carries the
	// reference tag.
	ErrMissingReference = errors.New("reference series not found")

	// ErrDegenerateGoal is returned by FutureGoal when the target date is not
	// strictly after the group's final date.
	ErrDegenerateGoal = errors.New("goal target date must be after final date")

	// ErrEmptySeries is returned when an operator needs a first or last date
	// and there are no entries to read it from.
	ErrEmptySeries = errors.New("empty series")

	// ErrInvalidStep is returned by FutureGoal for a non-positive step hint.
	ErrInvalidStep = errors.New("invalid goal step")
)
