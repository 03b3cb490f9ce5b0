package recurrence

import (
	"fmt"
	"slices"
	"time"

	"github.com/open-feature/featuremanager/core/pkg/model"
)

const (
	daysPerWeek = 7
	day         = 24 * time.Hour
	tenYears    = 3650 * day
)

// Validate checks that the settings describe a well-formed recurring time window.
func Validate(s Settings) error {
	if s.Recurrence == nil {
		return fmt.Errorf("%w: Recurrence is required", model.ErrInvalidRecurrence)
	}
	if s.Start.IsZero() || s.End.IsZero() {
		return fmt.Errorf("%w: Recurrence requires both Start and End", model.ErrInvalidRecurrence)
	}
	if !s.End.After(s.Start) {
		return fmt.Errorf("%w: the filter start date Start needs to be before the End date", model.ErrInvalidRecurrence)
	}
	if s.End.Sub(s.Start) > tenYears {
		return fmt.Errorf("%w: time window duration exceeds ten years", model.ErrInvalidRecurrence)
	}
	if err := validatePattern(s.Recurrence.Pattern, s.Start, s.End); err != nil {
		return err
	}
	return validateRange(s.Recurrence.Range, s.Start)
}

func validatePattern(p Pattern, start, end time.Time) error {
	if p.Interval <= 0 {
		return fmt.Errorf("%w: Recurrence.Pattern.Interval must be greater than 0", model.ErrInvalidRecurrence)
	}
	duration := end.Sub(start)

	switch p.Type {
	case Daily:
		if duration > time.Duration(p.Interval)*day {
			return fmt.Errorf("%w: time window duration must not exceed the daily interval", model.ErrInvalidRecurrence)
		}
	case Weekly:
		if len(p.DaysOfWeek) == 0 {
			return fmt.Errorf("%w: Recurrence.Pattern.DaysOfWeek is required", model.ErrInvalidRecurrence)
		}
		if duration > time.Duration(p.Interval*daysPerWeek)*day {
			return fmt.Errorf("%w: time window duration must not exceed the weekly interval", model.ErrInvalidRecurrence)
		}
		if !isDurationCompliantWithDaysOfWeek(duration, p) {
			return fmt.Errorf("%w: time window duration must not exceed the gap between days of week",
				model.ErrInvalidRecurrence)
		}
		if !slices.Contains(p.DaysOfWeek, start.Weekday()) {
			return fmt.Errorf("%w: Start is not a valid first occurrence", model.ErrInvalidRecurrence)
		}
	default:
		return fmt.Errorf("%w: unsupported pattern type %q", model.ErrInvalidRecurrence, p.Type)
	}
	return nil
}

func validateRange(r Range, start time.Time) error {
	switch r.Type {
	case NoEnd:
	case EndDate:
		if r.EndDate.Before(start) {
			return fmt.Errorf("%w: Recurrence.Range.EndDate must not be before Start", model.ErrInvalidRecurrence)
		}
	case Numbered:
		if r.NumberOfOccurrences <= 0 {
			return fmt.Errorf("%w: Recurrence.Range.NumberOfOccurrences must be greater than 0",
				model.ErrInvalidRecurrence)
		}
	default:
		return fmt.Errorf("%w: unsupported range type %q", model.ErrInvalidRecurrence, r.Type)
	}
	return nil
}

// isDurationCompliantWithDaysOfWeek reports whether occurrences on consecutive configured days
// cannot overlap.
func isDurationCompliantWithDaysOfWeek(duration time.Duration, p Pattern) bool {
	if len(p.DaysOfWeek) == 1 {
		return true
	}
	sorted := sortDaysOfWeek(p.DaysOfWeek, p.FirstDayOfWeek)

	minGap := daysPerWeek * day
	for i := 1; i < len(sorted); i++ {
		gap := time.Duration(passedWeekDays(sorted[i], sorted[i-1])) * day
		minGap = min(minGap, gap)
	}
	if p.Interval == 1 {
		// gap from the last configured day to the first one of the following week
		gap := time.Duration(passedWeekDays(sorted[0], sorted[len(sorted)-1])) * day
		minGap = min(minGap, gap)
	}
	return duration <= minGap
}

// passedWeekDays counts the days from firstDayOfWeek up to current.
func passedWeekDays(current, firstDayOfWeek time.Weekday) int {
	return (int(current) - int(firstDayOfWeek) + daysPerWeek) % daysPerWeek
}

func sortDaysOfWeek(days []time.Weekday, firstDayOfWeek time.Weekday) []time.Weekday {
	sorted := slices.Clone(days)
	slices.SortFunc(sorted, func(a, b time.Weekday) int {
		return passedWeekDays(a, firstDayOfWeek) - passedWeekDays(b, firstDayOfWeek)
	})
	return slices.Compact(sorted)
}
