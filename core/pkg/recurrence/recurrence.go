// Package recurrence decides whether an instant falls inside a repeating time window.
package recurrence

import (
	"slices"
	"time"
)

type occurrence struct {
	start time.Time
	// count is the 1-based number of the occurrence, counted from Settings.Start.
	count int
}

// IsMatch validates s and reports whether now is inside one of its occurrences.
func IsMatch(s Settings, now time.Time) (bool, error) {
	if err := Validate(s); err != nil {
		return false, err
	}
	prev, ok := previousOccurrence(s, now)
	if !ok {
		return false, nil
	}
	return now.Before(prev.start.Add(s.End.Sub(s.Start))), nil
}

// previousOccurrence finds the latest occurrence starting at or before now, if it is within
// the recurrence range.
func previousOccurrence(s Settings, now time.Time) (occurrence, bool) {
	if now.Before(s.Start) {
		return occurrence{}, false
	}

	var prev occurrence
	if s.Recurrence.Pattern.Type == Daily {
		prev = dailyPreviousOccurrence(s.Recurrence.Pattern, s.Start, now)
	} else {
		prev = weeklyPreviousOccurrence(s.Recurrence.Pattern, s.Start, now)
	}

	r := s.Recurrence.Range
	switch r.Type {
	case EndDate:
		if prev.start.After(r.EndDate) {
			return occurrence{}, false
		}
	case Numbered:
		if prev.count > r.NumberOfOccurrences {
			return occurrence{}, false
		}
	}
	return prev, true
}

func dailyPreviousOccurrence(p Pattern, start, now time.Time) occurrence {
	elapsedDays := int(now.Sub(start) / day)
	n := elapsedDays / p.Interval
	return occurrence{
		start: start.Add(time.Duration(n*p.Interval) * day),
		count: n + 1,
	}
}

func weeklyPreviousOccurrence(p Pattern, start, now time.Time) occurrence {
	intervalSpan := time.Duration(p.Interval*daysPerWeek) * day

	firstDayOfFirstWeek := start.Add(-time.Duration(passedWeekDays(start.Weekday(), p.FirstDayOfWeek)) * day)
	numberOfIntervals := int(now.Sub(firstDayOfFirstWeek) / intervalSpan)
	firstDayOfMostRecentWeek := firstDayOfFirstWeek.Add(time.Duration(numberOfIntervals) * intervalSpan)

	sorted := sortDaysOfWeek(p.DaysOfWeek, p.FirstDayOfWeek)
	offset := func(d time.Weekday) time.Duration {
		return time.Duration(passedWeekDays(d, p.FirstDayOfWeek)) * day
	}
	maxOffset := offset(sorted[len(sorted)-1])
	minOffset := offset(sorted[0])

	// days of the first week that precede Start are not occurrences
	count := numberOfIntervals*len(sorted) - slices.Index(sorted, start.Weekday())

	// now is in the skipped weeks after the most recent occurring week
	if now.Sub(firstDayOfMostRecentWeek) > daysPerWeek*day {
		return occurrence{
			start: firstDayOfMostRecentWeek.Add(maxOffset),
			count: count + len(sorted),
		}
	}

	candidate := firstDayOfMostRecentWeek.Add(minOffset)
	if start.After(candidate) {
		count = 0
		candidate = start
	}

	if now.Before(candidate) {
		return occurrence{
			start: firstDayOfMostRecentWeek.Add(-intervalSpan).Add(maxOffset),
			count: count,
		}
	}

	prev := occurrence{start: candidate, count: count + 1}
	for _, d := range sorted[slices.Index(sorted, candidate.Weekday())+1:] {
		candidate = firstDayOfMostRecentWeek.Add(offset(d))
		if now.Before(candidate) {
			break
		}
		prev = occurrence{start: candidate, count: prev.count + 1}
	}
	return prev
}
