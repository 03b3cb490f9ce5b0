package recurrence

import (
	"encoding/json"
	"fmt"
	"math"
	"net/mail"
	"strings"
	"time"

	"github.com/open-feature/featuremanager/core/pkg/model"
)

type PatternType string

const (
	Daily  PatternType = "Daily"
	Weekly PatternType = "Weekly"
)

type RangeType string

const (
	NoEnd    RangeType = "NoEnd"
	EndDate  RangeType = "EndDate"
	Numbered RangeType = "Numbered"
)

// Pattern describes how often a time window repeats.
type Pattern struct {
	Type           PatternType
	Interval       int
	DaysOfWeek     []time.Weekday
	FirstDayOfWeek time.Weekday
}

// Range bounds how long a recurrence keeps repeating.
type Range struct {
	Type                RangeType
	EndDate             time.Time
	NumberOfOccurrences int
}

type Recurrence struct {
	Pattern Pattern
	Range   Range
}

// Settings is a time window plus the recurrence repeating it. Start and End bound the first
// occurrence.
type Settings struct {
	Start      time.Time
	End        time.Time
	Recurrence *Recurrence
}

type rawRecurrence struct {
	Pattern *struct {
		Type           string   `json:"Type"`
		Interval       *int     `json:"Interval"`
		DaysOfWeek     []string `json:"DaysOfWeek"`
		FirstDayOfWeek string   `json:"FirstDayOfWeek"`
	} `json:"Pattern"`
	Range *struct {
		Type                string `json:"Type"`
		EndDate             string `json:"EndDate"`
		NumberOfOccurrences *int   `json:"NumberOfOccurrences"`
	} `json:"Range"`
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ParseRecurrence decodes the Recurrence parameter of a time window filter.
func ParseRecurrence(raw json.RawMessage) (*Recurrence, error) {
	var rr rawRecurrence
	if err := json.Unmarshal(raw, &rr); err != nil {
		return nil, fmt.Errorf("%w: unable to decode Recurrence: %v", model.ErrInvalidRecurrence, err)
	}
	if rr.Pattern == nil {
		return nil, fmt.Errorf("%w: Recurrence.Pattern is required", model.ErrInvalidRecurrence)
	}

	r := &Recurrence{
		Pattern: Pattern{Interval: 1, FirstDayOfWeek: time.Sunday},
		Range:   Range{Type: NoEnd, NumberOfOccurrences: math.MaxInt},
	}

	switch {
	case strings.EqualFold(rr.Pattern.Type, string(Daily)):
		r.Pattern.Type = Daily
	case strings.EqualFold(rr.Pattern.Type, string(Weekly)):
		r.Pattern.Type = Weekly
	default:
		return nil, fmt.Errorf("%w: invalid Recurrence.Pattern.Type %q", model.ErrInvalidRecurrence, rr.Pattern.Type)
	}

	if rr.Pattern.Interval != nil {
		if *rr.Pattern.Interval <= 0 {
			return nil, fmt.Errorf("%w: Recurrence.Pattern.Interval must be greater than 0", model.ErrInvalidRecurrence)
		}
		r.Pattern.Interval = *rr.Pattern.Interval
	}

	seen := map[time.Weekday]bool{}
	for _, name := range rr.Pattern.DaysOfWeek {
		d, err := parseWeekday(name)
		if err != nil {
			return nil, err
		}
		if !seen[d] {
			seen[d] = true
			r.Pattern.DaysOfWeek = append(r.Pattern.DaysOfWeek, d)
		}
	}

	if rr.Pattern.FirstDayOfWeek != "" {
		d, err := parseWeekday(rr.Pattern.FirstDayOfWeek)
		if err != nil {
			return nil, err
		}
		r.Pattern.FirstDayOfWeek = d
	}

	if rr.Range == nil {
		return r, nil
	}

	switch {
	case rr.Range.Type == "", strings.EqualFold(rr.Range.Type, string(NoEnd)):
		r.Range.Type = NoEnd
	case strings.EqualFold(rr.Range.Type, string(EndDate)):
		r.Range.Type = EndDate
	case strings.EqualFold(rr.Range.Type, string(Numbered)):
		r.Range.Type = Numbered
	default:
		return nil, fmt.Errorf("%w: invalid Recurrence.Range.Type %q", model.ErrInvalidRecurrence, rr.Range.Type)
	}

	if rr.Range.EndDate != "" {
		end, err := ParseTime(rr.Range.EndDate)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid Recurrence.Range.EndDate: %v", model.ErrInvalidRecurrence, err)
		}
		r.Range.EndDate = end
	} else if r.Range.Type == EndDate {
		return nil, fmt.Errorf("%w: Recurrence.Range.EndDate is required", model.ErrInvalidRecurrence)
	}

	if rr.Range.NumberOfOccurrences != nil {
		if *rr.Range.NumberOfOccurrences <= 0 {
			return nil, fmt.Errorf("%w: Recurrence.Range.NumberOfOccurrences must be greater than 0",
				model.ErrInvalidRecurrence)
		}
		r.Range.NumberOfOccurrences = *rr.Range.NumberOfOccurrences
	}

	return r, nil
}

func parseWeekday(name string) (time.Weekday, error) {
	d, ok := weekdays[strings.ToLower(name)]
	if !ok {
		return 0, fmt.Errorf("%w: invalid day of week %q", model.ErrInvalidRecurrence, name)
	}
	return d, nil
}

// ParseTime reads an RFC 2822 date, falling back to RFC 3339.
func ParseTime(s string) (time.Time, error) {
	t, err := mail.ParseDate(s)
	if err == nil {
		return t, nil
	}
	if t, rfcErr := time.Parse(time.RFC3339, s); rfcErr == nil {
		return t, nil
	}
	return time.Time{}, err
}
