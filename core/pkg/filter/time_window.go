package filter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/open-feature/featuremanager/core/pkg/logger"
	"github.com/open-feature/featuremanager/core/pkg/model"
	"github.com/open-feature/featuremanager/core/pkg/recurrence"
)

const TimeWindowName = "Microsoft.TimeWindow"

type timeWindowParameters struct {
	Start      string          `json:"Start"`
	End        string          `json:"End"`
	Recurrence json.RawMessage `json:"Recurrence"`
}

// TimeWindow enables a flag between Start and End, optionally repeating on a recurrence.
type TimeWindow struct {
	logger *logger.Logger
	now    func() time.Time
}

type TimeWindowOption func(*TimeWindow)

// WithClock replaces the time source.
func WithClock(now func() time.Time) TimeWindowOption {
	return func(tw *TimeWindow) {
		tw.now = now
	}
}

func NewTimeWindow(log *logger.Logger, opts ...TimeWindowOption) *TimeWindow {
	if log == nil {
		log = logger.NewNop()
	}
	tw := &TimeWindow{logger: log, now: time.Now}
	for _, opt := range opts {
		opt(tw)
	}
	return tw
}

func (tw *TimeWindow) Name() string {
	return TimeWindowName
}

func (tw *TimeWindow) Evaluate(_ context.Context, ref model.FilterReference, fc Context) (bool, error) {
	var params timeWindowParameters
	if len(ref.Parameters) > 0 {
		if err := json.Unmarshal(ref.Parameters, &params); err != nil {
			return false, fmt.Errorf("%w: feature flag %s: time window parameters: %v",
				model.ErrInvalidRecurrence, fc.FlagID, err)
		}
	}

	if params.Start == "" && params.End == "" {
		tw.logger.Warn("time window filter requires at least one of Start or End", zap.String("flag", fc.FlagID))
		return false, nil
	}

	start, err := parseBound("Start", params.Start)
	if err != nil {
		return false, fmt.Errorf("feature flag %s: %w", fc.FlagID, err)
	}
	end, err := parseBound("End", params.End)
	if err != nil {
		return false, fmt.Errorf("feature flag %s: %w", fc.FlagID, err)
	}

	now := tw.now()
	if (start.IsZero() || !now.Before(start)) && (end.IsZero() || now.Before(end)) {
		return true, nil
	}

	raw := bytes.TrimSpace(params.Recurrence)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return false, nil
	}
	r, err := recurrence.ParseRecurrence(raw)
	if err != nil {
		return false, fmt.Errorf("feature flag %s: %w", fc.FlagID, err)
	}
	if start.IsZero() || end.IsZero() {
		return false, fmt.Errorf("%w: feature flag %s: Recurrence requires both Start and End",
			model.ErrInvalidRecurrence, fc.FlagID)
	}
	return recurrence.IsMatch(recurrence.Settings{Start: start, End: end, Recurrence: r}, now)
}

func parseBound(name, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := recurrence.ParseTime(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid %s %q: %v", model.ErrInvalidRecurrence, name, value, err)
	}
	return t, nil
}
