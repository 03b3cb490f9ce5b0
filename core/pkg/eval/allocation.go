package eval

import (
	"slices"

	"github.com/open-feature/featuremanager/core/pkg/model"
	"github.com/open-feature/featuremanager/core/pkg/targeting"
)

func assignAllocation(event *model.EvaluationEvent, tc model.TargetingContext) {
	flag := event.Flag
	if !flag.HasVariants() {
		return
	}

	if flag.Allocation == nil {
		if event.Enabled {
			event.Reason = model.ReasonDefaultWhenEnabled
		} else {
			event.Reason = model.ReasonDefaultWhenDisabled
		}
		return
	}

	if !event.Enabled {
		assignDefaultDisabledVariant(event)
		return
	}

	name, reason := allocate(flag.Allocation, tc)
	if name == "" {
		assignDefaultEnabledVariant(event)
		return
	}
	event.Reason = reason
	event.Variant = variant(flag, name)
	applyStatusOverride(event, name, true)
}

// assignDefaultDisabledVariant resolves default_when_disabled. A disabled flag is never
// switched back on by the variant's status override.
func assignDefaultDisabledVariant(event *model.EvaluationEvent) {
	event.Enabled = false
	event.Reason = model.ReasonDefaultWhenDisabled
	if event.Flag.Allocation == nil {
		return
	}
	event.Variant = variant(event.Flag, event.Flag.Allocation.DefaultWhenDisabled)
}

func assignDefaultEnabledVariant(event *model.EvaluationEvent) {
	event.Reason = model.ReasonDefaultWhenEnabled
	name := event.Flag.Allocation.DefaultWhenEnabled
	event.Variant = variant(event.Flag, name)
	applyStatusOverride(event, name, true)
}

// applyStatusOverride sets event.Enabled to status unless the named variant overrides it.
func applyStatusOverride(event *model.EvaluationEvent, name string, status bool) {
	event.Enabled = status
	ref, ok := event.Flag.Variant(name)
	if !ok {
		return
	}
	switch ref.StatusOverride {
	case model.StatusOverrideEnabled:
		event.Enabled = true
	case model.StatusOverrideDisabled:
		event.Enabled = false
	}
}

// allocate picks a variant name by user, then group, then percentile allocation.
func allocate(a *model.Allocation, tc model.TargetingContext) (string, model.AssignmentReason) {
	if tc.UserID != "" {
		for _, ua := range a.User {
			if slices.Contains(ua.Users, tc.UserID) {
				return ua.Variant, model.ReasonUser
			}
		}
	}

	for _, ga := range a.Group {
		for _, g := range tc.Groups {
			if slices.Contains(ga.Groups, g) {
				return ga.Variant, model.ReasonGroup
			}
		}
	}

	if len(a.Percentile) == 0 {
		return "", model.ReasonNone
	}
	box := targeting.ComputePercentage(targeting.ContextID(tc.UserID, a.Seed))
	for _, pa := range a.Percentile {
		// the top of the hash range lands exactly on 100
		if box == 100 && pa.To == 100 {
			return pa.Variant, model.ReasonPercentile
		}
		if float64(pa.From) <= box && box < float64(pa.To) {
			return pa.Variant, model.ReasonPercentile
		}
	}
	return "", model.ReasonNone
}

func variant(flag *model.FlagDefinition, name string) *model.Variant {
	ref, ok := flag.Variant(name)
	if !ok {
		return nil
	}
	return &model.Variant{Name: ref.Name, Configuration: ref.ConfigurationValue}
}
