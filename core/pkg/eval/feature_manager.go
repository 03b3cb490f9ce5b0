// Package eval decides whether flags are on and which variant a caller gets.
package eval

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/open-feature/featuremanager/core/pkg/filter"
	"github.com/open-feature/featuremanager/core/pkg/logger"
	"github.com/open-feature/featuremanager/core/pkg/model"
	"github.com/open-feature/featuremanager/core/pkg/store"
)

// TelemetryFunc receives every finished evaluation of a flag with telemetry enabled.
type TelemetryFunc func(ctx context.Context, event *model.EvaluationEvent)

// TargetingContextAccessor returns the ambient targeting context of the caller.
type TargetingContextAccessor func() model.TargetingContext

type Option func(*options)

type options struct {
	filters     []filter.Filter
	onEvaluated TelemetryFunc
	accessor    TargetingContextAccessor
	logger      *logger.Logger
	ignoreCase  bool
}

// WithFilters registers custom filters after the built-in ones, so a custom filter with a
// built-in name replaces it.
func WithFilters(filters ...filter.Filter) Option {
	return func(o *options) {
		o.filters = append(o.filters, filters...)
	}
}

func WithTelemetry(fn TelemetryFunc) Option {
	return func(o *options) {
		o.onEvaluated = fn
	}
}

func WithTargetingContextAccessor(fn TargetingContextAccessor) Option {
	return func(o *options) {
		o.accessor = fn
	}
}

func WithLogger(l *logger.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithIgnoreCase makes the built-in targeting filter compare group names case-insensitively.
func WithIgnoreCase(ignoreCase bool) Option {
	return func(o *options) {
		o.ignoreCase = ignoreCase
	}
}

// FeatureManager evaluates flags against the configuration snapshot it is given on each call.
type FeatureManager struct {
	configuration model.Configuration
	filters       *filter.Registry
	flags         *store.Flags
	onEvaluated   TelemetryFunc
	accessor      TargetingContextAccessor
	logger        *logger.Logger
}

func NewFeatureManager(configuration model.Configuration, opts ...Option) *FeatureManager {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logger.NewNop()
	}

	builtins := []filter.Filter{
		filter.NewTimeWindow(o.logger),
		filter.NewTargeting(o.logger, o.ignoreCase),
	}

	return &FeatureManager{
		configuration: configuration,
		filters:       filter.NewRegistry(append(builtins, o.filters...)...),
		flags:         store.NewFlags(o.logger),
		onEvaluated:   o.onEvaluated,
		accessor:      o.accessor,
		logger:        o.logger,
	}
}

// IsEnabled reports whether flagID is on for tc. Unknown flags are off.
func (fm *FeatureManager) IsEnabled(ctx context.Context, flagID string, tc *model.TargetingContext) (bool, error) {
	event, err := fm.Evaluate(ctx, flagID, tc)
	if err != nil {
		return false, err
	}
	return event.Enabled, nil
}

// GetVariant returns the variant assigned to tc, or nil when none applies.
func (fm *FeatureManager) GetVariant(ctx context.Context, flagID string, tc *model.TargetingContext) (*model.Variant, error) {
	event, err := fm.Evaluate(ctx, flagID, tc)
	if err != nil {
		return nil, err
	}
	return event.Variant, nil
}

// Evaluate runs the full pipeline and hands the result to the telemetry callback when the
// flag asks for it.
func (fm *FeatureManager) Evaluate(ctx context.Context, flagID string, tc *model.TargetingContext) (*model.EvaluationEvent, error) {
	targetingContext := model.TargetingContext{}
	if tc != nil {
		targetingContext = *tc
	}

	event, err := fm.checkFeature(ctx, flagID, targetingContext)
	if err != nil {
		return nil, err
	}

	if fm.onEvaluated != nil && event.Flag != nil && event.Flag.Telemetry.Enabled {
		event.User = targetingContext.UserID
		fm.onEvaluated(ctx, event)
	}
	return event, nil
}

// ListFlagNames returns the ids of every flag in the current snapshot.
func (fm *FeatureManager) ListFlagNames() []string {
	return fm.configuration.FeatureManagement().IDs()
}

// TargetingContext returns the ambient targeting context, if an accessor was configured.
func (fm *FeatureManager) TargetingContext() (model.TargetingContext, bool) {
	if fm.accessor == nil {
		return model.TargetingContext{}, false
	}
	return fm.accessor(), true
}

func (fm *FeatureManager) checkFeature(ctx context.Context, flagID string, tc model.TargetingContext) (*model.EvaluationEvent, error) {
	flag, err := fm.flags.Get(fm.configuration.FeatureManagement(), flagID)
	if err != nil {
		return nil, err
	}

	event := model.NewEvaluationEvent(flagID, flag)
	if flag == nil {
		fm.logger.Warn("feature flag not found", zap.String("flag", flagID))
		return event, nil
	}

	if !flag.Enabled {
		assignDefaultDisabledVariant(event)
		return event, nil
	}

	if err := fm.checkFeatureFilters(ctx, event, tc); err != nil {
		return nil, err
	}

	assignAllocation(event, tc)
	return event, nil
}

func (fm *FeatureManager) checkFeatureFilters(ctx context.Context, event *model.EvaluationEvent, tc model.TargetingContext) error {
	conditions := event.Flag.Conditions
	if len(conditions.ClientFilters) == 0 {
		event.Enabled = true
		return nil
	}

	requireAll := conditions.RequirementType == model.RequirementAll
	event.Enabled = requireAll

	fc := filter.Context{
		FlagID: event.Flag.ID,
		User:   tc.UserID,
		Groups: tc.Groups,
	}
	for _, ref := range conditions.ClientFilters {
		f, ok := fm.filters.Get(ref.Name)
		if !ok {
			return fmt.Errorf("%w: feature flag %s references filter %s", model.ErrUnknownFilter, event.Flag.ID, ref.Name)
		}
		result, err := f.Evaluate(ctx, ref, fc)
		if err != nil {
			return err
		}
		if requireAll && !result {
			event.Enabled = false
			return nil
		}
		if !requireAll && result {
			event.Enabled = true
			return nil
		}
	}
	return nil
}
