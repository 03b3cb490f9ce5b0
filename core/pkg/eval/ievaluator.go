package eval

import (
	"context"

	"github.com/open-feature/featuremanager/core/pkg/model"
)

// IEvaluator is the evaluation surface consumed by services.
type IEvaluator interface {
	IsEnabled(ctx context.Context, flagID string, tc *model.TargetingContext) (bool, error)
	GetVariant(ctx context.Context, flagID string, tc *model.TargetingContext) (*model.Variant, error)
	Evaluate(ctx context.Context, flagID string, tc *model.TargetingContext) (*model.EvaluationEvent, error)
	ListFlagNames() []string
}
