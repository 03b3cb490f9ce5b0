package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/open-feature/featuremanager/core/pkg/model"
)

// TargetingContextSource is satisfied by eval.FeatureManager.
type TargetingContextSource interface {
	TargetingContext() (model.TargetingContext, bool)
}

// TargetingSpanProcessor stamps the ambient targeting id on every started span.
type TargetingSpanProcessor struct {
	source TargetingContextSource
}

var _ sdktrace.SpanProcessor = (*TargetingSpanProcessor)(nil)

func NewTargetingSpanProcessor(source TargetingContextSource) *TargetingSpanProcessor {
	return &TargetingSpanProcessor{source: source}
}

func (p *TargetingSpanProcessor) OnStart(_ context.Context, s sdktrace.ReadWriteSpan) {
	tc, ok := p.source.TargetingContext()
	if !ok || tc.UserID == "" {
		return
	}
	s.SetAttributes(attribute.String(TargetingID, tc.UserID))
}

func (p *TargetingSpanProcessor) OnEnd(sdktrace.ReadOnlySpan) {}

func (p *TargetingSpanProcessor) Shutdown(context.Context) error { return nil }

func (p *TargetingSpanProcessor) ForceFlush(context.Context) error { return nil }
