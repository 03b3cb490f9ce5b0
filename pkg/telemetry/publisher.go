// Package telemetry publishes evaluation events to prometheus and the active trace span.
package telemetry

import (
	"context"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/open-feature/featuremanager/core/pkg/model"
)

const (
	EventName = "FeatureEvaluation"

	FeatureName                 = "FeatureName"
	Enabled                     = "Enabled"
	Variant                     = "Variant"
	VariantAssignmentReason     = "VariantAssignmentReason"
	VariantAssignmentPercentage = "VariantAssignmentPercentage"
	TargetingID                 = "TargetingId"
)

type Publisher struct {
	evaluations *prometheus.CounterVec
}

// NewPublisher registers the evaluation counter with reg.
func NewPublisher(reg prometheus.Registerer) (*Publisher, error) {
	evaluations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "featuremanager_evaluations_total",
		Help: "Total number of feature flag evaluations with telemetry enabled",
	}, []string{"flag", "enabled", "variant", "reason"})
	if err := reg.Register(evaluations); err != nil {
		return nil, err
	}
	return &Publisher{evaluations: evaluations}, nil
}

// Publish has the shape of eval.TelemetryFunc.
func (p *Publisher) Publish(ctx context.Context, event *model.EvaluationEvent) {
	variant := ""
	if event.Variant != nil {
		variant = event.Variant.Name
	}
	p.evaluations.WithLabelValues(event.FlagID, strconv.FormatBool(event.Enabled), variant, string(event.Reason)).Inc()

	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.AddEvent(EventName, trace.WithAttributes(Attributes(event)...))
}

// Attributes flattens an event into span attributes.
func Attributes(event *model.EvaluationEvent) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(FeatureName, event.FlagID),
		attribute.Bool(Enabled, event.Enabled),
		attribute.String(VariantAssignmentReason, string(event.Reason)),
	}
	if event.Variant != nil {
		attrs = append(attrs, attribute.String(Variant, event.Variant.Name))
	}
	if event.User != "" {
		attrs = append(attrs, attribute.String(TargetingID, event.User))
	}
	if pct, ok := AssignmentPercentage(event); ok {
		attrs = append(attrs, attribute.Float64(VariantAssignmentPercentage, pct))
	}
	if event.Flag != nil {
		for key, value := range event.Flag.Telemetry.Metadata {
			attrs = append(attrs, attribute.String(key, value))
		}
	}
	return attrs
}

// AssignmentPercentage is the share of the population that gets the assigned variant
// through percentile allocation. Only defined for Percentile and DefaultWhenEnabled.
func AssignmentPercentage(event *model.EvaluationEvent) (float64, bool) {
	if event.Flag == nil || event.Flag.Allocation == nil {
		return 0, false
	}
	bands := event.Flag.Allocation.Percentile

	switch event.Reason {
	case model.ReasonDefaultWhenEnabled:
		pct := 100.0
		for _, b := range bands {
			pct -= float64(b.To - b.From)
		}
		return pct, true
	case model.ReasonPercentile:
		if event.Variant == nil {
			return 0, false
		}
		pct := 0.0
		for _, b := range bands {
			if b.Variant == event.Variant.Name {
				pct += float64(b.To - b.From)
			}
		}
		return pct, true
	}
	return 0, false
}
