package telemetry

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/open-feature/featuremanager/core/pkg/eval"
	"github.com/open-feature/featuremanager/core/pkg/model"
)

const TelemetryFlags = `{
  "feature_management": {
    "feature_flags": [
      {
        "id": "PercentileVariant",
        "enabled": true,
        "telemetry": {"enabled": true, "metadata": {"etag": "abc"}},
        "variants": [{"name": "On"}, {"name": "Off"}],
        "allocation": {
          "default_when_enabled": "Off",
          "percentile": [{"variant": "On", "from": 0, "to": 20}, {"variant": "Off", "from": 20, "to": 50}, {"variant": "On", "from": 50, "to": 60}]
        }
      }
    ]
  }
}`

func attributes(kvs []attribute.KeyValue) map[string]attribute.Value {
	m := make(map[string]attribute.Value, len(kvs))
	for _, kv := range kvs {
		m[string(kv.Key)] = kv.Value
	}
	return m
}

func manager(t *testing.T, opts ...eval.Option) *eval.FeatureManager {
	t.Helper()
	fm, err := model.ParseDocument([]byte(TelemetryFlags))
	require.NoError(t, err)
	return eval.NewFeatureManager(&model.StaticConfiguration{Snapshot: fm}, opts...)
}

func TestPublish_SpanEventAndCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	publisher, err := NewPublisher(reg)
	require.NoError(t, err)

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	ctx, span := provider.Tracer("test").Start(context.Background(), "request")

	fm := manager(t, eval.WithTelemetry(publisher.Publish))
	// "Adam\nallocation\nPercentileVariant" hashes to 29.8, inside the Off band
	variant, err := fm.GetVariant(ctx, "PercentileVariant", &model.TargetingContext{UserID: "Adam"})
	require.NoError(t, err)
	require.Equal(t, "Off", variant.Name)
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	events := spans[0].Events()
	require.Len(t, events, 1)
	assert.Equal(t, EventName, events[0].Name)

	attrs := attributes(events[0].Attributes)
	assert.Equal(t, "PercentileVariant", attrs[FeatureName].AsString())
	assert.True(t, attrs[Enabled].AsBool())
	assert.Equal(t, "Off", attrs[Variant].AsString())
	assert.Equal(t, "Percentile", attrs[VariantAssignmentReason].AsString())
	assert.Equal(t, "Adam", attrs[TargetingID].AsString())
	assert.Equal(t, 30.0, attrs[VariantAssignmentPercentage].AsFloat64())
	assert.Equal(t, "abc", attrs["etag"].AsString())

	assert.Equal(t, 1.0, testutil.ToFloat64(publisher.evaluations.WithLabelValues("PercentileVariant", "true", "Off", "Percentile")))
}

func TestPublish_NoSpan(t *testing.T) {
	publisher, err := NewPublisher(prometheus.NewRegistry())
	require.NoError(t, err)

	fm := manager(t, eval.WithTelemetry(publisher.Publish))
	_, err = fm.IsEnabled(context.Background(), "PercentileVariant", &model.TargetingContext{UserID: "Adam"})
	require.NoError(t, err)

	assert.Equal(t, 1, testutil.CollectAndCount(publisher.evaluations))
}

func TestNewPublisher_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewPublisher(reg)
	require.NoError(t, err)

	_, err = NewPublisher(reg)
	assert.Error(t, err)
}

func TestAssignmentPercentage(t *testing.T) {
	flag := &model.FlagDefinition{
		ID: "PercentileVariant",
		Allocation: &model.Allocation{Percentile: []model.PercentileAllocation{
			{Variant: "On", From: 0, To: 20},
			{Variant: "Off", From: 20, To: 50},
			{Variant: "On", From: 50, To: 60},
		}},
	}

	tests := map[string]struct {
		event *model.EvaluationEvent
		want  float64
		ok    bool
	}{
		"percentile sums bands": {
			event: &model.EvaluationEvent{Flag: flag, Reason: model.ReasonPercentile, Variant: &model.Variant{Name: "On"}},
			want:  30,
			ok:    true,
		},
		"default when enabled is the remainder": {
			event: &model.EvaluationEvent{Flag: flag, Reason: model.ReasonDefaultWhenEnabled},
			want:  40,
			ok:    true,
		},
		"user reason": {
			event: &model.EvaluationEvent{Flag: flag, Reason: model.ReasonUser, Variant: &model.Variant{Name: "On"}},
		},
		"unknown flag": {
			event: &model.EvaluationEvent{Reason: model.ReasonNone},
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got, ok := AssignmentPercentage(tt.event)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTargetingSpanProcessor(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	fm := manager(t, eval.WithTargetingContextAccessor(func() model.TargetingContext {
		return model.TargetingContext{UserID: "Aiden"}
	}))
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(NewTargetingSpanProcessor(fm)),
		sdktrace.WithSpanProcessor(recorder),
	)

	_, span := provider.Tracer("test").Start(context.Background(), "request")
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	attrs := attributes(spans[0].Attributes())
	assert.Equal(t, "Aiden", attrs[TargetingID].AsString())
}

func TestTargetingSpanProcessor_NoAccessor(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(NewTargetingSpanProcessor(manager(t))),
		sdktrace.WithSpanProcessor(recorder),
	)

	_, span := provider.Tracer("test").Start(context.Background(), "request")
	span.End()

	attrs := attributes(recorder.Ended()[0].Attributes())
	assert.NotContains(t, attrs, TargetingID)
}
