package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/open-feature/featuremanager/core/pkg/eval"
	"github.com/open-feature/featuremanager/core/pkg/model"
	"github.com/open-feature/featuremanager/pkg/sync"
	"github.com/open-feature/featuremanager/pkg/telemetry"
)

const Flags = `{
  "feature_management": {
    "feature_flags": [
      {"id": "Alpha", "enabled": true},
      {"id": "BadFlag", "enabled": true, "conditions": {"requirement_type": "Most"}},
      {
        "id": "PercentileVariant",
        "enabled": true,
        "telemetry": {"enabled": true},
        "variants": [{"name": "On", "configuration_value": true}, {"name": "Off", "configuration_value": false}],
        "allocation": {"percentile": [{"variant": "On", "from": 0, "to": 50}, {"variant": "Off", "from": 50, "to": 100}]}
      }
    ]
  }
}`

type fixture struct {
	server *httptest.Server
	config *model.StaticConfiguration
	mux    *sync.Multiplexer
}

func newFixture(t *testing.T, cfg *HTTPServiceConfiguration, tp ...*sdktrace.TracerProvider) *fixture {
	t.Helper()
	fm, err := model.ParseDocument([]byte(Flags))
	require.NoError(t, err)
	config := &model.StaticConfiguration{Snapshot: fm}

	reg := prometheus.NewRegistry()
	publisher, err := telemetry.NewPublisher(reg)
	require.NoError(t, err)

	mux, err := sync.NewMux(config, []string{"flags.json"})
	require.NoError(t, err)

	svc := &HTTPService{HTTPServiceConfiguration: cfg, Mux: mux, Gatherer: reg}
	if len(tp) > 0 {
		svc.TracerProvider = tp[0]
	}
	server := httptest.NewServer(svc.Handler(eval.NewFeatureManager(config, eval.WithTelemetry(publisher.Publish))))
	t.Cleanup(server.Close)

	return &fixture{server: server, config: config, mux: mux}
}

func (f *fixture) post(t *testing.T, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(f.server.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestListFlags(t *testing.T) {
	f := newFixture(t, &HTTPServiceConfiguration{})

	resp, err := http.Get(f.server.URL + "/flags")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var out flagsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, []string{"Alpha", "BadFlag", "PercentileVariant"}, out.Flags)
}

func TestIsEnabled(t *testing.T) {
	f := newFixture(t, &HTTPServiceConfiguration{})

	resp, out := f.post(t, "/flags/Alpha/enabled", `{"user_id": "Adam"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Alpha", out["flag"])
	assert.Equal(t, true, out["enabled"])

	resp, out = f.post(t, "/flags/Alpha/enabled", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, out["enabled"])
}

func TestGetVariant(t *testing.T) {
	f := newFixture(t, &HTTPServiceConfiguration{})

	// "Brittney\nallocation\nPercentileVariant" hashes to 64.5
	resp, out := f.post(t, "/flags/PercentileVariant/variant", `{"user_id": "Brittney", "groups": ["Ring1"]}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Percentile", out["reason"])
	assert.Equal(t, map[string]any{"name": "Off", "configuration": false}, out["variant"])
}

func TestErrors(t *testing.T) {
	f := newFixture(t, &HTTPServiceConfiguration{})

	tests := map[string]struct {
		path   string
		body   string
		status int
		code   string
	}{
		"unknown flag":   {"/flags/Missing/enabled", `{}`, http.StatusNotFound, model.FlagNotFoundErrorCode},
		"invalid flag":   {"/flags/BadFlag/enabled", `{}`, http.StatusBadRequest, model.ParseErrorCode},
		"malformed body": {"/flags/Alpha/variant", `{"user_id": 1}`, http.StatusBadRequest, model.GeneralErrorCode},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			resp, out := f.post(t, tt.path, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.code, out["errorCode"])
		})
	}
}

func TestSync_Publish(t *testing.T) {
	f := newFixture(t, &HTTPServiceConfiguration{SyncTimeout: 5 * time.Second})

	type result struct {
		status int
		body   string
	}
	done := make(chan result, 1)
	go func() {
		resp, err := http.Get(f.server.URL + "/sync")
		if err != nil {
			done <- result{}
			return
		}
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		done <- result{status: resp.StatusCode, body: string(b)}
	}()

	require.Eventually(t, func() bool { return f.mux.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	updated, err := model.ParseDocument([]byte(`{"feature_management": {"feature_flags": [{"id": "Gamma"}]}}`))
	require.NoError(t, err)
	f.config.Snapshot = updated
	require.NoError(t, f.mux.Publish())

	got := <-done
	assert.Equal(t, http.StatusOK, got.status)
	assert.JSONEq(t, `{"feature_management": {"feature_flags": [{"id": "Gamma"}]}}`, got.body)
	assert.Eventually(t, func() bool { return f.mux.Subscribers() == 0 }, time.Second, 10*time.Millisecond)
}

func TestSync_Timeout(t *testing.T) {
	f := newFixture(t, &HTTPServiceConfiguration{SyncTimeout: 10 * time.Millisecond})

	resp, err := http.Get(f.server.URL + "/sync")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestMetrics(t *testing.T) {
	f := newFixture(t, &HTTPServiceConfiguration{})

	resp, _ := f.post(t, "/flags/PercentileVariant/enabled", `{"user_id": "Brittney"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err := http.Get(f.server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(b), `featuremanager_evaluations_total{enabled="true",flag="PercentileVariant",reason="Percentile",variant="Off"} 1`)
}

func TestTracing_EvaluationEvent(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	f := newFixture(t, &HTTPServiceConfiguration{}, sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))

	resp, _ := f.post(t, "/flags/PercentileVariant/variant", `{"user_id": "Brittney"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Eventually(t, func() bool { return len(recorder.Ended()) == 1 }, time.Second, 10*time.Millisecond)
	events := recorder.Ended()[0].Events()
	require.Len(t, events, 1)
	assert.Equal(t, telemetry.EventName, events[0].Name)
}

func TestCORS(t *testing.T) {
	f := newFixture(t, &HTTPServiceConfiguration{})

	req, err := http.NewRequest(http.MethodGet, f.server.URL+"/flags", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://example.com")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestServe_Shutdown(t *testing.T) {
	svc := &HTTPService{HTTPServiceConfiguration: &HTTPServiceConfiguration{Port: 0}}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- svc.Serve(ctx, eval.NewFeatureManager(&model.StaticConfiguration{}))
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("service did not stop")
	}
}

func TestServe_MissingConfiguration(t *testing.T) {
	svc := &HTTPService{}
	assert.Error(t, svc.Serve(context.Background(), eval.NewFeatureManager(&model.StaticConfiguration{})))
}
