package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/xid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/open-feature/featuremanager/core/pkg/eval"
	"github.com/open-feature/featuremanager/core/pkg/model"
	"github.com/open-feature/featuremanager/pkg/sync"
)

const defaultSyncTimeout = 30 * time.Second

type HTTPServiceConfiguration struct {
	Port int32
	// SyncTimeout bounds a GET /sync long poll. Zero means 30s.
	SyncTimeout time.Duration
}

type HTTPService struct {
	HTTPServiceConfiguration *HTTPServiceConfiguration
	Mux                      *sync.Multiplexer
	Gatherer                 prometheus.Gatherer
	// TracerProvider defaults to the global provider.
	TracerProvider           trace.TracerProvider
}

type server struct {
	eval        eval.IEvaluator
	mux         *sync.Multiplexer
	syncTimeout time.Duration
}

type flagsResponse struct {
	Flags []string `json:"flags"`
}

type variantResponse struct {
	Flag    string                 `json:"flag"`
	Variant *model.Variant         `json:"variant"`
	Reason  model.AssignmentReason `json:"reason"`
}

type errorResponse struct {
	ErrorCode string `json:"errorCode"`
	Message   string `json:"message"`
}

func (h *HTTPService) Serve(ctx context.Context, eval eval.IEvaluator) error {
	if h.HTTPServiceConfiguration == nil {
		return errors.New("http service configuration has not been initialised")
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", h.HTTPServiceConfiguration.Port),
		Handler:           h.Handler(eval),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Infof("http service listening on %s", srv.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// Handler builds the router without binding a listener.
func (h *HTTPService) Handler(eval eval.IEvaluator) http.Handler {
	s := &server{eval: eval, mux: h.Mux, syncTimeout: defaultSyncTimeout}
	if h.HTTPServiceConfiguration != nil && h.HTTPServiceConfiguration.SyncTimeout > 0 {
		s.syncTimeout = h.HTTPServiceConfiguration.SyncTimeout
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/flags", s.listFlags)
	r.Post("/flags/{id}/enabled", s.isEnabled)
	r.Post("/flags/{id}/variant", s.getVariant)
	if s.mux != nil {
		r.Get("/sync", s.sync)
	}
	if h.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(h.Gatherer, promhttp.HandlerOpts{}))
	}

	var opts []otelhttp.Option
	if h.TracerProvider != nil {
		opts = append(opts, otelhttp.WithTracerProvider(h.TracerProvider))
	}
	return otelhttp.NewHandler(cors.AllowAll().Handler(r), "featuremanager", opts...)
}

func (s *server) listFlags(w http.ResponseWriter, r *http.Request) {
	names := s.eval.ListFlagNames()
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, flagsResponse{Flags: names})
}

func (s *server) isEnabled(w http.ResponseWriter, r *http.Request) {
	event, err := s.evaluate(r)
	if err != nil {
		handleError(err, w)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

func (s *server) getVariant(w http.ResponseWriter, r *http.Request) {
	event, err := s.evaluate(r)
	if err != nil {
		handleError(err, w)
		return
	}
	writeJSON(w, http.StatusOK, variantResponse{Flag: event.FlagID, Variant: event.Variant, Reason: event.Reason})
}

func (s *server) evaluate(r *http.Request) (*model.EvaluationEvent, error) {
	flagID := chi.URLParam(r, "id")

	var tc model.TargetingContext
	if err := json.NewDecoder(r.Body).Decode(&tc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: unable to decode targeting context: %v", errBadRequest, err)
	}

	event, err := s.eval.Evaluate(r.Context(), flagID, &tc)
	if err != nil {
		return nil, err
	}
	if event.Flag == nil {
		return nil, fmt.Errorf("%w: %s", model.ErrFlagNotFound, flagID)
	}
	return event, nil
}

// sync blocks until the next configuration change or the poll timeout.
func (s *server) sync(w http.ResponseWriter, r *http.Request) {
	id := xid.New()
	ch := make(chan sync.Payload, 1)
	s.mux.Register(id, ch)
	defer s.mux.Unregister(id)

	timer := time.NewTimer(s.syncTimeout)
	defer timer.Stop()

	select {
	case payload := <-ch:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, payload.Flags)
	case <-timer.C:
		w.WriteHeader(http.StatusNoContent)
	case <-r.Context().Done():
	}
}

var errBadRequest = errors.New("bad request")

// some basic mapping of errors from model to HTTP
func handleError(err error, w http.ResponseWriter) {
	code := model.ErrorCode(err)
	status := http.StatusInternalServerError
	switch {
	case code == model.FlagNotFoundErrorCode:
		status = http.StatusNotFound
	case code == model.ParseErrorCode, errors.Is(err, errBadRequest):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		log.Error(err)
	} else {
		log.Debug(err)
	}
	writeJSON(w, status, errorResponse{ErrorCode: code, Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
