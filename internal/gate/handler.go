package gate

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/example/push-dispatcher/internal/apperr"
	"github.com/example/push-dispatcher/internal/common"
	"github.com/example/push-dispatcher/internal/recipients"
)

const (
	apiKeyHeader = "x-api-key"
	maxBodyBytes = 1 << 20

	msgNoTokens = "No push tokens found."
	msgSent     = "Push notifications sent successfully"
)

var (
	reqCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gate_requests_total",
		Help: "Requests answered by the push gate",
	}, []string{"method", "status"})
	requestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gate_request_duration_seconds",
		Help:    "Latency of push gate requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})
)

type Handler struct {
	pipeline *Pipeline
	apiKey   string
	tracer   trace.Tracer
	logger   zerolog.Logger
}

func NewHandler(pipeline *Pipeline, apiKey string, logger zerolog.Logger) *Handler {
	return &Handler{
		pipeline: pipeline,
		apiKey:   apiKey,
		tracer:   otel.Tracer("gate"),
		logger:   logger,
	}
}

// Router authenticates every request before method routing, so a bad key
// yields 403 whatever the method.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(h.instrument)
	r.Use(h.authenticate)
	r.MethodNotAllowed(h.methodNotAllowed)
	r.Get("/", h.scheduled)
	r.Post("/", h.adhoc)
	return r
}

func (h *Handler) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := h.tracer.Start(r.Context(), "gate")
		defer span.End()
		span.SetAttributes(attribute.String("http.method", r.Method))

		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		span.SetAttributes(attribute.Int("http.status_code", status))
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
		reqCounter.WithLabelValues(r.Method, strconv.Itoa(status)).Inc()
		requestLatency.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
	})
}

func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get(apiKeyHeader)
		if h.apiKey == "" || subtle.ConstantTimeCompare([]byte(got), []byte(h.apiKey)) != 1 {
			h.respondErr(r.Context(), w, apperr.New(apperr.KindInvalidAPIKey, "", nil))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	h.respondErr(r.Context(), w, apperr.MethodNotAllowed(r.Method))
}

func (h *Handler) scheduled(w http.ResponseWriter, r *http.Request) {
	h.run(r.Context(), w, h.pipeline.Scheduled())
}

func (h *Handler) adhoc(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.respondErr(r.Context(), w, apperr.InvalidBody(err))
		return
	}
	src, err := recipients.ParseInline(raw)
	if err != nil {
		h.respondErr(r.Context(), w, err)
		return
	}
	h.run(r.Context(), w, src)
}

func (h *Handler) run(ctx context.Context, w http.ResponseWriter, src recipients.Source) {
	outcome, err := h.pipeline.Run(ctx, src)
	if err != nil {
		h.respondErr(ctx, w, err)
		return
	}
	switch outcome {
	case OutcomeNoRecipients:
		writeJSON(w, http.StatusOK, "message", msgNoTokens)
	case OutcomeSent:
		writeJSON(w, http.StatusOK, "message", msgSent)
	default:
		h.respondErr(ctx, w, errors.New("pipeline returned no outcome"))
	}
}

func (h *Handler) respondErr(ctx context.Context, w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	status := apperr.Status(kind)

	logger := common.WithContext(ctx, h.logger)
	event := logger.Warn()
	if status >= http.StatusInternalServerError {
		event = logger.Error()
		trace.SpanFromContext(ctx).RecordError(err)
	}
	event.Err(err).Int("status", status).Str("kind", kind.String()).Msg("push gate request failed")

	writeJSON(w, status, "error", apperr.PublicMessage(err))
}

func writeJSON(w http.ResponseWriter, status int, key, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{key: message})
}
