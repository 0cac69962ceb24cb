// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

var (
	SideChatOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jaco_side_chat_operations_total",
		Help: "Side chat operations by kind and outcome.",
	}, []string{"operation", "outcome"})

	LLMRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jaco_llm_requests_total",
		Help: "Calls to the language model by purpose and outcome.",
	}, []string{"purpose", "outcome"})

	LLMLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "jaco_llm_request_duration_seconds",
		Help:    "Language model call latency.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	}, []string{"purpose"})

	TopicDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jaco_topic_decisions_total",
		Help: "Topic classification results.",
	}, []string{"decision"})

	MemoriesSaved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jaco_memories_saved_total",
		Help: "User memories stored, by category.",
	}, []string{"category"})

	JobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jaco_jobs_processed_total",
		Help: "Background jobs processed by type and final status.",
	}, []string{"type", "status"})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jaco_http_requests_total",
		Help: "HTTP requests by route pattern, method and status code.",
	}, []string{"route", "method", "code"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "jaco_http_request_duration_seconds",
		Help:    "HTTP request latency by route pattern.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})
)

// Outcome maps an error to the outcome label.
func Outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeSuccess
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request counts and latency keyed by the chi route
// pattern, so ids in the path do not explode label cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		httpRequests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		httpLatency.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}
