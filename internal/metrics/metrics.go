// Package metrics exposes Prometheus instrumentation for the contributions backend.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gtmhub"

// Registry owns the collectors. A nil *Registry is valid and records nothing.
type Registry struct {
	registry         *prometheus.Registry
	documentVersions *prometheus.CounterVec
	contributions    *prometheus.CounterVec
	reviews          *prometheus.CounterVec
	quizAttempts     *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
}

// NewRegistry builds a registry with process and Go runtime collectors attached.
func NewRegistry() *Registry {
	registry := prometheus.NewRegistry()
	metrics := &Registry{
		registry: registry,
		documentVersions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "document_versions_total",
			Help:      "Document versions appended, by document type and source.",
		}, []string{"document_type", "source"}),
		contributions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "contributions_total",
			Help:      "Contributions submitted, by target type and initial status.",
		}, []string{"target_type", "status"}),
		reviews: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reviews_total",
			Help:      "Contribution reviews completed, by outcome.",
		}, []string{"status"}),
		quizAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quiz_attempts_total",
			Help:      "Quiz attempts recorded, by pass outcome.",
		}, []string{"passed"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status code.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		metrics.documentVersions,
		metrics.contributions,
		metrics.reviews,
		metrics.quizAttempts,
		metrics.requestDuration,
	)
	return metrics
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Registry) DocumentVersionSaved(documentType, source string) {
	if r == nil {
		return
	}
	r.documentVersions.WithLabelValues(documentType, source).Inc()
}

func (r *Registry) ContributionCreated(targetType, status string) {
	if r == nil {
		return
	}
	r.contributions.WithLabelValues(targetType, status).Inc()
}

func (r *Registry) ContributionReviewed(status string) {
	if r == nil {
		return
	}
	r.reviews.WithLabelValues(status).Inc()
}

func (r *Registry) QuizAttemptRecorded(passed bool) {
	if r == nil {
		return
	}
	r.quizAttempts.WithLabelValues(strconv.FormatBool(passed)).Inc()
}

func (r *Registry) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.requestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}
