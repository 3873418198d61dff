// Package metrics exposes Prometheus collectors for the review backend.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tutorly"

type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.HistogramVec
	reviews      *prometheus.CounterVec
	mastery      *prometheus.HistogramVec
	jobs         *prometheus.CounterVec
}

// New builds a registry holding the process collectors and the
// application metrics.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		reviews: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reviews_total",
			Help:      "Review events applied, by algorithm and outcome.",
		}, []string{"algorithm", "item_type", "outcome"}),
		mastery: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "review_mastery",
			Help:      "Mastery after a review.",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		}, []string{"algorithm"}),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Background jobs by type and final status.",
		}, []string{"type", "status"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.reviews,
		m.mastery,
		m.jobs,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records request latency labelled by the matched chi route, so
// ids in paths don't blow up cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.httpRequests.
			WithLabelValues(r.Method, route, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
	})
}

// ObserveReview counts one applied review.
func (m *Metrics) ObserveReview(algorithm, itemType string, correct bool, mastery float64) {
	outcome := "incorrect"
	if correct {
		outcome = "correct"
	}
	m.reviews.WithLabelValues(algorithm, itemType, outcome).Inc()
	m.mastery.WithLabelValues(algorithm).Observe(mastery)
}

// ObserveJob counts a job reaching a terminal or retry status.
func (m *Metrics) ObserveJob(jobType, status string) {
	m.jobs.WithLabelValues(jobType, status).Inc()
}
