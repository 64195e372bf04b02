// Package metrics exposes Prometheus instrumentation for the HTTP surface
// and the sweeper.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	hr "github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fcb_http_requests_total",
			Help: "Total HTTP requests served",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fcb_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// SweptShares counts shares reclaimed by the sweeper.
	SweptShares = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fcb_sweeper_cleaned_total",
			Help: "Expired shares reclaimed by the sweeper",
		},
	)

	// SweepErrors counts records the sweeper failed to reclaim.
	SweepErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fcb_sweeper_errors_total",
			Help: "Errors while reclaiming expired shares",
		},
	)
)

// Handler returns the handler Prometheus scrapes.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Instrument records request count and latency for the wrapped handle.
func Instrument(h hr.Handle) hr.Handle {
	return func(w http.ResponseWriter, r *http.Request, p hr.Params) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		h(sw, r, p)
		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(sw.status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// normalizePath collapses share codes into one label value so metric
// cardinality stays bounded.
func normalizePath(path string) string {
	segs := strings.Split(path, "/")
	for i, s := range segs {
		if isCode(s) {
			segs[i] = ":code"
		}
	}
	return strings.Join(segs, "/")
}

func isCode(s string) bool {
	if len(s) != 6 {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
