package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path"},
	)

	ShiftTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "barflow_shift_transitions_total",
			Help: "Shift lifecycle transitions by kind",
		},
		[]string{"transition"},
	)

	CashDifference = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "barflow_shift_cash_difference",
			Help:    "Counted cash minus expected cash at shift close, in minor units",
			Buckets: []float64{-50000, -10000, -1000, 0, 1000, 10000, 50000},
		},
	)

	CreditOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "barflow_credit_operations_total",
			Help: "Credit ledger operations by type and outcome",
		},
		[]string{"type", "outcome"},
	)

	SalesRecorded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "barflow_sales_recorded_total",
			Help: "Register tickets recorded by payment method",
		},
		[]string{"payment_method"},
	)
)

var registerOnce sync.Once

// Register adds every collector to the default registry. Safe to call more
// than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDuration,
			ShiftTransitions,
			CashDifference,
			CreditOperations,
			SalesRecorded,
		)
	})
}

// Middleware records request counts and latency keyed by the chi route
// pattern, so path parameters do not explode label cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		path := "undefined"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(status)).Inc()
		HTTPRequestDuration.WithLabelValues(path).Observe(time.Since(start).Seconds())
	})
}
