package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Access decision metrics
	DecisionsTotal   *prometheus.CounterVec
	DecisionDuration *prometheus.HistogramVec
	DecisionErrors   *prometheus.CounterVec

	// Plan gate metrics
	PremiumDenialsTotal *prometheus.CounterVec
	CallLimitHitsTotal  *prometheus.CounterVec
	MeteringErrorsTotal prometheus.Counter
	MeteringWritesTotal prometheus.Counter

	// Group scoping metrics
	GroupAggregationDuration prometheus.Histogram
	GroupAggregationErrors   prometheus.Counter

	// Project cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "formgrid_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "formgrid_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		DecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "formgrid_access_decisions_total",
				Help: "Access decisions by deciding rule and outcome",
			},
			[]string{"rule", "outcome"},
		),
		DecisionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "formgrid_access_decision_duration_seconds",
				Help:    "Time spent resolving an access decision",
				Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
			},
			[]string{"rule"},
		),
		DecisionErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "formgrid_access_decision_errors_total",
				Help: "Access decisions that failed with a lookup error",
			},
			[]string{"stage"},
		),

		PremiumDenialsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "formgrid_plan_premium_denials_total",
				Help: "Premium actions denied by plan",
			},
			[]string{"plan", "action"},
		),
		CallLimitHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "formgrid_plan_call_limit_hits_total",
				Help: "Requests rejected for exceeding the monthly call ceiling",
			},
			[]string{"plan"},
		),
		MeteringErrorsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "formgrid_metering_errors_total",
				Help: "Failed reads or writes of monthly call counters",
			},
		),
		MeteringWritesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "formgrid_metering_writes_total",
				Help: "Monthly call counter increments",
			},
		),

		GroupAggregationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "formgrid_group_aggregation_duration_seconds",
				Help:    "Duration of the submission group aggregation query",
				Buckets: prometheus.DefBuckets,
			},
		),
		GroupAggregationErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "formgrid_group_aggregation_errors_total",
				Help: "Group aggregation failures (scoping falls open)",
			},
		),

		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "formgrid_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"cache"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "formgrid_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"cache"},
		),

		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "formgrid_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "formgrid_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.DecisionsTotal,
		m.DecisionDuration,
		m.DecisionErrors,
		m.PremiumDenialsTotal,
		m.CallLimitHitsTotal,
		m.MeteringErrorsTotal,
		m.MeteringWritesTotal,
		m.GroupAggregationDuration,
		m.GroupAggregationErrors,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
	)

	return m
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
