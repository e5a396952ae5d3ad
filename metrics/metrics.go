package metrics

import (
	"database/sql"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	metricPrefix = "rent_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	scheduleTotal   *prometheus.CounterVec
	scheduleLatency *prometheus.HistogramVec
	periodsTotal    prometheus.Counter

	statusEvaluations *prometheus.CounterVec
	cashFlowTotal     *prometheus.CounterVec
	paymentsRecorded  *prometheus.CounterVec
	invoicesTotal     *prometheus.CounterVec
	overdueTenants    prometheus.Gauge

	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec

	storeDegraded *prometheus.CounterVec
	storeRetries  *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
)

// Init registers the engine metrics and, when db is set, DB-backed gauges.
// Calling it more than once is a no-op.
func Init(db *sql.DB, logger *zap.Logger) {
	registerOnce.Do(func() {
		scheduleTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "schedule_create_total",
				Help: "Total payment schedule creations by result",
			},
			[]string{"result"},
		)
		scheduleLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "schedule_create_latency_seconds",
				Help:    "Payment schedule creation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		periodsTotal = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "periods_generated_total",
				Help: "Total billing periods generated and stored",
			},
		)

		statusEvaluations = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "status_evaluations_total",
				Help: "Total rent status evaluations by status",
			},
			[]string{"status"},
		)
		cashFlowTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "cashflow_projections_total",
				Help: "Total cash flow projections by format",
			},
			[]string{"format"},
		)
		paymentsRecorded = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "payments_recorded_total",
				Help: "Total payment recordings by result",
			},
			[]string{"result"},
		)
		invoicesTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "invoices_generated_total",
				Help: "Total invoice generations by result",
			},
			[]string{"result"},
		)
		overdueTenants = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "overdue_tenants",
				Help: "Tenants found overdue by the last monitor sweep",
			},
		)

		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "export_total",
				Help: "Total document exports by format and result",
			},
			[]string{"format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "export_latency_seconds",
				Help:    "Document export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		storeDegraded = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "store_degraded_reads_total",
				Help: "Reads answered with empty results because the payment tables are missing",
			},
			[]string{"op"},
		)
		storeRetries = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "store_write_retries_total",
				Help: "Store write retries by operation",
			},
			[]string{"op"},
		)

		httpRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "http_requests_total",
				Help: "HTTP requests by method, route and status code",
			},
			[]string{"method", "route", "code"},
		)
		httpLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		)

		prometheus.MustRegister(
			scheduleTotal,
			scheduleLatency,
			periodsTotal,
			statusEvaluations,
			cashFlowTotal,
			paymentsRecorded,
			invoicesTotal,
			overdueTenants,
			exportTotal,
			exportLatency,
			storeDegraded,
			storeRetries,
			httpRequests,
			httpLatency,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveSchedule records a schedule creation and the periods it stored.
func ObserveSchedule(result string, periods int, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if scheduleTotal != nil {
		scheduleTotal.WithLabelValues(result).Inc()
	}
	if scheduleLatency != nil {
		scheduleLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
	if periodsTotal != nil && result == resultSuccess && periods > 0 {
		periodsTotal.Add(float64(periods))
	}
}

// IncStatusEvaluation counts an evaluation by its status (current/overdue).
func IncStatusEvaluation(status string) {
	if status == "" {
		status = "unknown"
	}
	if statusEvaluations != nil {
		statusEvaluations.WithLabelValues(status).Inc()
	}
}

// IncCashFlowProjection counts a projection by response format.
func IncCashFlowProjection(format string) {
	if format == "" {
		format = "json"
	}
	if cashFlowTotal != nil {
		cashFlowTotal.WithLabelValues(format).Inc()
	}
}

// IncPaymentRecorded counts a payment recording attempt.
func IncPaymentRecorded(result string) {
	if result == "" {
		result = resultSuccess
	}
	if paymentsRecorded != nil {
		paymentsRecorded.WithLabelValues(result).Inc()
	}
}

// IncInvoiceGenerated counts an invoice generation attempt.
func IncInvoiceGenerated(result string) {
	if result == "" {
		result = resultSuccess
	}
	if invoicesTotal != nil {
		invoicesTotal.WithLabelValues(result).Inc()
	}
}

// SetOverdueTenants sets the overdue gauge from a monitor sweep.
func SetOverdueTenants(n int) {
	if overdueTenants != nil {
		overdueTenants.Set(float64(n))
	}
}

// ObserveExport records export latency and result.
func ObserveExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
	if exportLatency != nil {
		exportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// IncStoreDegraded counts a read that hit missing payment tables.
func IncStoreDegraded(op string) {
	if storeDegraded != nil {
		storeDegraded.WithLabelValues(op).Inc()
	}
}

// IncStoreRetry counts a retried store write.
func IncStoreRetry(op string) {
	if storeRetries != nil {
		storeRetries.WithLabelValues(op).Inc()
	}
}

// ObserveHTTPRequest records one served request. route is the chi route
// pattern, not the raw path.
func ObserveHTTPRequest(method, route, code string, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	if httpRequests != nil {
		httpRequests.WithLabelValues(method, route, code).Inc()
	}
	if httpLatency != nil {
		httpLatency.WithLabelValues(method, route).Observe(duration.Seconds())
	}
}

// Result labels for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)

// Result maps an error to a result label.
func Result(err error) string {
	if err != nil {
		return resultError
	}
	return resultSuccess
}
