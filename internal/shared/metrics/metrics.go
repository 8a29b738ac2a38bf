package metrics

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every SpareFinder collector. It is separate from the default
// registry so tests can read values without global Go runtime collectors.
var Registry = prometheus.NewRegistry()

var (
	creditOperations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "credit_operations_total",
		Help: "Credit ledger operations by type and outcome",
	}, []string{"type", "outcome"})

	creditsMoved = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "credits_moved_total",
		Help: "Credits deducted or added by transaction type",
	}, []string{"type"})

	insufficientCredits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "credit_insufficient_total",
		Help: "Analyses rejected for insufficient credits",
	})

	refundFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "credit_refund_failed_total",
		Help: "Refunds that could not be written; the credit is lost",
	})

	degradedReads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storage_degraded_reads_total",
		Help: "Reads that fell back to a zero default because storage failed",
	}, []string{"resource", "reason"})

	rateLimited = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_rate_limited_total",
		Help: "Requests rejected by the rate limiter, by group",
	}, []string{"group"})

	panicsRecovered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "http_panics_recovered_total",
		Help: "Handler panics turned into 500 responses",
	})

	analysisStarted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "analysis_started_total",
		Help: "Total analyses started",
	})
	analysisCompleted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "analysis_completed_total",
		Help: "Total analyses completed",
	})
	analysisFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "analysis_failed_total",
		Help: "Total analyses failed",
	})
	analysisDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "analysis_duration_ms",
		Help:    "Analysis duration in milliseconds",
		Buckets: []float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000},
	})
)

func init() {
	Registry.MustRegister(
		creditOperations,
		creditsMoved,
		insufficientCredits,
		refundFailures,
		degradedReads,
		rateLimited,
		panicsRecovered,
		analysisStarted,
		analysisCompleted,
		analysisFailed,
		analysisDuration,
	)
}

// ObserveCreditOperation records a ledger write. amount is counted only on success.
func ObserveCreditOperation(txType string, amount int, err error) {
	if err != nil {
		creditOperations.WithLabelValues(txType, "error").Inc()
		return
	}
	creditOperations.WithLabelValues(txType, "ok").Inc()
	if amount > 0 {
		creditsMoved.WithLabelValues(txType).Add(float64(amount))
	}
}

// IncInsufficientCredits counts a rejected analysis.
func IncInsufficientCredits() {
	insufficientCredits.Inc()
}

// IncRefundFailed counts a refund that did not land.
func IncRefundFailed() {
	refundFailures.Inc()
}

// IncDegradedRead counts a read that fell back to a default.
func IncDegradedRead(resource, reason string) {
	if reason == "" {
		reason = "unknown"
	}
	degradedReads.WithLabelValues(resource, reason).Inc()
}

// IncRateLimited counts a request rejected in group.
func IncRateLimited(group string) {
	rateLimited.WithLabelValues(group).Inc()
}

// IncPanicRecovered counts a recovered handler panic.
func IncPanicRecovered() {
	panicsRecovered.Inc()
}

// IncAnalysisStarted increments the started counter.
func IncAnalysisStarted() {
	analysisStarted.Inc()
}

// IncAnalysisCompleted increments the completed counter.
func IncAnalysisCompleted() {
	analysisCompleted.Inc()
}

// IncAnalysisFailed increments the failed counter.
func IncAnalysisFailed() {
	analysisFailed.Inc()
}

// ObserveAnalysisDuration records how long an analysis took.
func ObserveAnalysisDuration(d time.Duration) {
	ms := float64(d) / float64(time.Millisecond)
	if ms < 0 {
		ms = 0
	}
	analysisDuration.Observe(ms)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Status(http.StatusMethodNotAllowed)
			return
		}
		h.ServeHTTP(c.Writer, c.Request)
	}
}
