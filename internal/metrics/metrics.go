// internal/metrics/metrics.go
package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "settlement_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	CommissionsRecordedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_commissions_recorded_total",
			Help: "Commission records written to the ledger",
		},
		[]string{"rate_source"},
	)

	PayoutBatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_payout_batches_total",
			Help: "Payout batches generated, by final status",
		},
		[]string{"status"},
	)

	PayoutExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_payout_executions_total",
			Help: "Payout executions, by payment method and result",
		},
		[]string{"method", "result"},
	)

	PayoutExecutionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "settlement_payout_execution_duration_seconds",
			Help:    "Time spent in payment rails",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	DisputesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_disputes_total",
			Help: "Dispute lifecycle events",
		},
		[]string{"event"},
	)

	ReconciliationDiscrepanciesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "settlement_reconciliation_discrepancies_total",
			Help: "Vendor periods found out of balance",
		},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		CommissionsRecordedTotal,
		PayoutBatchesTotal,
		PayoutExecutionsTotal,
		PayoutExecutionDuration,
		DisputesTotal,
		ReconciliationDiscrepanciesTotal,
	)
}

// Handler exposes the default registry for scraping.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
