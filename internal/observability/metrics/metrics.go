package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "condoledger_"

	// ResultSuccess labels a successful operation.
	ResultSuccess = "success"
	// ResultError labels a failed operation.
	ResultError = "error"
)

var (
	registerOnce sync.Once

	uploadTotal   *prometheus.CounterVec
	uploadLatency *prometheus.HistogramVec

	transactionsDetected prometheus.Counter
	transactionsInserted prometheus.Counter

	reconcileTotal    *prometheus.CounterVec
	reconcileLatency  *prometheus.HistogramVec
	reconcileVerified *prometheus.CounterVec

	closeTotal   *prometheus.CounterVec
	closeLatency *prometheus.HistogramVec

	ledgerTotal   *prometheus.CounterVec
	ledgerLatency *prometheus.HistogramVec
)

// Init registers observability metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		uploadTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "statement_uploads_total",
				Help: "Total bank statement uploads by result",
			},
			[]string{"result"},
		)
		uploadLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "statement_upload_latency_seconds",
				Help:    "Statement upload latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		transactionsDetected = prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "bank_transactions_detected_total",
			Help: "Transactions detected in uploaded statements",
		})
		transactionsInserted = prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "bank_transactions_inserted_total",
			Help: "Transactions newly inserted into the store",
		})

		reconcileTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "reconcile_runs_total",
				Help: "Total reconciliation runs by result",
			},
			[]string{"result"},
		)
		reconcileLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "reconcile_latency_seconds",
				Help:    "Reconciliation run latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		reconcileVerified = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "reconcile_status_updates_total",
				Help: "Status updates applied by the reconciliation engine",
			},
			[]string{"record", "status"},
		)

		closeTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "monthly_close_total",
				Help: "Monthly close attempts by result",
			},
			[]string{"result"},
		)
		closeLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "monthly_close_latency_seconds",
				Help:    "Monthly close latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		ledgerTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ledger_requests_total",
				Help: "Ledger computations by result",
			},
			[]string{"result"},
		)
		ledgerLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "ledger_latency_seconds",
				Help:    "Ledger computation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		prometheus.MustRegister(
			uploadTotal, uploadLatency,
			transactionsDetected, transactionsInserted,
			reconcileTotal, reconcileLatency, reconcileVerified,
			closeTotal, closeLatency,
			ledgerTotal, ledgerLatency,
		)
		registerDBMetrics(db, logger)
	})
}

// ObserveStatementUpload records one statement upload.
func ObserveStatementUpload(result string, detected, inserted int, duration time.Duration) {
	if uploadTotal == nil {
		return
	}
	uploadTotal.WithLabelValues(result).Inc()
	uploadLatency.WithLabelValues(result).Observe(duration.Seconds())
	if detected > 0 {
		transactionsDetected.Add(float64(detected))
	}
	if inserted > 0 {
		transactionsInserted.Add(float64(inserted))
	}
}

// ObserveReconcile records one reconciliation run.
func ObserveReconcile(result string, duration time.Duration) {
	if reconcileTotal == nil {
		return
	}
	reconcileTotal.WithLabelValues(result).Inc()
	reconcileLatency.WithLabelValues(result).Observe(duration.Seconds())
}

// ObserveReconcileUpdate records a single record status transition.
func ObserveReconcileUpdate(record, status string) {
	if reconcileVerified == nil {
		return
	}
	reconcileVerified.WithLabelValues(record, status).Inc()
}

// ObserveClose records one monthly close attempt.
func ObserveClose(result string, duration time.Duration) {
	if closeTotal == nil {
		return
	}
	closeTotal.WithLabelValues(result).Inc()
	closeLatency.WithLabelValues(result).Observe(duration.Seconds())
}

// ObserveLedger records one ledger computation.
func ObserveLedger(result string, duration time.Duration) {
	if ledgerTotal == nil {
		return
	}
	ledgerTotal.WithLabelValues(result).Inc()
	ledgerLatency.WithLabelValues(result).Observe(duration.Seconds())
}
