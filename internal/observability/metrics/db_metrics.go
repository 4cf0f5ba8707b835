package metrics

import (
	"database/sql"
	"log"

	"github.com/prometheus/client_golang/prometheus"
)

func registerDBMetrics(db *sql.DB, logger *log.Logger) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "payment_notifications_pending",
			Help: "Payment notifications awaiting bank verification",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM payment_notifications WHERE reconciliation_status = 'PENDING'")
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "payment_notifications_mismatched",
			Help: "Payment notifications with a bank amount mismatch",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM payment_notifications WHERE reconciliation_status = 'AMOUNT_MISMATCH'")
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "bank_transactions_count",
			Help: "Rows in the bank transaction store",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM bank_transactions")
		},
	))
}

func queryCount(db *sql.DB, logger *log.Logger, query string) float64 {
	if db == nil {
		return 0
	}
	var count int64
	if err := db.QueryRow(query).Scan(&count); err != nil {
		if logger != nil {
			logger.Printf("metrics query failed: %v", err)
		}
		return 0
	}
	if count < 0 {
		return 0
	}
	return float64(count)
}
