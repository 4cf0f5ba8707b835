// Command seed loads a demo condominium into the database: apartments,
// an exchange rate series and one month of billing records. Useful for
// exercising uploads and closings against a fresh instance.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type config struct {
	dbURL      string
	name       string
	apartments int
	quotaUSD   float64
	rate       float64
	period     string
}

func main() {
	cfg := parseFlags()
	logger := log.New(os.Stdout, "seed ", log.LstdFlags)

	db, err := sql.Open("pgx", cfg.dbURL)
	if err != nil {
		logger.Fatalf("db open: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		logger.Fatalf("db ping: %v", err)
	}

	period, err := time.Parse("2006-01", cfg.period)
	if err != nil {
		logger.Fatalf("invalid -period: %v", err)
	}

	var condominiumID int64
	err = db.QueryRowContext(ctx, `
INSERT INTO condominiums (name, active) VALUES ($1, TRUE)
RETURNING id`, cfg.name).Scan(&condominiumID)
	if err != nil {
		logger.Fatalf("insert condominium: %v", err)
	}

	for i := 1; i <= cfg.apartments; i++ {
		code := fmt.Sprintf("%d-%c", (i+1)/2, 'A'+byte((i+1)%2))
		var apartmentID int64
		err := db.QueryRowContext(ctx, `
INSERT INTO apartments (condominium_id, code, owner_name)
VALUES ($1, $2, $3)
RETURNING id`, condominiumID, code, fmt.Sprintf("Owner %s", code)).Scan(&apartmentID)
		if err != nil {
			logger.Fatalf("insert apartment %s: %v", code, err)
		}
		_, err = db.ExecContext(ctx, `
INSERT INTO billing_records (condominium_id, apartment_id, year, month, quota_usd, paid_usd)
VALUES ($1, $2, $3, $4, $5, 0)`,
			condominiumID, apartmentID, period.Year(), int(period.Month()), cfg.quotaUSD)
		if err != nil {
			logger.Fatalf("insert billing record %s: %v", code, err)
		}
	}

	// One rate per day so closings and fee bookings always resolve.
	monthEnd := period.AddDate(0, 1, 0)
	for d := period; d.Before(monthEnd); d = d.AddDate(0, 0, 1) {
		_, err := db.ExecContext(ctx, `
INSERT INTO exchange_rates (rate_date, value)
VALUES ($1, $2)
ON CONFLICT (rate_date) DO UPDATE SET value = EXCLUDED.value`, d, cfg.rate)
		if err != nil {
			logger.Fatalf("insert rate %s: %v", d.Format("2006-01-02"), err)
		}
	}

	logger.Printf("seeded condominium %d (%q): %d apartments, quota %.2f USD, rate %.4f, period %s",
		condominiumID, cfg.name, cfg.apartments, cfg.quotaUSD, cfg.rate, cfg.period)
}

func parseFlags() config {
	var cfg config
	flag.StringVar(&cfg.dbURL, "db", os.Getenv("DATABASE_URL"), "postgres connection string")
	flag.StringVar(&cfg.name, "name", "Residencias Demo", "condominium name")
	flag.IntVar(&cfg.apartments, "apartments", 8, "number of apartments")
	flag.Float64Var(&cfg.quotaUSD, "quota", 50, "monthly quota per apartment in USD")
	flag.Float64Var(&cfg.rate, "rate", 36.5, "Bs/USD exchange rate")
	flag.StringVar(&cfg.period, "period", time.Now().UTC().Format("2006-01"), "billing period (YYYY-MM)")
	flag.Parse()
	if cfg.dbURL == "" {
		log.Fatal("-db or DATABASE_URL is required")
	}
	if cfg.apartments <= 0 {
		log.Fatal("-apartments must be positive")
	}
	return cfg
}
