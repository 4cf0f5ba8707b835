package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"time"

	"condoledger/internal/audit"
	"condoledger/internal/auth"
	bankingrepo "condoledger/internal/banking/infrastructure/postgres"
	billingrepo "condoledger/internal/billing/infrastructure/postgres"
	billinghttp "condoledger/internal/billing/interfaces/http"
	closingapp "condoledger/internal/closing/application"
	closingrepo "condoledger/internal/closing/infrastructure/postgres"
	closinghttp "condoledger/internal/closing/interfaces/http"
	ledgeradapters "condoledger/internal/ledger/adapters/postgres"
	ledgerapp "condoledger/internal/ledger/application"
	ledgerhttp "condoledger/internal/ledger/interfaces/http"
	"condoledger/internal/migrate"
	"condoledger/internal/observability/metrics"
	"condoledger/internal/rates"
	reconapp "condoledger/internal/reconciliation/application"
	statementapp "condoledger/internal/statement/application"
	statementhttp "condoledger/internal/statement/interfaces/http"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}
	if err := migrate.Apply(context.Background(), db, cfg.MigrationsDir); err != nil {
		logger.Fatalf("migrate error: %v", err)
	}

	metrics.Init(db, logger)
	auditRepo := audit.NewRepository(db)

	apartmentRepo := billingrepo.NewApartmentRepository(db)
	expenseRepo := billingrepo.NewExpenseRepository(db)
	paymentRepo := billingrepo.NewPaymentRepository(db)
	recordRepo := billingrepo.NewBillingRecordRepository(db)
	transactionRepo := bankingrepo.NewTransactionRepository(db)
	closingRepo := closingrepo.NewClosingRepository(db)
	rateStore := rates.NewStore(db)

	reconCfg, err := reconapp.LoadConfig()
	if err != nil {
		logger.Fatalf("reconciliation config error: %v", err)
	}
	reconEngine, err := reconapp.NewEngine(paymentRepo, expenseRepo, transactionRepo, reconCfg, logger)
	if err != nil {
		logger.Fatalf("reconciliation engine error: %v", err)
	}

	ingestService, err := statementapp.NewIngestService(transactionRepo, expenseRepo, rateStore, closingRepo, reconEngine, logger)
	if err != nil {
		logger.Fatalf("ingest service error: %v", err)
	}
	uploadHandler, err := statementhttp.NewUploadHandler(ingestService, auditRepo)
	if err != nil {
		logger.Fatalf("upload handler error: %v", err)
	}

	closingService, err := closingapp.NewService(closingRepo, apartmentRepo, expenseRepo, paymentRepo, recordRepo, rateStore, logger)
	if err != nil {
		logger.Fatalf("closing service error: %v", err)
	}
	closingHandler, err := closinghttp.NewHandler(closingService, auditRepo)
	if err != nil {
		logger.Fatalf("closing handler error: %v", err)
	}

	expenseReader := ledgeradapters.NewExpenseTotalReader(db)
	ledgerService, err := ledgerapp.NewService(apartmentRepo, paymentRepo, recordRepo, expenseReader, closingRepo, logger)
	if err != nil {
		logger.Fatalf("ledger service error: %v", err)
	}
	ledgerHandler, err := ledgerhttp.NewHandler(ledgerService)
	if err != nil {
		logger.Fatalf("ledger handler error: %v", err)
	}

	expenseHandler, err := billinghttp.NewExpenseHandler(expenseRepo, closingRepo, auditRepo)
	if err != nil {
		logger.Fatalf("expense handler error: %v", err)
	}
	paymentHandler, err := billinghttp.NewPaymentHandler(paymentRepo, closingRepo, auditRepo)
	if err != nil {
		logger.Fatalf("payment handler error: %v", err)
	}
	apartmentHandler, err := billinghttp.NewApartmentHandler(apartmentRepo, recordRepo, auditRepo)
	if err != nil {
		logger.Fatalf("apartment handler error: %v", err)
	}
	rateHandler, err := rates.NewHandler(rateStore)
	if err != nil {
		logger.Fatalf("rates handler error: %v", err)
	}

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/bank/upload", uploadHandler)
	mux.Handle("/api/v1/expenses", expenseHandler)
	mux.Handle("/api/v1/expenses/", expenseHandler)
	mux.Handle("/api/v1/payments", paymentHandler)
	mux.Handle("/api/v1/payments/", paymentHandler)
	mux.Handle("/api/v1/apartments", apartmentHandler)
	mux.Handle("/api/v1/apartments/", apartmentHandler)
	mux.Handle("/api/v1/closings", closingHandler)
	mux.Handle("/api/v1/closings/", closingHandler)
	mux.Handle("/api/v1/ledger", ledgerHandler)
	mux.Handle("/api/v1/ledger/", ledgerHandler)
	mux.Handle("/api/v1/rates", rateHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

type config struct {
	DatabaseURL   string
	HTTPAddr      string
	JWTSecret     string
	MigrationsDir string
}

func loadConfig() config {
	cfg := config{
		DatabaseURL:   getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:      getenvDefault("HTTP_ADDR", ":8080"),
		JWTSecret:     getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		MigrationsDir: getenvDefault("MIGRATIONS_DIR", "migrations"),
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
