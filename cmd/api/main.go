package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rupeevault/wallet-ledger/internal/accrual"
	"github.com/rupeevault/wallet-ledger/internal/cache"
	"github.com/rupeevault/wallet-ledger/internal/config"
	"github.com/rupeevault/wallet-ledger/internal/handler"
	"github.com/rupeevault/wallet-ledger/internal/ledger"
	"github.com/rupeevault/wallet-ledger/internal/logging"
	"github.com/rupeevault/wallet-ledger/internal/metrics"
	"github.com/rupeevault/wallet-ledger/internal/middleware"
	"github.com/rupeevault/wallet-ledger/internal/policy"
	"github.com/rupeevault/wallet-ledger/internal/referral"
	"github.com/rupeevault/wallet-ledger/internal/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logging.Init("wallet-ledger-api", cfg.LogLevel, cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := repository.NewPostgresDB(ctx, cfg.DatabaseURL, repository.PoolConfig{
		MaxOpenConns:     cfg.DBMaxOpenConns,
		MaxIdleConns:     cfg.DBMaxIdleConns,
		ConnMaxLifetimeS: cfg.DBConnMaxLifetimeS,
		ConnMaxIdleTimeS: cfg.DBConnMaxIdleTimeS,
	})
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := cache.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		slog.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer rdb.Close()

	eval, err := policy.New(cfg)
	if err != nil {
		slog.Error("failed to build policy evaluator", "error", err)
		os.Exit(1)
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		slog.Error("failed to load timezone", "error", err)
		os.Exit(1)
	}

	accounts := repository.NewAccountRepository(db)
	transactions := repository.NewTransactionRepository(db)
	positions := repository.NewPositionRepository(db)
	referrals := repository.NewReferralRepository(db)
	audit := repository.NewAuditRepository(db)

	backoffBase := time.Duration(cfg.CASBackoffBaseMS) * time.Millisecond

	distributor := referral.NewDistributor(accounts, transactions, referrals, eval, db, cfg.CommissionRetries, backoffBase)
	svc := ledger.NewService(accounts, transactions, positions, audit, distributor, eval, db, cfg.CASMaxAttempts, backoffBase)

	scheduler := accrual.NewScheduler(svc, positions, cfg.AccrualCron, loc, slog.Default())
	if err := scheduler.Start(); err != nil {
		slog.Error("failed to start accrual scheduler", "error", err)
		os.Exit(1)
	}
	defer scheduler.Stop()

	idemCache := cache.NewIdempotencyCache(rdb, time.Duration(cfg.IdempotencyTTLHours)*time.Hour)

	lh := handler.NewLedgerHandler(svc, eval)
	hh := handler.NewHealthHandler(db, rdb)

	r := chi.NewRouter()
	r.Use(middleware.Tracing)
	r.Use(middleware.Recovery)

	r.Get("/health/live", hh.Liveness)
	r.Get("/health/ready", hh.Readiness)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.Logging)
		r.Use(middleware.Idempotency(idemCache))

		r.Get("/account", lh.GetAccount)
		r.Get("/transactions", lh.ListTransactions)
		r.Get("/transactions/{id}", lh.GetTransaction)
		r.Post("/transactions/{id}/cancel", lh.CancelTransaction)

		r.Post("/deposits", lh.CreateDeposit)
		r.Post("/withdrawals", lh.CreateWithdrawal)
		r.Post("/investments", lh.CreateInvestment)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin)
			r.Post("/deposits/{id}/confirm", lh.ConfirmDeposit)
			r.Post("/withdrawals/{id}/settle", lh.SettleWithdrawal)
			r.Post("/positions/{id}/mature", lh.MaturePosition)
			r.Post("/admin/adjustments", lh.AdminAdjust)
		})
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("server started", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
